package jsonkit

import "sort"

// ComputeDelta returns the minimal patch such that DeepMerge(base, delta)
// reconstructs edited for every changed or added leaf value. The second
// return is false when edited deep-equals base and no patch is needed.
//
// Objects recurse per key; keys whose values are unchanged are omitted from
// the patch. Arrays are atomic - a differing array is returned verbatim.
// Keys present in base but removed in edited are not representable as a
// merge patch and are omitted; record-level removal is a tombstone concern,
// not a field-delta concern.
func ComputeDelta(base, edited any) (any, bool) {
	if DeepEqual(base, edited) {
		return nil, false
	}

	editedMap, editedIsMap := edited.(map[string]any)
	baseMap, baseIsMap := base.(map[string]any)
	if !editedIsMap || !baseIsMap {
		// Scalar change, array change, or a type change: replace wholesale.
		return Clone(edited), true
	}

	delta := make(map[string]any)
	for k, ev := range editedMap {
		bv, inBase := baseMap[k]
		if !inBase {
			delta[k] = Clone(ev)
			continue
		}
		if sub, changed := ComputeDelta(bv, ev); changed {
			delta[k] = sub
		}
	}

	// The maps were not deep-equal, so even an empty delta (objects differing
	// only by removed keys) reports changed: the caller decides whether an
	// empty patch is worth emitting.
	return delta, true
}

// DeltaKeys returns the sorted key list of an object delta, or nil when the
// delta is not an object. Used by the diff inspector to name which fields a
// tenant has overridden.
func DeltaKeys(delta any) []string {
	m, ok := delta.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
