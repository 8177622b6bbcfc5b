package jsonkit

import "math"

// DeepEqual reports structural equality for JSON-shaped values.
//
// Objects compare by key set and per-key value, order-independent. Arrays
// compare length then element-wise in order. Numbers compare by value across
// int/int64/float64 representations, and NaN equals NaN - composed entities
// can carry in-memory sentinel values that must round-trip through the
// override store without registering as edits.
func DeepEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return false
		}
		if math.IsNaN(af) && math.IsNaN(bf) {
			return true
		}
		return af == bf
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, present := bv[k]
			if !present || !DeepEqual(ae, be) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// toFloat widens the numeric types a JSON value can arrive as. encoding/json
// produces float64, but entities constructed in-process may hold int or int64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Clone returns a deep copy of a JSON-shaped value. Scalars are returned
// as-is; maps and slices are copied recursively so the result shares no
// mutable structure with the input.
func Clone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = Clone(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// CloneMap is Clone specialized to object values, preserving the static type.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, e := range m {
		out[k] = Clone(e)
	}
	return out
}

// DeepMerge merges patch onto base and returns the result without mutating
// either input.
//
// Rules, in order:
//   - patch == nil (absent): base is returned unchanged, or an empty object
//     when base is also nil.
//   - patch is an object: merged per key onto base when base is an object,
//     otherwise onto an empty object. A nested object value recurses; any
//     other value (including arrays and explicit nulls carried inside the
//     object) replaces the base value wholesale.
//   - anything else: patch replaces base.
func DeepMerge(base, patch any) any {
	if patch == nil {
		if base == nil {
			return map[string]any{}
		}
		return Clone(base)
	}

	patchMap, ok := patch.(map[string]any)
	if !ok {
		return Clone(patch)
	}

	var out map[string]any
	if baseMap, isMap := base.(map[string]any); isMap {
		out = CloneMap(baseMap)
	} else {
		out = make(map[string]any, len(patchMap))
	}

	for k, pv := range patchMap {
		if pvMap, isMap := pv.(map[string]any); isMap {
			out[k] = DeepMerge(out[k], pvMap)
			continue
		}
		// Arrays, scalars, and explicit nulls override.
		out[k] = Clone(pv)
	}
	return out
}
