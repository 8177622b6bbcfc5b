package entity

import (
	"slices"

	"github.com/lowpoly/tagstack/internal/jsonkit"
)

// OverrideState is the tenant-local edit layer for one entity kind:
// a sparse override per edited id plus the set of locally deleted base ids.
type OverrideState struct {
	OverridesByID map[string]Entity
	DeletedIDs    []string
}

// ComposeWithOverrides materializes the effective array: base items in their
// original order with deleted ids dropped and overridden ids substituted,
// followed by override-only items (local records with no base counterpart).
//
// Every returned entity is a deep clone. Consumers mutate the result freely
// (drag-and-drop reordering, field edits) without corrupting the base layer
// or the override store.
func ComposeWithOverrides(baseItems []Entity, overridesByID map[string]Entity, deletedIDs []string) []Entity {
	deleted := make(map[string]bool, len(deletedIDs))
	for _, id := range deletedIDs {
		deleted[id] = true
	}

	out := make([]Entity, 0, len(baseItems)+len(overridesByID))
	seen := make(map[string]bool, len(baseItems))

	for _, item := range baseItems {
		id, ok := item.ID()
		if !ok {
			// No usable id means nothing can override or delete it;
			// pass the entry through rather than losing it.
			out = append(out, item.Clone())
			continue
		}
		seen[id] = true
		if deleted[id] {
			continue
		}
		if override, present := overridesByID[id]; present {
			out = append(out, override.Clone())
			continue
		}
		out = append(out, item.Clone())
	}

	// Override-only ids: locally created records. Sorted for a stable
	// output order; map iteration order would leak into persisted arrays.
	extra := make([]string, 0)
	for id := range overridesByID {
		if !seen[id] && !deleted[id] {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)
	for _, id := range extra {
		out = append(out, overridesByID[id].Clone())
	}

	return out
}

// DeriveOverridesFromFinal reconciles a fully-specified final array against a
// known base, producing the sparse representation whose composition equals
// the final array. This is how "replace the whole list" style edits (bulk
// imports, the legacy full-array storage format) convert into overrides:
//
//   - base ids absent from final become deletions
//   - ids in both that differ become overrides
//   - ids only in final become overrides (new local records)
func DeriveOverridesFromFinal(finalItems []Entity, baseMap map[string]Entity) OverrideState {
	state := OverrideState{
		OverridesByID: make(map[string]Entity),
		DeletedIDs:    []string{},
	}

	finalByID := BuildIDMap(finalItems)

	for id, baseItem := range baseMap {
		finalItem, present := finalByID[id]
		if !present {
			state.DeletedIDs = EnsureIDAdded(state.DeletedIDs, id)
			continue
		}
		if !jsonkit.DeepEqual(map[string]any(baseItem), map[string]any(finalItem)) {
			state.OverridesByID[id] = finalItem.Clone()
		}
	}

	for id, finalItem := range finalByID {
		if _, inBase := baseMap[id]; !inBase {
			state.OverridesByID[id] = finalItem.Clone()
		}
	}

	slices.Sort(state.DeletedIDs)
	return state
}

// UpsertOverrideMap folds changed items into an override map, keeping it
// minimal: an item that deep-equals its base counterpart clears any existing
// override instead of storing a no-op one. Returns a new map; the input is
// not mutated.
func UpsertOverrideMap(baseMap map[string]Entity, overridesByID map[string]Entity, changedItems []Entity) map[string]Entity {
	out := make(map[string]Entity, len(overridesByID)+len(changedItems))
	for id, item := range overridesByID {
		out[id] = item
	}

	for _, item := range changedItems {
		id, ok := item.ID()
		if !ok {
			continue
		}
		if baseItem, inBase := baseMap[id]; inBase &&
			jsonkit.DeepEqual(map[string]any(baseItem), map[string]any(item)) {
			// Edit reverted to base - no override needed.
			delete(out, id)
			continue
		}
		out[id] = item.Clone()
	}

	return out
}

// EnsureIDAdded adds id to the list if absent. Idempotent.
func EnsureIDAdded(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// EnsureIDRemoved removes every occurrence of id from the list. Idempotent;
// returns a fresh slice so persisted state never aliases caller slices.
func EnsureIDRemoved(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
