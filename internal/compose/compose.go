package compose

import (
	"slices"

	"github.com/lowpoly/tagstack/internal/entity"
	"github.com/lowpoly/tagstack/internal/jsonkit"
	"github.com/lowpoly/tagstack/internal/remote"
)

// LocalOverrides is one tag's stored edit layer, keyed by kind, as supplied
// to ComposeFromLayers when ancestor-tag local edits should be surfaced
// (diff computation, admin cross-tag editing). Outside those paths the
// composed view contains only published data.
type LocalOverrides struct {
	Events entity.OverrideState
	Tips   entity.OverrideState
}

// composition accumulates the running per-id state while walking layers
// root to leaf.
type composition struct {
	byID  map[string]entity.Entity
	order []string
}

func newComposition() *composition {
	return &composition{byID: map[string]entity.Entity{}}
}

// mergeLayer folds one layer's entities into the running map: fields of the
// child layer win per-field via deep merge, then the layer's tombstones
// remove ids. A tombstone is terminal at that point in the chain, but a
// later layer may re-add the id - deliberately permitted, not an error.
func (cmp *composition) mergeLayer(items []entity.Entity, tombstones map[string]bool) {
	for _, item := range items {
		id, ok := item.ID()
		if !ok {
			continue
		}
		if existing, present := cmp.byID[id]; present {
			cmp.byID[id] = entity.Entity(jsonkit.DeepMerge(
				map[string]any(existing), map[string]any(item)).(map[string]any))
			continue
		}
		cmp.byID[id] = item.Clone()
		cmp.order = append(cmp.order, id)
	}
	for id := range tombstones {
		delete(cmp.byID, id)
	}
}

// applyLocalOverrides substitutes a tenant's stored overrides into the
// running map. Overrides replace the composed value wholesale (they are full
// entities, not deltas); local deletions remove the id.
func (cmp *composition) applyLocalOverrides(state entity.OverrideState) {
	ids := make([]string, 0, len(state.OverridesByID))
	for id := range state.OverridesByID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if _, present := cmp.byID[id]; !present {
			cmp.order = append(cmp.order, id)
		}
		cmp.byID[id] = state.OverridesByID[id].Clone()
	}
	for _, id := range state.DeletedIDs {
		delete(cmp.byID, id)
	}
}

// flatten returns the surviving entities in first-seen order.
func (cmp *composition) flatten() []entity.Entity {
	out := make([]entity.Entity, 0, len(cmp.byID))
	seen := map[string]bool{}
	for _, id := range cmp.order {
		if seen[id] {
			continue
		}
		seen[id] = true
		if item, present := cmp.byID[id]; present {
			out = append(out, item)
		}
	}
	return out
}

// ComposeFromLayers merges an ancestry chain, ordered root first, into one
// entity set per kind plus the merged tag config. localByTag optionally
// supplies stored local overrides per tag; when a snapshot exists for a
// layer's tag it applies immediately after that layer merges, so an
// ancestor's local edit is visible to every descendant's composed view.
func ComposeFromLayers(layers []*Layer, localByTag map[string]LocalOverrides) (events, tips []entity.Entity, config remote.TagConfig) {
	eventsCmp := newComposition()
	tipsCmp := newComposition()
	var mergedConfig any

	for _, layer := range layers {
		eventsCmp.mergeLayer(layer.Events, layer.EventTombstones)
		tipsCmp.mergeLayer(layer.Tips, layer.TipTombstones)
		if layer.Config != nil {
			mergedConfig = jsonkit.DeepMerge(mergedConfig, map[string]any(layer.Config))
		}

		if local, ok := localByTag[layer.Tag]; ok {
			eventsCmp.applyLocalOverrides(local.Events)
			tipsCmp.applyLocalOverrides(local.Tips)
		}
	}

	if m, ok := mergedConfig.(map[string]any); ok {
		config = remote.TagConfig(m)
	}
	return eventsCmp.flatten(), tipsCmp.flatten(), config
}
