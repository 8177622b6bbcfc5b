// Package diff reports how a tag's effective dataset diverges from its
// parent chain: which entities are new in this tag and which fields of
// inherited entities are overridden.
package diff

import (
	"context"

	"github.com/lowpoly/tagstack/internal/compose"
	"github.com/lowpoly/tagstack/internal/entity"
	"github.com/lowpoly/tagstack/internal/jsonkit"
)

// Composer is the slice of the composition client the inspector needs.
// Satisfied by *compose.Client.
type Composer interface {
	ComposeParentChain(ctx context.Context, tagName string, opts compose.Options) (events, tips []entity.Entity, parentExists bool)
}

// EntityDiff describes one entity's divergence from the parent chain.
type EntityDiff struct {
	// NewInTag is true when the parent chain has no entity with this id.
	NewInTag bool `json:"newInTag"`

	// OverrideKeys lists the top-level fields whose values differ from the
	// parent version, sorted. Empty for entities equal to their parent
	// version and for NewInTag entities.
	OverrideKeys []string `json:"overrideKeys,omitempty"`
}

// Index maps entity ids to their divergence, per kind.
type Index struct {
	// HasParent is false when the tag declares no (usable) parent; every
	// entity is then NewInTag by definition.
	HasParent bool `json:"hasParent"`

	Events map[string]EntityDiff `json:"events"`
	Tips   map[string]EntityDiff `json:"tips"`
}

// ComputeIndex builds the divergence index for a tag's current effective
// datasets. The parent chain is recomposed fresh - never read from cache -
// with ancestor-tag local edits surfaced, so the index stays correct against
// concurrent edits anywhere in the chain.
func ComputeIndex(ctx context.Context, composer Composer, effectiveEvents, effectiveTips []entity.Entity, tagName string) *Index {
	parentEvents, parentTips, parentExists := composer.ComposeParentChain(
		ctx, tagName, compose.Options{SurfaceAncestorOverrides: true})

	idx := &Index{HasParent: parentExists}
	if !parentExists {
		idx.Events = allNew(effectiveEvents)
		idx.Tips = allNew(effectiveTips)
		return idx
	}

	idx.Events = diffAgainstParent(effectiveEvents, parentEvents)
	idx.Tips = diffAgainstParent(effectiveTips, parentTips)
	return idx
}

func allNew(items []entity.Entity) map[string]EntityDiff {
	out := make(map[string]EntityDiff, len(items))
	for _, item := range items {
		if id, ok := item.ID(); ok {
			out[id] = EntityDiff{NewInTag: true}
		}
	}
	return out
}

func diffAgainstParent(effective, parent []entity.Entity) map[string]EntityDiff {
	parentByID := entity.BuildIDMap(parent)
	out := make(map[string]EntityDiff, len(effective))

	for _, item := range effective {
		id, ok := item.ID()
		if !ok {
			continue
		}
		parentItem, hasParent := parentByID[id]
		if !hasParent {
			out[id] = EntityDiff{NewInTag: true}
			continue
		}

		delta, changed := jsonkit.ComputeDelta(map[string]any(parentItem), map[string]any(item))
		if !changed {
			out[id] = EntityDiff{}
			continue
		}
		out[id] = EntityDiff{OverrideKeys: jsonkit.DeltaKeys(delta)}
	}
	return out
}
