// Package dataset is the tenant-local editing layer for one entity kind.
//
// A Store holds the composed base (what the ancestry chain publishes for the
// active tag) plus this tenant's sparse edit layer (overrides and tombstones)
// and materializes the effective array from them. Only the edit layer is ever
// persisted: a base republish is picked up on the next fetch without
// clobbering local edits, because the effective view is always recomputed
// from fresh base plus stable overrides.
//
// Events and tips each get their own Store instance; the type never inspects
// entity fields beyond id, deleted, and the handful of well-known edit
// fields its specialized operations touch.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/lowpoly/tagstack/internal/compose"
	"github.com/lowpoly/tagstack/internal/entity"
	"github.com/lowpoly/tagstack/internal/jsonkit"
	"github.com/lowpoly/tagstack/internal/localstore"
	"github.com/lowpoly/tagstack/internal/tag"
)

// Well-known entity fields the specialized edit operations touch.
const (
	fieldOrder         = "order"
	fieldArchived      = "archived"
	fieldDateOverrides = "dateOverrides"
	fieldDateIncludes  = "dateIncludes"
)

// Composer is the slice of the composition client the store depends on.
// Satisfied by *compose.Client.
type Composer interface {
	FetchBundle(ctx context.Context, force bool, opts compose.Options) (*compose.Bundle, error)
	ComposeParentChain(ctx context.Context, tagName string, opts compose.Options) (events, tips []entity.Entity, parentExists bool)
}

// Store owns the per-tag editable state for one entity kind.
type Store struct {
	kind     entity.Kind
	composer Composer
	persist  *localstore.Store // nil for ephemeral use

	mu          sync.Mutex
	activeTag   string
	items       []entity.Entity // effective view, recomposed after every edit
	baseItems   []entity.Entity
	baseMap     map[string]entity.Entity
	overrides   map[string]entity.Entity
	deletedIDs  []string
	legacyItems []entity.Entity
	initialized bool
	hydrated    bool
}

// NewStore creates a store for one kind. resolver may be nil; when given, the
// store follows active-tag transitions: reset, rehydrate from the new tag's
// persisted state, then reinitialize from config - strictly in that order, so
// a just-loaded override is never discarded by the reset.
func NewStore(kind entity.Kind, composer Composer, persist *localstore.Store, resolver *tag.Resolver) *Store {
	s := &Store{
		kind:      kind,
		composer:  composer,
		persist:   persist,
		overrides: map[string]entity.Entity{},
	}
	if resolver != nil {
		s.activeTag = resolver.Active()
		resolver.Subscribe(func(_, newTag string) {
			s.switchTag(newTag)
		})
	}
	return s
}

// Kind returns the entity kind this store manages.
func (s *Store) Kind() entity.Kind { return s.kind }

// ActiveTag returns the tag whose state the store currently holds.
func (s *Store) ActiveTag() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeTag
}

// Items returns a deep copy of the effective array.
func (s *Store) Items() []entity.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Entity, len(s.items))
	for i, item := range s.items {
		out[i] = item.Clone()
	}
	return out
}

// OverrideState returns a deep copy of the current edit layer.
func (s *Store) OverrideState() entity.OverrideState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := entity.OverrideState{
		OverridesByID: make(map[string]entity.Entity, len(s.overrides)),
		DeletedIDs:    append([]string{}, s.deletedIDs...),
	}
	for id, item := range s.overrides {
		out.OverridesByID[id] = item.Clone()
	}
	return out
}

// Hydrate loads the active tag's persisted edit layer. Must run before
// InitializeFromConfig on a tag transition; the reset wiped the in-memory
// layer and initialization composes with whatever layer is loaded.
func (s *Store) Hydrate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persist == nil {
		s.hydrated = true
		return
	}

	payload := s.persist.LoadOverrides(s.activeTag, s.kind)
	s.overrides = payload.OverridesByID
	s.deletedIDs = payload.DeletedIDs
	s.legacyItems = payload.LegacyItems
	s.hydrated = true
	s.recompose()
}

// InitializeFromConfig fetches the composed bundle for the active tag and
// installs it as the new base. A no-op when already initialized with data,
// unless forced.
func (s *Store) InitializeFromConfig(ctx context.Context, force bool) error {
	s.mu.Lock()
	if s.initialized && len(s.items) > 0 && !force {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	bundle, err := s.composer.FetchBundle(ctx, force, compose.Options{})
	if err != nil {
		return fmt.Errorf("initialize %s dataset: %w", s.kind, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTag = bundle.Tag
	s.installBase(s.pick(bundle))
	s.initialized = true
	return s.save()
}

// SetItems replaces the dataset. With fromBase true, items is a freshly
// fetched base layer: pending legacy data reconciles against it and the
// retained edit layer reapplies on top. With fromBase false, items is a
// fully-specified final array (a bulk import): the edit layer is re-derived
// from scratch so that composition reproduces exactly this array.
func (s *Store) SetItems(items []entity.Entity, fromBase bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fromBase {
		s.installBase(items)
		return s.save()
	}

	state := entity.DeriveOverridesFromFinal(items, s.baseMap)
	s.overrides = state.OverridesByID
	s.deletedIDs = state.DeletedIDs
	s.legacyItems = nil
	s.recompose()
	return s.save()
}

// installBase sets a new base layer and reconciles any pending legacy data
// against it. Callers hold the lock.
func (s *Store) installBase(items []entity.Entity) {
	s.baseItems = make([]entity.Entity, 0, len(items))
	for _, item := range items {
		s.baseItems = append(s.baseItems, item.Clone())
	}
	s.baseMap = entity.BuildIDMap(s.baseItems)

	if s.legacyItems != nil {
		// The legacy payload was a full final array saved before the
		// sparse format existed. Against a real base it collapses into
		// overrides and deletions, then disappears for good.
		state := entity.DeriveOverridesFromFinal(s.legacyItems, s.baseMap)
		s.overrides = state.OverridesByID
		s.deletedIDs = state.DeletedIDs
		s.legacyItems = nil
		slog.Info("legacy dataset reconciled",
			"tag", s.activeTag, "kind", s.kind,
			"overrides", len(s.overrides), "deleted", len(s.deletedIDs))
	}

	s.recompose()
}

// Add inserts a new local record, minting an id when the item has none, and
// returns the id. New records always become overrides: they have no base
// counterpart to revert to.
func (s *Store) Add(item entity.Entity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := item.Clone()
	id, ok := stored.ID()
	if !ok {
		id = uuid.NewString()
		stored["id"] = id
	}

	s.overrides = entity.UpsertOverrideMap(s.baseMap, s.overrides, []entity.Entity{stored})
	s.deletedIDs = entity.EnsureIDRemoved(s.deletedIDs, id)
	s.recompose()
	return id, s.save()
}

// Update replaces one entity's full content, clearing any pending deletion
// for its id. An update that reverts the entity to its base content clears
// the override instead of storing a no-op one.
func (s *Store) Update(item entity.Entity) error {
	id, ok := item.ID()
	if !ok {
		return fmt.Errorf("update %s: entity has no id", s.kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides = entity.UpsertOverrideMap(s.baseMap, s.overrides, []entity.Entity{item})
	s.deletedIDs = entity.EnsureIDRemoved(s.deletedIDs, id)
	s.recompose()
	return s.save()
}

// Delete removes an entity from the effective view. A base entity gets a
// tombstone (and any override dropped); a local-only record just leaves the
// override map, since base never had it.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, inBase := s.baseMap[id]; inBase {
		s.deletedIDs = entity.EnsureIDAdded(s.deletedIDs, id)
	}
	delete(s.overrides, id)
	s.recompose()
	return s.save()
}

// Reorder rewrites the order field of every listed entity to its position in
// orderedIDs. Unknown ids are skipped; entities whose position is unchanged
// produce no override.
func (s *Store) Reorder(orderedIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := entity.BuildIDMap(s.items)
	changed := make([]entity.Entity, 0, len(orderedIDs))
	for pos, id := range orderedIDs {
		item, ok := current[id]
		if !ok {
			continue
		}
		updated := item.Clone()
		updated[fieldOrder] = pos
		changed = append(changed, updated)
	}

	s.overrides = entity.UpsertOverrideMap(s.baseMap, s.overrides, changed)
	s.recompose()
	return s.save()
}

// SetDateOverride deep-merges a patch into one entity's per-date override
// map. A nil patch clears the date's entry.
func (s *Store) SetDateOverride(id, date string, patch entity.Entity) error {
	return s.mutate(id, func(item entity.Entity) {
		byDate := dateMap(item, fieldDateOverrides)
		if patch == nil {
			delete(byDate, date)
		} else {
			byDate[date] = jsonkit.DeepMerge(byDate[date], map[string]any(patch))
		}
		item[fieldDateOverrides] = byDate
	})
}

// SetDateInclude marks one occurrence date as explicitly included or
// excluded for an entity.
func (s *Store) SetDateInclude(id, date string, include bool) error {
	return s.mutate(id, func(item entity.Entity) {
		byDate := dateMap(item, fieldDateIncludes)
		byDate[date] = include
		item[fieldDateIncludes] = byDate
	})
}

// Archive hides an entity without deleting it.
func (s *Store) Archive(id string) error {
	return s.mutate(id, func(item entity.Entity) {
		item[fieldArchived] = true
	})
}

// Restore undoes Archive.
func (s *Store) Restore(id string) error {
	return s.mutate(id, func(item entity.Entity) {
		delete(item, fieldArchived)
	})
}

// mutate applies fn to a clone of the entity's effective value and funnels
// the result through the override upsert path.
func (s *Store) mutate(id string, fn func(entity.Entity)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := entity.BuildIDMap(s.items)[id]
	if !ok {
		return fmt.Errorf("mutate %s: no entity with id %q", s.kind, id)
	}

	updated := item.Clone()
	fn(updated)

	s.overrides = entity.UpsertOverrideMap(s.baseMap, s.overrides, []entity.Entity{updated})
	s.recompose()
	return s.save()
}

// dateMap returns a mutable copy of an entity's string-keyed sub-map.
func dateMap(item entity.Entity, field string) map[string]any {
	if m, ok := item[field].(map[string]any); ok {
		return jsonkit.CloneMap(m)
	}
	return map[string]any{}
}

// ResetOverrides replaces one entity with its parent-chain composed value,
// clearing this tenant's divergence for that record. Returns false when the
// parent chain has no counterpart (nothing to reset to) - an explicit signal,
// not an error.
func (s *Store) ResetOverrides(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	tagName := s.activeTag
	s.mu.Unlock()

	events, tips, parentExists := s.composer.ComposeParentChain(ctx, tagName, compose.Options{})
	if !parentExists {
		return false, nil
	}
	chain := events
	if s.kind == entity.KindTips {
		chain = tips
	}
	parentItem, ok := entity.BuildIDMap(chain)[id]
	if !ok {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides = entity.UpsertOverrideMap(s.baseMap, s.overrides, []entity.Entity{parentItem})
	s.deletedIDs = entity.EnsureIDRemoved(s.deletedIDs, id)
	s.recompose()
	return true, s.save()
}

// ClearAll wipes the edit layer for the active tag, in memory and persisted.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.overrides = map[string]entity.Entity{}
	s.deletedIDs = []string{}
	s.legacyItems = nil
	s.recompose()
	if s.persist == nil {
		return nil
	}
	return s.persist.ClearOverrides(s.activeTag, s.kind)
}

// switchTag handles an active-tag transition. Ordering is load-bearing:
// reset, then hydrate the new tag's persisted layer, then reinitialize from
// config. Initializing first would compose against an empty edit layer and
// the subsequent hydrate's save would race a lost update.
func (s *Store) switchTag(newTag string) {
	s.mu.Lock()
	s.activeTag = newTag
	s.items = nil
	s.baseItems = nil
	s.baseMap = nil
	s.overrides = map[string]entity.Entity{}
	s.deletedIDs = []string{}
	s.legacyItems = nil
	s.initialized = false
	s.hydrated = false
	s.mu.Unlock()

	s.Hydrate()
	if err := s.InitializeFromConfig(context.Background(), false); err != nil {
		slog.Warn("dataset reinitialization failed after tag change",
			"tag", newTag, "kind", s.kind, "err", err)
	}
}

// pick selects this store's kind from a composed bundle.
func (s *Store) pick(bundle *compose.Bundle) []entity.Entity {
	if s.kind == entity.KindTips {
		return bundle.Tips
	}
	return bundle.Events
}

// recompose rebuilds the effective view. Callers hold the lock.
func (s *Store) recompose() {
	s.items = entity.ComposeWithOverrides(s.baseItems, s.overrides, s.deletedIDs)
}

// save persists the edit layer for the active tag. Callers hold the lock.
func (s *Store) save() error {
	if s.persist == nil {
		return nil
	}
	payload := &localstore.OverridePayload{
		OverridesByID: s.overrides,
		DeletedIDs:    s.deletedIDs,
		LegacyItems:   s.legacyItems,
	}
	if err := s.persist.SaveOverrides(s.activeTag, s.kind, payload); err != nil {
		return fmt.Errorf("persist %s edit layer: %w", s.kind, err)
	}
	return nil
}
