// Package entity implements id-keyed collection reconciliation: the
// base + sparse-override + tombstone representation that every tenant's
// local edits are stored in, and the conversions between that shape and the
// flat composed arrays consumers read.
//
// The package is deliberately ignorant of what an Event or a Tip is. It
// operates on any JSON object carrying a string "id", which is why the
// events store and the tips store share it verbatim.
package entity

import "github.com/lowpoly/tagstack/internal/jsonkit"

// Entity is one identified record: a JSON object with a string "id" field.
type Entity map[string]any

// Kind names one entity family. The composition engine treats both kinds
// identically; the kind only selects which document and storage slot a
// collection lives in.
type Kind string

const (
	KindEvents Kind = "events"
	KindTips   Kind = "tips"
)

// ID returns the entity's id field. ok is false when the id is missing or
// not a string.
func (e Entity) ID() (string, bool) {
	raw, present := e["id"]
	if !present {
		return "", false
	}
	id, isString := raw.(string)
	if !isString || id == "" {
		return "", false
	}
	return id, true
}

// Deleted reports whether the entity is a tombstone (deleted: true).
func (e Entity) Deleted() bool {
	v, ok := e["deleted"].(bool)
	return ok && v
}

// Clone returns a deep copy sharing no structure with the receiver.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	return Entity(jsonkit.CloneMap(map[string]any(e)))
}

// Tombstone builds the minimal removal marker published for an id.
func Tombstone(id string) Entity {
	return Entity{"id": id, "deleted": true}
}

// BuildIDMap indexes entities by id. Duplicate ids are last-write-wins;
// entities without a usable id are skipped silently, matching how layer
// documents with stray records are tolerated everywhere else.
func BuildIDMap(items []Entity) map[string]Entity {
	m := make(map[string]Entity, len(items))
	for _, item := range items {
		id, ok := item.ID()
		if !ok {
			continue
		}
		m[id] = item
	}
	return m
}

// IDs returns the ids of items in order, skipping entities without one.
func IDs(items []Entity) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if id, ok := item.ID(); ok {
			out = append(out, id)
		}
	}
	return out
}
