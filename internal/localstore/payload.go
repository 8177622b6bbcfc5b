package localstore

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lowpoly/tagstack/internal/entity"
)

const (
	activeTagKey = "active_tag"

	// payloadVersion is the current persisted shape: sparse overrides plus
	// tombstones. Version 0 was a bare final array.
	payloadVersion = 1
)

// OverridePayload is the persisted per-(tag, kind) state. Only the local
// edit layer is stored - never the composed array - so a base republish is
// picked up on the next fetch without clobbering local edits.
type OverridePayload struct {
	Version       int                      `json:"version"`
	OverridesByID map[string]entity.Entity `json:"overridesById"`
	DeletedIDs    []string                 `json:"deletedIds"`

	// LegacyItems holds a version-0 full array awaiting reconciliation
	// against a freshly fetched base. Always null after reconciliation.
	LegacyItems []entity.Entity `json:"legacyItems"`
}

// EmptyPayload returns the initial state for a tag that has never been
// edited locally.
func EmptyPayload() *OverridePayload {
	return &OverridePayload{
		Version:       payloadVersion,
		OverridesByID: map[string]entity.Entity{},
		DeletedIDs:    []string{},
	}
}

// Store layers payload versioning over a raw Storage backend.
type Store struct {
	backend Storage
}

// NewStore wraps a Storage backend.
func NewStore(backend Storage) *Store {
	return &Store{backend: backend}
}

func overridesKey(tag string, kind entity.Kind) string {
	return fmt.Sprintf("overrides/%s/%s", tag, kind)
}

// LoadOverrides reads the persisted payload for one tag and kind.
//
// Unreadable state never fails the caller: a corrupt payload is discarded
// with a diagnostic and an empty payload returned - availability over
// surfacing storage corruption to the user. A version-0 payload (the legacy
// full-array format, stored either bare or under "items") migrates into the
// sparse shape with LegacyItems populated for later reconciliation.
func (s *Store) LoadOverrides(tag string, kind entity.Kind) *OverridePayload {
	key := overridesKey(tag, kind)
	raw, ok, err := s.backend.Get(key)
	if err != nil {
		slog.Warn("override state unreadable, starting empty", "key", key, "err", err)
		return EmptyPayload()
	}
	if !ok {
		return EmptyPayload()
	}

	payload, err := decodePayload(raw)
	if err != nil {
		slog.Warn("override state corrupt, starting empty", "key", key, "err", err)
		return EmptyPayload()
	}
	return payload
}

// SaveOverrides persists the payload for one tag and kind.
func (s *Store) SaveOverrides(tag string, kind entity.Kind, p *OverridePayload) error {
	p.Version = payloadVersion
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode override state: %w", err)
	}
	if err := s.backend.Set(overridesKey(tag, kind), data); err != nil {
		return fmt.Errorf("persist override state: %w", err)
	}
	return nil
}

// ClearOverrides removes the persisted payload for one tag and kind.
func (s *Store) ClearOverrides(tag string, kind entity.Kind) error {
	return s.backend.Delete(overridesKey(tag, kind))
}

// LoadActiveTag implements tag.Store.
func (s *Store) LoadActiveTag() (string, bool) {
	raw, ok, err := s.backend.Get(activeTagKey)
	if err != nil || !ok {
		return "", false
	}
	return string(raw), true
}

// SaveActiveTag implements tag.Store.
func (s *Store) SaveActiveTag(t string) error {
	return s.backend.Set(activeTagKey, []byte(t))
}

// Close closes the backing storage.
func (s *Store) Close() error {
	return s.backend.Close()
}

func decodePayload(raw []byte) (*OverridePayload, error) {
	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	switch v := probe.(type) {
	case []any:
		// Version 0: a bare final array.
		return &OverridePayload{
			Version:       payloadVersion,
			OverridesByID: map[string]entity.Entity{},
			DeletedIDs:    []string{},
			LegacyItems:   toEntities(v),
		}, nil

	case map[string]any:
		version, _ := v["version"].(float64)
		if int(version) == 0 {
			// Version 0 object form: full array under "items".
			items, _ := v["items"].([]any)
			return &OverridePayload{
				Version:       payloadVersion,
				OverridesByID: map[string]entity.Entity{},
				DeletedIDs:    []string{},
				LegacyItems:   toEntities(items),
			}, nil
		}

		var payload OverridePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		if payload.OverridesByID == nil {
			payload.OverridesByID = map[string]entity.Entity{}
		}
		if payload.DeletedIDs == nil {
			payload.DeletedIDs = []string{}
		}
		return &payload, nil

	default:
		return nil, fmt.Errorf("unexpected payload shape %T", probe)
	}
}

func toEntities(arr []any) []entity.Entity {
	out := make([]entity.Entity, 0, len(arr))
	for _, elem := range arr {
		if m, ok := elem.(map[string]any); ok {
			out = append(out, entity.Entity(m))
		}
	}
	return out
}
