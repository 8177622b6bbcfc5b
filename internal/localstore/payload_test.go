package localstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowpoly/tagstack/internal/entity"
)

func TestLoadOverridesMissingKey(t *testing.T) {
	s := NewStore(NewMemory())

	p := s.LoadOverrides("blue", entity.KindEvents)

	assert.Equal(t, payloadVersion, p.Version)
	assert.Empty(t, p.OverridesByID)
	assert.Empty(t, p.DeletedIDs)
	assert.Nil(t, p.LegacyItems)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(NewMemory())

	p := EmptyPayload()
	p.OverridesByID["e1"] = entity.Entity{"id": "e1", "title": "local edit"}
	p.DeletedIDs = []string{"e2"}
	require.NoError(t, s.SaveOverrides("blue", entity.KindEvents, p))

	got := s.LoadOverrides("blue", entity.KindEvents)

	assert.Equal(t, "local edit", got.OverridesByID["e1"]["title"])
	assert.Equal(t, []string{"e2"}, got.DeletedIDs)
	assert.Nil(t, got.LegacyItems)

	// Kinds and tags are isolated slots.
	assert.Empty(t, s.LoadOverrides("blue", entity.KindTips).OverridesByID)
	assert.Empty(t, s.LoadOverrides("red", entity.KindEvents).OverridesByID)
}

func TestLoadOverridesLegacyBareArray(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Set("overrides/blue/events",
		[]byte(`[{"id": "e1", "title": "old format"}, "stray"]`)))

	got := NewStore(backend).LoadOverrides("blue", entity.KindEvents)

	assert.Equal(t, payloadVersion, got.Version)
	require.Len(t, got.LegacyItems, 1)
	assert.Equal(t, "old format", got.LegacyItems[0]["title"])
	assert.Empty(t, got.OverridesByID)
}

func TestLoadOverridesLegacyVersionZeroObject(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Set("overrides/blue/tips",
		[]byte(`{"version": 0, "items": [{"id": "t1"}]}`)))

	got := NewStore(backend).LoadOverrides("blue", entity.KindTips)

	require.Len(t, got.LegacyItems, 1)
	id, _ := got.LegacyItems[0].ID()
	assert.Equal(t, "t1", id)
}

func TestLoadOverridesCorruptPayload(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Set("overrides/blue/events", []byte(`{{{not json`)))

	got := NewStore(backend).LoadOverrides("blue", entity.KindEvents)

	assert.Empty(t, got.OverridesByID)
	assert.Empty(t, got.DeletedIDs)
}

func TestLoadOverridesUnexpectedShape(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Set("overrides/blue/events", []byte(`"a string"`)))

	got := NewStore(backend).LoadOverrides("blue", entity.KindEvents)

	assert.Empty(t, got.OverridesByID)
}

func TestActiveTagRoundTrip(t *testing.T) {
	s := NewStore(NewMemory())

	_, ok := s.LoadActiveTag()
	assert.False(t, ok)

	require.NoError(t, s.SaveActiveTag("blue"))
	got, ok := s.LoadActiveTag()
	require.True(t, ok)
	assert.Equal(t, "blue", got)
}

func TestClearOverrides(t *testing.T) {
	s := NewStore(NewMemory())

	p := EmptyPayload()
	p.DeletedIDs = []string{"x"}
	require.NoError(t, s.SaveOverrides("blue", entity.KindEvents, p))
	require.NoError(t, s.ClearOverrides("blue", entity.KindEvents))

	assert.Empty(t, s.LoadOverrides("blue", entity.KindEvents).DeletedIDs)
}
