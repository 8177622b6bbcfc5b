package jsonkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDeltaIdentical(t *testing.T) {
	cases := []any{
		nil,
		"s",
		float64(3),
		[]any{"a", map[string]any{"k": "v"}},
		map[string]any{"id": "e1", "nested": map[string]any{"x": float64(1)}},
	}
	for _, c := range cases {
		delta, changed := ComputeDelta(c, c)
		assert.False(t, changed)
		assert.Nil(t, delta)
	}
}

func TestComputeDeltaChangedField(t *testing.T) {
	base := map[string]any{"id": "e1", "title": "A", "color": "red"}
	edited := map[string]any{"id": "e1", "title": "B", "color": "red"}

	delta, changed := ComputeDelta(base, edited)
	require.True(t, changed)

	assert.Equal(t, map[string]any{"title": "B"}, delta)
}

func TestComputeDeltaAddedField(t *testing.T) {
	base := map[string]any{"id": "e1"}
	edited := map[string]any{"id": "e1", "note": "new"}

	delta, changed := ComputeDelta(base, edited)
	require.True(t, changed)

	assert.Equal(t, map[string]any{"note": "new"}, delta)
}

func TestComputeDeltaNestedObjectRecurses(t *testing.T) {
	base := map[string]any{
		"id":    "e1",
		"style": map[string]any{"color": "red", "size": float64(2)},
	}
	edited := map[string]any{
		"id":    "e1",
		"style": map[string]any{"color": "blue", "size": float64(2)},
	}

	delta, changed := ComputeDelta(base, edited)
	require.True(t, changed)

	assert.Equal(t, map[string]any{"style": map[string]any{"color": "blue"}}, delta)
}

func TestComputeDeltaArrayAtomic(t *testing.T) {
	base := map[string]any{"days": []any{"mon", "tue"}}
	edited := map[string]any{"days": []any{"mon", "wed"}}

	delta, changed := ComputeDelta(base, edited)
	require.True(t, changed)

	// Whole edited array, not an element-level diff.
	assert.Equal(t, map[string]any{"days": []any{"mon", "wed"}}, delta)
}

func TestComputeDeltaMergeInverse(t *testing.T) {
	// deepMerge(base, computeDelta(base, edited)) reconstructs edited for
	// object-shaped values without removed keys.
	base := map[string]any{
		"id":    "e1",
		"title": "A",
		"meta":  map[string]any{"color": "red", "depth": map[string]any{"n": float64(1)}},
	}
	edited := map[string]any{
		"id":    "e1",
		"title": "B",
		"meta":  map[string]any{"color": "red", "depth": map[string]any{"n": float64(2)}},
		"extra": true,
	}

	delta, changed := ComputeDelta(base, edited)
	require.True(t, changed)

	assert.True(t, DeepEqual(edited, DeepMerge(base, delta)))
}

func TestComputeDeltaTypeChangeReplaces(t *testing.T) {
	delta, changed := ComputeDelta("scalar", map[string]any{"k": "v"})
	require.True(t, changed)
	assert.Equal(t, map[string]any{"k": "v"}, delta)

	delta, changed = ComputeDelta(map[string]any{"k": "v"}, "scalar")
	require.True(t, changed)
	assert.Equal(t, "scalar", delta)
}

func TestDeltaKeysSorted(t *testing.T) {
	keys := DeltaKeys(map[string]any{"title": "B", "startTime": "19:00"})
	assert.Equal(t, []string{"startTime", "title"}, keys)

	assert.Nil(t, DeltaKeys("not-an-object"))
}
