package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowpoly/tagstack/internal/entity"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func TestValidateRoot(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.ValidateRoot(map[string]any{
		"updated":    "2026-08-01",
		"defaultTag": "main",
		"domains": map[string]any{
			"play.example.net": map[string]any{"tag": "blue", "note": "extra ok"},
		},
	}))

	// Domain entry missing its tag.
	assert.Error(t, v.ValidateRoot(map[string]any{
		"domains": map[string]any{
			"play.example.net": map[string]any{"note": "no tag"},
		},
	}))

	// Wrong type for defaultTag.
	assert.Error(t, v.ValidateRoot(map[string]any{"defaultTag": float64(3)}))
}

func TestValidateTagConfig(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.ValidateTagConfig(map[string]any{
		"parent": "main",
		"theme":  map[string]any{"accent": "teal"},
	}))

	assert.Error(t, v.ValidateTagConfig(map[string]any{"parent": float64(1)}))
}

func TestValidateEntities(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.ValidateEntities([]entity.Entity{
		{"id": "e1", "title": "Raid", "anything": []any{"goes"}},
		{"title": "no id is tolerated"},
		{"id": "e2", "deleted": true},
	}))

	assert.Error(t, v.ValidateEntities([]entity.Entity{
		{"id": float64(7)},
	}))

	assert.Error(t, v.ValidateEntities([]entity.Entity{
		{"id": "e1", "deleted": "yes"},
	}))
}
