package diff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowpoly/tagstack/internal/compose"
	"github.com/lowpoly/tagstack/internal/entity"
)

type fakeComposer struct {
	events       []entity.Entity
	tips         []entity.Entity
	parentExists bool
}

func (f *fakeComposer) ComposeParentChain(_ context.Context, _ string, _ compose.Options) ([]entity.Entity, []entity.Entity, bool) {
	return f.events, f.tips, f.parentExists
}

func TestComputeIndexNoParent(t *testing.T) {
	composer := &fakeComposer{parentExists: false}
	effective := []entity.Entity{{"id": "e1", "title": "only here"}}

	idx := ComputeIndex(context.Background(), composer, effective, nil, "orphan")

	assert.False(t, idx.HasParent)
	require.Contains(t, idx.Events, "e1")
	assert.True(t, idx.Events["e1"].NewInTag)
	assert.Empty(t, idx.Events["e1"].OverrideKeys)
}

func TestComputeIndexOverrideKeys(t *testing.T) {
	composer := &fakeComposer{
		parentExists: true,
		events: []entity.Entity{
			{"id": "e1", "title": "parent title", "start": "18:00", "color": "red"},
			{"id": "e2", "title": "untouched"},
		},
	}
	effective := []entity.Entity{
		{"id": "e1", "title": "child title", "start": "20:00", "color": "red"},
		{"id": "e2", "title": "untouched"},
		{"id": "e3", "title": "child only"},
	}

	idx := ComputeIndex(context.Background(), composer, effective, nil, "child")
	require.True(t, idx.HasParent)

	// Changed fields only, sorted; equal fields never listed.
	assert.Equal(t, []string{"start", "title"}, idx.Events["e1"].OverrideKeys)
	assert.False(t, idx.Events["e1"].NewInTag)

	assert.Empty(t, idx.Events["e2"].OverrideKeys)
	assert.False(t, idx.Events["e2"].NewInTag)

	assert.True(t, idx.Events["e3"].NewInTag)
}

func TestComputeIndexTipsIndependentOfEvents(t *testing.T) {
	composer := &fakeComposer{
		parentExists: true,
		tips:         []entity.Entity{{"id": "t1", "text": "old advice"}},
	}
	tips := []entity.Entity{{"id": "t1", "text": "new advice"}}

	idx := ComputeIndex(context.Background(), composer, nil, tips, "child")
	assert.Equal(t, []string{"text"}, idx.Tips["t1"].OverrideKeys)
	assert.Empty(t, idx.Events)
}
