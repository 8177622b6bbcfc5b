package compose

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowpoly/tagstack/internal/entity"
	"github.com/lowpoly/tagstack/internal/remote"
)

func TestBuildChildDeltaFiles(t *testing.T) {
	rig := newTestRig(t)
	rig.transport.SetJSON("/root/events.json",
		`[{"id":"e1","title":"A","color":"red"},{"id":"e2","title":"doomed"}]`)
	rig.transport.SetJSON("/leaf/conf.json", `{"parent":"root","theme":"dark"}`)

	effective := []entity.Entity{
		{"id": "e1", "title": "B", "color": "red"},
		{"id": "e3", "title": "new in leaf"},
	}

	files, err := rig.client.BuildChildDeltaFiles(context.Background(), effective, nil, "leaf")
	require.NoError(t, err)

	require.Len(t, files.Events, 3)

	// Changed entity: only the changed field plus the id.
	assert.Equal(t, entity.Entity{"id": "e1", "title": "B"}, files.Events[0])

	// New in this tag: the full entity.
	assert.Equal(t, entity.Entity{"id": "e3", "title": "new in leaf"}, files.Events[1])

	// Removed parent entity: a tombstone.
	assert.Equal(t, entity.Tombstone("e2"), files.Events[2])

	assert.Empty(t, files.Tips)
	assert.NotEmpty(t, files.EventsHash)
	assert.Equal(t, "dark", files.Config["theme"])
}

func TestBuildChildDeltaFilesUnchangedEntityOmitted(t *testing.T) {
	rig := newTestRig(t)
	rig.transport.SetJSON("/root/events.json", `[{"id":"e1","title":"same"}]`)
	rig.transport.SetJSON("/leaf/conf.json", `{"parent":"root"}`)

	effective := []entity.Entity{{"id": "e1", "title": "same"}}
	files, err := rig.client.BuildChildDeltaFiles(context.Background(), effective, nil, "leaf")
	require.NoError(t, err)
	assert.Empty(t, files.Events)
}

func TestBuildChildDeltaFilesNoParentEmitsEverything(t *testing.T) {
	rig := newTestRig(t)
	rig.transport.SetJSON("/orphan/conf.json", `{"updated":"2026-01-01"}`)

	effective := []entity.Entity{{"id": "e1", "title": "standalone"}}
	files, err := rig.client.BuildChildDeltaFiles(context.Background(), effective, nil, "orphan")
	require.NoError(t, err)
	require.Len(t, files.Events, 1)
	assert.Equal(t, entity.Entity{"id": "e1", "title": "standalone"}, files.Events[0])
}

func TestDeltaFilesEntityFileGolden(t *testing.T) {
	files := &DeltaFiles{
		Tag:     "leaf",
		Updated: "2026-03-01T12:00:00Z",
		Events: []entity.Entity{
			{"id": "e1", "title": "B"},
			entity.Tombstone("e2"),
			{"id": "e3", "title": "new in leaf", "color": "blue"},
		},
		EventsHash: "snap-events",
	}

	data, err := files.MarshalEntityFile(entity.KindEvents)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "delta_events", data)
}

func TestDeltaFilesConfigFileStampsUpdated(t *testing.T) {
	files := &DeltaFiles{
		Tag:     "leaf",
		Updated: "2026-03-01T12:00:00Z",
		Config:  remote.TagConfig{"parent": "root", "updated": "2020-01-01"},
	}

	data, err := files.MarshalConfigFile()
	require.NoError(t, err)
	assert.Equal(t, `{"parent":"root","updated":"2026-03-01T12:00:00Z"}`, string(data))
}

func TestDeltaFilesWriteArchive(t *testing.T) {
	files := &DeltaFiles{
		Tag:     "leaf",
		Updated: "2026-03-01T12:00:00Z",
		Config:  remote.TagConfig{"parent": "root"},
		Events:  []entity.Entity{{"id": "e1", "title": "B"}},
	}

	var buf bytes.Buffer
	require.NoError(t, files.WriteArchive(&buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	contents := map[string]string{}
	for _, f := range zr.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		contents[f.Name] = string(data)
	}

	assert.ElementsMatch(t, []string{"leaf/conf.json", "leaf/events.json", "leaf/tips.json"}, names)
	assert.Contains(t, contents["leaf/events.json"], `"title":"B"`)
	assert.Contains(t, contents["leaf/conf.json"], `"parent":"root"`)
}
