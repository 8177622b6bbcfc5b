package compose

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lowpoly/tagstack/internal/entity"
	"github.com/lowpoly/tagstack/internal/jsonkit"
	"github.com/lowpoly/tagstack/internal/remote"
)

// DeltaFiles is the publishable override set for one tag: the minimal files
// a tenant ships to override its parent chain. The mirror image of
// ComposeFromLayers.
type DeltaFiles struct {
	Tag     string
	Updated string

	Config remote.TagConfig // the tag's own conf.json, parent pointer intact
	Events []entity.Entity  // per-entity deltas plus {id, deleted:true} tombstones
	Tips   []entity.Entity

	// Snapshot fingerprints of the effective sets the deltas were derived
	// from; a re-export with equal hashes changed nothing.
	EventsHash string
	TipsHash   string
}

// BuildChildDeltaFiles derives the delta files for tagName from its current
// effective entity sets. The parent chain (excluding the tag's own layer) is
// recomposed fresh; each effective entity contributes the minimal delta
// against its parent version (full entity when the parent chain has no
// counterpart), and each parent entity missing from the effective set
// contributes a tombstone.
func (c *Client) BuildChildDeltaFiles(ctx context.Context, effectiveEvents, effectiveTips []entity.Entity, tagName string) (*DeltaFiles, error) {
	parentEvents, parentTips, _ := c.ComposeParentChain(ctx, tagName, Options{})

	out := &DeltaFiles{
		Tag:     tagName,
		Updated: c.clock.Now().UTC().Format(time.RFC3339),
		Config:  c.LeafConfig(ctx, tagName),
		Events:  deriveDeltaEntities(effectiveEvents, parentEvents),
		Tips:    deriveDeltaEntities(effectiveTips, parentTips),
	}

	var err error
	if out.EventsHash, err = entity.SnapshotHash(effectiveEvents); err != nil {
		return nil, fmt.Errorf("build delta files: %w", err)
	}
	if out.TipsHash, err = entity.SnapshotHash(effectiveTips); err != nil {
		return nil, fmt.Errorf("build delta files: %w", err)
	}
	return out, nil
}

// deriveDeltaEntities computes the per-entity delta list for one kind.
func deriveDeltaEntities(effective, parent []entity.Entity) []entity.Entity {
	parentByID := entity.BuildIDMap(parent)
	out := make([]entity.Entity, 0, len(effective))
	seen := map[string]bool{}

	for _, item := range effective {
		id, ok := item.ID()
		if !ok {
			continue
		}
		seen[id] = true

		parentItem, hasParent := parentByID[id]
		if !hasParent {
			// New in this tag: publish the full entity.
			out = append(out, item.Clone())
			continue
		}

		delta, changed := jsonkit.ComputeDelta(map[string]any(parentItem), map[string]any(item))
		if !changed {
			continue
		}
		deltaMap, ok := delta.(map[string]any)
		if !ok || len(deltaMap) == 0 {
			continue
		}
		deltaMap["id"] = id
		out = append(out, entity.Entity(deltaMap))
	}

	// Parent entities removed locally become tombstones.
	for _, parentItem := range parent {
		id, ok := parentItem.ID()
		if !ok || seen[id] {
			continue
		}
		out = append(out, entity.Tombstone(id))
	}

	return out
}

// MarshalConfigFile renders conf.json with a refreshed updated stamp.
func (d *DeltaFiles) MarshalConfigFile() ([]byte, error) {
	cfg := map[string]any{}
	if d.Config != nil {
		cfg = jsonkit.CloneMap(map[string]any(d.Config))
	}
	cfg["updated"] = d.Updated
	return jsonkit.MarshalCanonical(cfg)
}

// MarshalEntityFile renders events.json or tips.json for the given kind.
func (d *DeltaFiles) MarshalEntityFile(kind entity.Kind) ([]byte, error) {
	var items []entity.Entity
	var hash string
	switch kind {
	case entity.KindEvents:
		items, hash = d.Events, d.EventsHash
	case entity.KindTips:
		items, hash = d.Tips, d.TipsHash
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}

	arr := make([]any, len(items))
	for i, item := range items {
		arr[i] = map[string]any(item)
	}
	doc := map[string]any{
		"updated":  d.Updated,
		"snapshot": hash,
	}
	doc[string(kind)] = arr
	return jsonkit.MarshalCanonical(doc)
}

// WriteArchive writes the all-in-one artifact: a zip bundling conf.json,
// events.json, and tips.json under the tag's directory name.
func (d *DeltaFiles) WriteArchive(w io.Writer) error {
	zw := zip.NewWriter(w)

	files := []struct {
		name    string
		marshal func() ([]byte, error)
	}{
		{d.Tag + "/conf.json", d.MarshalConfigFile},
		{d.Tag + "/events.json", func() ([]byte, error) { return d.MarshalEntityFile(entity.KindEvents) }},
		{d.Tag + "/tips.json", func() ([]byte, error) { return d.MarshalEntityFile(entity.KindTips) }},
	}

	for _, f := range files {
		data, err := f.marshal()
		if err != nil {
			return fmt.Errorf("archive %s: %w", f.name, err)
		}
		fw, err := zw.Create(f.name)
		if err != nil {
			return fmt.Errorf("archive %s: %w", f.name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("archive %s: %w", f.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}
