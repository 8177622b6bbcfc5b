package compose

import (
	"context"
	"log/slog"

	"github.com/lowpoly/tagstack/internal/entity"
	"github.com/lowpoly/tagstack/internal/remote"
)

// Layer is one tag's own contributed data: its config document and its
// entity documents, with tombstones (deleted: true records) split out of the
// content arrays.
type Layer struct {
	Tag    string
	Config remote.TagConfig // nil when conf.json is absent

	Events          []entity.Entity
	EventTombstones map[string]bool
	Tips            []entity.Entity
	TipTombstones   map[string]bool
}

// Parent returns the layer's parent pointer, if its config declares one.
func (l *Layer) Parent() (string, bool) {
	if l.Config == nil {
		return "", false
	}
	return l.Config.Parent()
}

// fetchLayer loads one tag's documents. It never fails: an absent, invalid,
// or unreachable document yields an empty slot with a diagnostic, so a
// broken layer degrades the composed result instead of blanking it.
func (c *Client) fetchLayer(ctx context.Context, tagName string) *Layer {
	layer := &Layer{
		Tag:             tagName,
		EventTombstones: map[string]bool{},
		TipTombstones:   map[string]bool{},
	}

	cfg, err := c.remote.FetchTagConfig(ctx, tagName)
	if err != nil {
		slog.Warn("tag config absent", "tag", tagName, "err", err)
	} else if c.validator != nil {
		if verr := c.validator.ValidateTagConfig(map[string]any(cfg)); verr != nil {
			slog.Warn("tag config rejected by schema", "tag", tagName, "err", verr)
			cfg = nil
		}
	}
	layer.Config = cfg

	layer.Events, layer.EventTombstones = c.fetchLayerEntities(ctx, tagName, entity.KindEvents)
	layer.Tips, layer.TipTombstones = c.fetchLayerEntities(ctx, tagName, entity.KindTips)
	return layer
}

func (c *Client) fetchLayerEntities(ctx context.Context, tagName string, kind entity.Kind) ([]entity.Entity, map[string]bool) {
	tombstones := map[string]bool{}

	doc, err := c.remote.FetchEntities(ctx, tagName, kind)
	if err != nil {
		slog.Warn("entity document absent", "tag", tagName, "kind", kind, "err", err)
		return nil, tombstones
	}
	if c.validator != nil {
		if verr := c.validator.ValidateEntities(doc.Items); verr != nil {
			slog.Warn("entity document rejected by schema", "tag", tagName, "kind", kind, "err", verr)
			return nil, tombstones
		}
	}

	items := make([]entity.Entity, 0, len(doc.Items))
	for _, item := range doc.Items {
		id, ok := item.ID()
		if !ok {
			continue
		}
		if item.Deleted() {
			tombstones[id] = true
			continue
		}
		items = append(items, item)
	}
	return items, tombstones
}
