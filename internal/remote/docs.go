package remote

import (
	"encoding/json"
	"fmt"

	"github.com/lowpoly/tagstack/internal/entity"
)

// Kind aliases entity.Kind for convenient use at the fetch boundary.
type Kind = entity.Kind

const (
	KindEvents = entity.KindEvents
	KindTips   = entity.KindTips
)

// RootDoc is the top-level document: which tag a hostname maps to and the
// deployment-wide default tag.
//
// Wire shape: {"updated": ..., "domains": {"host": {"tag": "x"}}, "defaultTag": "y"}
type RootDoc struct {
	Updated    string
	Domains    map[string]string // hostname -> tag, flattened from the wire shape
	DefaultTag string
}

// TagConfig is one tag's own config document: an optional parent pointer
// plus arbitrary tag metadata that the composition engine carries through
// untouched.
type TagConfig map[string]any

// Parent returns the tag's parent pointer, if any.
func (c TagConfig) Parent() (string, bool) {
	p, ok := c["parent"].(string)
	if !ok || p == "" {
		return "", false
	}
	return p, true
}

// Updated returns the document's updated stamp, if present.
func (c TagConfig) Updated() string {
	u, _ := c["updated"].(string)
	return u
}

// EntityDoc is one tag's events or tips document.
type EntityDoc struct {
	Updated string
	Items   []entity.Entity
}

func decodeRootDoc(data []byte) (*RootDoc, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode root document: %w", err)
	}

	doc := &RootDoc{Domains: map[string]string{}}
	doc.Updated, _ = raw["updated"].(string)
	doc.DefaultTag, _ = raw["defaultTag"].(string)

	if domains, ok := raw["domains"].(map[string]any); ok {
		for host, v := range domains {
			entry, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := entry["tag"].(string); ok && t != "" {
				doc.Domains[host] = t
			}
		}
	}
	return doc, nil
}

func decodeTagConfig(data []byte) (TagConfig, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode tag config: %w", err)
	}
	return TagConfig(raw), nil
}

// decodeEntityDoc accepts both document shapes: a wrapper object
// {"updated": ..., "<kind>": [...]} and a bare array. The bare form has no
// updated stamp unless the first item carries one.
func decodeEntityDoc(data []byte, kind Kind) (*EntityDoc, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s document: %w", kind, err)
	}

	doc := &EntityDoc{}
	switch v := raw.(type) {
	case []any:
		doc.Items = toEntities(v)
		if len(doc.Items) > 0 {
			doc.Updated, _ = doc.Items[0]["updated"].(string)
		}
	case map[string]any:
		doc.Updated, _ = v["updated"].(string)
		arr, _ := v[string(kind)].([]any)
		doc.Items = toEntities(arr)
	default:
		return nil, fmt.Errorf("decode %s document: unexpected shape %T", kind, raw)
	}
	return doc, nil
}

// toEntities converts decoded array elements, skipping anything that is not
// an object. Stray scalars in hand-edited documents are tolerated.
func toEntities(arr []any) []entity.Entity {
	out := make([]entity.Entity, 0, len(arr))
	for _, elem := range arr {
		if m, ok := elem.(map[string]any); ok {
			out = append(out, entity.Entity(m))
		}
	}
	return out
}
