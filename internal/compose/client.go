// Package compose turns a tag's ancestry chain into one effective dataset.
//
// A tag's config document may carry a parent pointer; the walker follows the
// chain to its root (bounded, cycle-tolerant), fetches each tag's layer, and
// deep-merges the layers root to leaf so child fields win per-field while
// untouched parent fields survive. Composed bundles are cached per tag with
// a TTL, concurrent fetches for the same tag are coalesced into a single
// round trip, and force refreshes are generation-stamped so a stale in-
// flight resolution can never overwrite fresher data.
package compose

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/lowpoly/tagstack/internal/entity"
	"github.com/lowpoly/tagstack/internal/localstore"
	"github.com/lowpoly/tagstack/internal/remote"
	"github.com/lowpoly/tagstack/internal/schema"
	"github.com/lowpoly/tagstack/internal/tag"
)

// MaxAncestryDepth bounds the parent-pointer walk. A chain longer than this
// is almost certainly a cycle in the published configs; the walk truncates
// with a warning rather than failing the load.
const MaxAncestryDepth = 16

// Bundle is the materialized result of composing a tag's full ancestry.
type Bundle struct {
	Tag       string
	Events    []entity.Entity
	Tips      []entity.Entity
	TagConfig remote.TagConfig
	Updated   string
}

// EmptyBundle is what callers receive when nothing could be loaded. Not
// necessarily an error: a fresh deployment legitimately has no documents.
func EmptyBundle(tagName string) *Bundle {
	return &Bundle{Tag: tagName, Events: []entity.Entity{}, Tips: []entity.Entity{}}
}

// Options adjusts a single FetchBundle call.
type Options struct {
	// SurfaceAncestorOverrides injects each ancestry tag's stored local
	// overrides while composing, making ancestor edits visible to
	// descendants. Used for diff computation and admin cross-tag editing.
	SurfaceAncestorOverrides bool
}

// Config assembles a Client.
type Config struct {
	Remote    *remote.Client
	Resolver  *tag.Resolver
	Store     *localstore.Store // optional; needed for ancestor override surfacing
	Validator *schema.Validator // optional; nil skips ingest validation
	Cache     *Cache            // optional; a DefaultTTL cache is created when nil
	Clock     Clock             // optional; wall clock when nil
	MaxDepth  int               // optional; MaxAncestryDepth when zero
}

// Client owns the fetch/compose pipeline and all its bookkeeping. All state
// is instance-local by design: tests get isolation from fresh instances.
type Client struct {
	remote    *remote.Client
	resolver  *tag.Resolver
	store     *localstore.Store
	validator *schema.Validator
	cache     *Cache
	clock     Clock
	maxDepth  int

	mu         sync.Mutex
	inFlight   map[string]*inFlight
	generation map[string]uint64
}

// inFlight is one in-progress compose for a tag. Concurrent callers wait on
// done and share the result instead of issuing their own round trips.
type inFlight struct {
	done   chan struct{}
	bundle *Bundle
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) *Client {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewCache(DefaultTTL, clock)
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = MaxAncestryDepth
	}
	return &Client{
		remote:     cfg.Remote,
		resolver:   cfg.Resolver,
		store:      cfg.Store,
		validator:  cfg.Validator,
		cache:      cache,
		clock:      clock,
		maxDepth:   maxDepth,
		inFlight:   make(map[string]*inFlight),
		generation: make(map[string]uint64),
	}
}

// Cache exposes the client's cache, mainly so admin commands can invalidate
// after a publish.
func (c *Client) CacheRef() *Cache { return c.cache }

// FetchBundle is the top-level entry: fetch the root document, resolve the
// active tag, persist the resolution, and compose that tag's ancestry.
//
// Failures below tag resolution degrade to an empty bundle - callers treat
// an empty bundle as "nothing loaded", not necessarily an error. The only
// returned error is an unresolvable tag, which is fatal to first load.
func (c *Client) FetchBundle(ctx context.Context, force bool, opts Options) (*Bundle, error) {
	root := c.fetchRoot(ctx, force)

	domains := map[string]string{}
	defaultTag := ""
	if root != nil {
		domains = root.Domains
		defaultTag = root.DefaultTag
	}

	tagName, err := c.resolver.Resolve(domains, defaultTag)
	if err != nil {
		return nil, err
	}
	if err := c.resolver.SetActive(tagName); err != nil {
		return nil, err
	}

	return c.ComposeTag(ctx, tagName, force, opts), nil
}

// fetchRoot returns the root document, cached separately from bundles.
// Absent or invalid roots degrade to nil.
func (c *Client) fetchRoot(ctx context.Context, force bool) *remote.RootDoc {
	if !force {
		if doc, ok := c.cache.GetRoot(); ok {
			return doc
		}
	} else {
		c.cache.InvalidateRoot()
	}

	// The root decoder already enforces the document's shape; schema
	// validation applies to the open-struct documents (tag configs,
	// entity arrays) where decoding alone proves nothing.
	doc, err := c.remote.FetchRoot(ctx)
	if err != nil {
		slog.Warn("root document absent", "err", err)
		return nil
	}
	c.cache.PutRoot(doc)
	return doc
}

// ComposeTag returns the composed bundle for a tag, honoring cache,
// in-flight coalescing, and the generation stamp.
func (c *Client) ComposeTag(ctx context.Context, tagName string, force bool, opts Options) *Bundle {
	// Ancestor-override composition is never cached or coalesced: it
	// depends on mutable local state, not just published documents.
	if opts.SurfaceAncestorOverrides {
		return c.composeNow(ctx, tagName, opts)
	}

	c.mu.Lock()
	if !force {
		if bundle, ok := c.cache.Get(tagName); ok {
			c.mu.Unlock()
			return bundle
		}
		if pending, ok := c.inFlight[tagName]; ok {
			c.mu.Unlock()
			<-pending.done
			return pending.bundle
		}
	} else {
		// Force refresh: advance the generation so any outstanding fetch
		// for this tag resolves stale, then clear cache and coalescing.
		c.generation[tagName]++
		c.cache.Invalidate(tagName)
		delete(c.inFlight, tagName)
	}

	pending := &inFlight{done: make(chan struct{})}
	c.inFlight[tagName] = pending
	gen := c.generation[tagName]
	c.mu.Unlock()

	bundle := c.composeNow(ctx, tagName, opts)

	c.mu.Lock()
	if c.generation[tagName] == gen {
		c.cache.Put(tagName, bundle)
		if c.inFlight[tagName] == pending {
			delete(c.inFlight, tagName)
		}
	} else {
		// A force refresh superseded this fetch while it was in flight.
		slog.Debug("discarding stale composition", "tag", tagName, "generation", gen)
	}
	c.mu.Unlock()

	pending.bundle = bundle
	close(pending.done)
	return bundle
}

// composeNow walks the ancestry and composes, bypassing all bookkeeping.
func (c *Client) composeNow(ctx context.Context, tagName string, opts Options) *Bundle {
	layers := c.buildAncestry(ctx, tagName)
	if len(layers) == 0 {
		return EmptyBundle(tagName)
	}

	var localByTag map[string]LocalOverrides
	if opts.SurfaceAncestorOverrides && c.store != nil {
		localByTag = make(map[string]LocalOverrides, len(layers))
		for _, layer := range layers {
			localByTag[layer.Tag] = c.loadLocal(layer.Tag)
		}
	}

	events, tips, config := ComposeFromLayers(layers, localByTag)
	bundle := &Bundle{Tag: tagName, Events: events, Tips: tips, TagConfig: config}
	if config != nil {
		bundle.Updated = config.Updated()
	}
	return bundle
}

// loadLocal reads one tag's stored override state for both kinds.
func (c *Client) loadLocal(tagName string) LocalOverrides {
	ev := c.store.LoadOverrides(tagName, entity.KindEvents)
	tp := c.store.LoadOverrides(tagName, entity.KindTips)
	return LocalOverrides{
		Events: entity.OverrideState{OverridesByID: ev.OverridesByID, DeletedIDs: ev.DeletedIDs},
		Tips:   entity.OverrideState{OverridesByID: tp.OverridesByID, DeletedIDs: tp.DeletedIDs},
	}
}

// buildAncestry walks the parent chain starting at leafTag and returns the
// layers ordered root first. The walk is strictly sequential: each parent
// is only known after its child's config document arrives.
func (c *Client) buildAncestry(ctx context.Context, leafTag string) []*Layer {
	var chain []*Layer
	visited := map[string]bool{}
	current := leafTag

	for depth := 0; depth < c.maxDepth; depth++ {
		if visited[current] {
			slog.Warn("ancestry cycle truncated",
				"tag", leafTag,
				"path", ancestryPath(chain, current))
			break
		}
		visited[current] = true

		layer := c.fetchLayer(ctx, current)
		chain = append(chain, layer)

		parent, ok := layer.Parent()
		if !ok {
			break
		}
		if sanitized, valid := tag.Sanitize(parent); valid {
			current = sanitized
		} else {
			slog.Warn("unusable parent pointer ignored", "tag", layer.Tag, "parent", parent)
			break
		}

		if depth == c.maxDepth-1 {
			slog.Warn("ancestry depth bound reached, chain truncated",
				"tag", leafTag, "depth", c.maxDepth)
		}
	}

	// Walked leaf to root; composition wants root first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func ancestryPath(chain []*Layer, repeated string) string {
	parts := make([]string, 0, len(chain)+1)
	for _, layer := range chain {
		parts = append(parts, layer.Tag)
	}
	parts = append(parts, repeated)
	return strings.Join(parts, " -> ")
}

// Ancestry returns the tag names of a tag's chain, ordered root first and
// ending with the tag itself. Diagnostic use; always walks fresh.
func (c *Client) Ancestry(ctx context.Context, tagName string) []string {
	layers := c.buildAncestry(ctx, tagName)
	out := make([]string, len(layers))
	for i, layer := range layers {
		out[i] = layer.Tag
	}
	return out
}

// ComposeParentChain composes only the parent chain of a tag, excluding the
// tag's own layer. parentExists is false when the tag has no parent (or its
// config is absent); the entity slices are then empty.
//
// Always recomposed fresh, never cached: the callers (diff inspector, delta
// export) trade performance for correctness against concurrent edits.
func (c *Client) ComposeParentChain(ctx context.Context, tagName string, opts Options) (events, tips []entity.Entity, parentExists bool) {
	leaf := c.fetchLayer(ctx, tagName)
	parent, ok := leaf.Parent()
	if !ok {
		return nil, nil, false
	}
	sanitized, valid := tag.Sanitize(parent)
	if !valid {
		return nil, nil, false
	}

	layers := c.buildAncestry(ctx, sanitized)
	if len(layers) == 0 {
		return nil, nil, false
	}

	var localByTag map[string]LocalOverrides
	if opts.SurfaceAncestorOverrides && c.store != nil {
		localByTag = make(map[string]LocalOverrides, len(layers))
		for _, layer := range layers {
			localByTag[layer.Tag] = c.loadLocal(layer.Tag)
		}
	}

	events, tips, _ = ComposeFromLayers(layers, localByTag)
	return events, tips, true
}

// LeafConfig fetches a tag's own (non-composed) config document.
func (c *Client) LeafConfig(ctx context.Context, tagName string) remote.TagConfig {
	return c.fetchLayer(ctx, tagName).Config
}
