// Package tag resolves which configuration tenant ("tag") is active and
// broadcasts transitions to subscribers.
//
// Tags name nodes in the configuration inheritance forest: each deployment
// variant (a game server, a test sandbox) is one tag, and a tag's layer data
// is fetched under its name. Resolution order, first match wins:
//
//  1. explicit query value (checked live on every resolution, so a session
//     pinned by URL stays pinned regardless of stored state)
//  2. previously persisted active tag
//  3. tag mapped from the request hostname by the root document
//  4. the root document's default tag
//  5. the hardcoded fallback
package tag

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Store persists the last active tag between sessions. Implemented by
// internal/localstore; kept as a two-method interface so tests can use an
// in-memory fake.
type Store interface {
	LoadActiveTag() (string, bool)
	SaveActiveTag(tag string) error
}

// Sanitize normalizes a raw tag: lowercased, with everything outside
// [a-z0-9_-] stripped. ok is false when nothing survives, and the caller
// falls through to the next resolution source.
func Sanitize(raw string) (string, bool) {
	lowered := strings.ToLower(raw)
	var b strings.Builder
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return "", false
	}
	return out, true
}

// Listener receives tag transitions. Registered after a transition, it will
// not retroactively receive it; there is no replay.
type Listener func(oldTag, newTag string)

// Resolver owns the active-tag state for one client instance.
type Resolver struct {
	// QueryTag returns the live query-string value, or "" when absent.
	// Checked on every Resolve call, never cached.
	QueryTag func() string

	// Hostname is the request host used for domain-map resolution.
	Hostname string

	// Fallback is the hardcoded last-resort tag. May be empty.
	Fallback string

	store Store

	mu        sync.Mutex
	active    string
	listeners map[int]Listener
	nextID    int
}

// NewResolver creates a resolver persisting through store. store may be nil
// for ephemeral (test) use.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:     store,
		listeners: make(map[int]Listener),
	}
}

// Resolve determines the active tag using the documented source order.
// domains maps hostname to tag and defaultTag is the root document's
// fallback; both may be empty when the root document failed to load.
// Returns an error only when no source yields a tag - a deployment with no
// default configured anywhere is a programmer error and fatal to first load.
func (r *Resolver) Resolve(domains map[string]string, defaultTag string) (string, error) {
	if r.QueryTag != nil {
		if t, ok := Sanitize(r.QueryTag()); ok {
			return t, nil
		}
	}
	if r.store != nil {
		if stored, ok := r.store.LoadActiveTag(); ok {
			if t, ok := Sanitize(stored); ok {
				return t, nil
			}
		}
	}
	if mapped, ok := domains[r.Hostname]; ok {
		if t, ok := Sanitize(mapped); ok {
			return t, nil
		}
	}
	if t, ok := Sanitize(defaultTag); ok {
		return t, nil
	}
	if t, ok := Sanitize(r.Fallback); ok {
		return t, nil
	}
	return "", fmt.Errorf("no tag resolvable: no query value, stored tag, domain mapping, or default configured")
}

// Active returns the current active tag ("" before the first SetActive).
func (r *Resolver) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// SetActive sanitizes and activates a tag. A no-op when the sanitized value
// matches the current tag. Otherwise the value is persisted and every
// listener is notified synchronously, in registration-independent order.
// A panicking listener is isolated so it cannot block the others.
func (r *Resolver) SetActive(raw string) error {
	t, ok := Sanitize(raw)
	if !ok {
		return fmt.Errorf("set active tag: %q sanitizes to nothing", raw)
	}

	r.mu.Lock()
	if r.active == t {
		r.mu.Unlock()
		return nil
	}
	old := r.active
	r.active = t
	listeners := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		listeners = append(listeners, l)
	}
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveActiveTag(t); err != nil {
			slog.Warn("persisting active tag failed", "tag", t, "err", err)
		}
	}

	for _, l := range listeners {
		notify(l, old, t)
	}
	return nil
}

// notify invokes one listener, swallowing panics so a bad subscriber cannot
// prevent the rest from observing the transition.
func notify(l Listener, old, new string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("tag change listener panicked", "err", rec)
		}
	}()
	l(old, new)
}

// Subscribe registers a listener for future transitions and returns its
// unsubscribe function. Unsubscribing twice is harmless.
func (r *Resolver) Subscribe(l Listener) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}
