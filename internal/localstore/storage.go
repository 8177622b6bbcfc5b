// Package localstore persists tenant-local state: the per-tag, per-kind
// override payloads and the last active tag.
//
// The backing store is a small key-value abstraction (the original system
// lived on browser localStorage). SQLiteStorage is the durable
// implementation; Memory serves tests and ephemeral runs. On top of the raw
// bytes, Store handles payload versioning, including the one-time migration
// of the legacy full-array format into the sparse override shape.
package localstore

// Storage is the raw key-value layer. Get returns ok=false for a missing
// key; errors are reserved for backend failures.
type Storage interface {
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Memory is an in-process Storage for tests and ephemeral sessions.
type Memory struct {
	m map[string][]byte
}

// NewMemory creates an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (s *Memory) Get(key string) ([]byte, bool, error) {
	v, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *Memory) Set(key string, value []byte) error {
	out := make([]byte, len(value))
	copy(out, value)
	s.m[key] = out
	return nil
}

func (s *Memory) Delete(key string) error {
	delete(s.m, key)
	return nil
}

func (s *Memory) Close() error { return nil }
