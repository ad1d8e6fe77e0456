package cache

import (
	"context"
	"sync"

	"github.com/moznion/go-optional"
)

// Memory is an in-process Cache used by backtests and tests. It follows the
// Redis hash semantics: HSet merges fields into the existing hash, so
// entries absent from a later write keep their previous value.
type Memory struct {
	mu     sync.RWMutex
	hashes map[string]map[string]string
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		hashes: make(map[string]map[string]string),
	}
}

// HSet implements Cache.
func (m *Memory) HSet(_ context.Context, name string, mapping map[string]string) error {
	if len(mapping) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	hash, ok := m.hashes[name]
	if !ok {
		hash = make(map[string]string, len(mapping))
		m.hashes[name] = hash
	}

	for key, value := range mapping {
		hash[key] = value
	}

	return nil
}

// HGet implements Cache.
func (m *Memory) HGet(_ context.Context, name string, key string) (optional.Option[string], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.hashes[name][key]
	if !ok {
		return optional.None[string](), nil
	}

	return optional.Some(value), nil
}

var _ Cache = (*Memory)(nil)
