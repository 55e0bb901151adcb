// Package kv defines the persistent key/value store collaborator. STARTUP
// performs a write/read round-trip through it before any stage runs.
package kv

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/stagegate/internal/model"
)

// Store is a minimal persistent key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	values map[string]string
	mu     sync.RWMutex
}

// NewMemoryStore creates a new memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

// Get retrieves a value by key.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("key %s: %w", key, model.ErrNotFound)
	}
	return v, nil
}

// Put stores a value under a key.
func (s *MemoryStore) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

// RoundTrip writes a probe value and reads it back, confirming the store is
// usable. Used by the STARTUP precondition checks.
func RoundTrip(ctx context.Context, store Store, key, value string) error {
	if err := store.Put(ctx, key, value); err != nil {
		return fmt.Errorf("could not write probe key: %w", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("could not read probe key back: %w", err)
	}
	if got != value {
		return fmt.Errorf("probe value mismatch: wrote %q, read %q", value, got)
	}

	return nil
}
