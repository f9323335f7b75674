// Package memory provides an in-process storage.Store, used by tests and
// when no database path is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mmynk/billbook/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps collections in a map.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]byte
	failSaves   error
}

// New returns an empty Store.
func New() *Store {
	return &Store{collections: make(map[string][]byte)}
}

// Load returns a copy of the payload stored under key.
func (s *Store) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.collections[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return append([]byte(nil), payload...), nil
}

// Save replaces the payload stored under key.
func (s *Store) Save(ctx context.Context, key string, payload []byte) error {
	return s.SaveAll(ctx, map[string][]byte{key: payload})
}

// SaveAll replaces several collections at once.
func (s *Store) SaveAll(ctx context.Context, collections map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves != nil {
		return s.failSaves
	}
	for key, payload := range collections {
		s.collections[key] = append([]byte(nil), payload...)
	}
	return nil
}

// FailSaves makes every later write fail with err. A nil err clears it.
func (s *Store) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSaves = err
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
