package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/aretw0/kiln/pkg/domain"
)

// Store implements ports.FingerprintStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Fingerprint
	mu   sync.RWMutex
	// saves counts calls to Save.
	saves int
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string]domain.Fingerprint)}
}

// Load returns a copy so callers can't mutate the store through the map.
func (s *Store) Load(ctx context.Context) (map[string]domain.Fingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data), nil
}

// Save replaces the stored fingerprints.
func (s *Store) Save(ctx context.Context, records map[string]domain.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = maps.Clone(records)
	if s.data == nil {
		s.data = make(map[string]domain.Fingerprint)
	}
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
