package tierq

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryUpdateStore implements the UpdateStore interface using in-memory
// storage. It uses a single mutex for thread-safety and is suitable for
// testing and for hosts that do not need flags to survive restarts.
type InMemoryUpdateStore struct {
	mu     sync.RWMutex
	flags  map[RegionKey]time.Time
	closed bool
}

// NewInMemoryUpdateStore creates a new in-memory store.
func NewInMemoryUpdateStore() *InMemoryUpdateStore {
	return &InMemoryUpdateStore{
		flags: make(map[RegionKey]time.Time),
	}
}

// Close closes the store and prevents further operations.
func (s *InMemoryUpdateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return nil
}

func (s *InMemoryUpdateStore) ensureOpenLocked() error {
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// MarkNeedsUpdate flags the model identified by key.
func (s *InMemoryUpdateStore) MarkNeedsUpdate(ctx context.Context, key RegionKey) error {
	if _, err := normalizeContext(ctx); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}
	if _, exists := s.flags[key]; exists {
		return nil
	}
	s.flags[key] = time.Now()
	return nil
}

// ClearNeedsUpdate removes the flag for key.
func (s *InMemoryUpdateStore) ClearNeedsUpdate(ctx context.Context, key RegionKey) error {
	if _, err := normalizeContext(ctx); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}
	delete(s.flags, key)
	return nil
}

// NeedsUpdate reports whether the flag for key is set.
func (s *InMemoryUpdateStore) NeedsUpdate(ctx context.Context, key RegionKey) (bool, error) {
	if _, err := normalizeContext(ctx); err != nil {
		return false, err
	}
	if err := key.Validate(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpenLocked(); err != nil {
		return false, err
	}
	_, exists := s.flags[key]
	return exists, nil
}

// ListNeedsUpdate returns every flagged key, finest depth first.
func (s *InMemoryUpdateStore) ListNeedsUpdate(ctx context.Context) ([]RegionKey, error) {
	if _, err := normalizeContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpenLocked(); err != nil {
		return nil, err
	}

	keys := make([]RegionKey, 0, len(s.flags))
	for key := range s.flags {
		keys = append(keys, key)
	}
	sortRegionKeys(keys)
	return keys, nil
}

// sortRegionKeys orders keys finest depth first, then by region.
func sortRegionKeys(keys []RegionKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Depth != keys[j].Depth {
			return keys[i].Depth > keys[j].Depth
		}
		return keys[i].Region < keys[j].Region
	})
}
