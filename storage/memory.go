package storage

import (
	"context"
	"sync"
	"time"

	"github.com/CreativeUnicorns/suiteprefs"
)

// MemoryStorage implements suiteprefs.Backend using an in-memory map.
// This is useful for testing or single-process deployments where persistence is not required.
type MemoryStorage struct {
	mu    sync.RWMutex
	slots map[string]map[string]*suiteprefs.Record // namespace -> key -> Record
}

// NewMemoryStorage creates a new instance of MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		slots: make(map[string]map[string]*suiteprefs.Record),
	}
}

// Load retrieves the slot for a namespace and key.
// It returns suiteprefs.ErrNotFound if the slot does not exist.
func (s *MemoryStorage) Load(_ context.Context, namespace, key string) (*suiteprefs.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.slots[namespace][key]
	if !ok {
		return nil, suiteprefs.ErrNotFound
	}

	// Return a copy to prevent modification of the stored record through the pointer
	recCopy := *rec
	return &recCopy, nil
}

// Save stores a slot, stamping UpdatedAt when the caller left it zero.
func (s *MemoryStorage) Save(_ context.Context, rec *suiteprefs.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[rec.Namespace]; !ok {
		s.slots[rec.Namespace] = make(map[string]*suiteprefs.Record)
	}

	toStore := *rec
	if toStore.UpdatedAt.IsZero() {
		toStore.UpdatedAt = time.Now()
	}
	s.slots[rec.Namespace][rec.Key] = &toStore
	return nil
}

// Delete removes a slot. It returns suiteprefs.ErrNotFound if the slot does not exist.
func (s *MemoryStorage) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nsSlots, ok := s.slots[namespace]
	if !ok {
		return suiteprefs.ErrNotFound
	}
	if _, ok := nsSlots[key]; !ok {
		return suiteprefs.ErrNotFound
	}

	delete(nsSlots, key)
	if len(nsSlots) == 0 {
		delete(s.slots, namespace)
	}
	return nil
}

// List returns copies of every slot in a namespace. An unknown namespace yields an empty map.
func (s *MemoryStorage) List(_ context.Context, namespace string) (map[string]*suiteprefs.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*suiteprefs.Record, len(s.slots[namespace]))
	for k, v := range s.slots[namespace] {
		recCopy := *v
		out[k] = &recCopy
	}
	return out, nil
}

// Close is a no-op for MemoryStorage as there are no external resources to release.
func (s *MemoryStorage) Close() error {
	return nil
}
