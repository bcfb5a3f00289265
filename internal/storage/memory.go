package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// MemoryStore is a Store held entirely in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(value), nil
}

// Iterate visits keys with prefix in byte order over a snapshot taken at the call.
func (s *MemoryStore) Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	keys := make([]string, 0)
	for key := range s.values {
		if bytes.HasPrefix([]byte(key), prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, key := range keys {
		values[i] = clone(s.values[key])
	}
	s.mu.RUnlock()

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn([]byte(key), values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Apply(_ context.Context, batch *Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range batch.Ops() {
		if op.Delete {
			delete(s.values, string(op.Key))
			continue
		}
		s.values[string(op.Key)] = clone(op.Value)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

func (s *MemoryStore) Close() error {
	return nil
}
