package offset

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a non-durable Store, used in tests and dry runs.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]Offset

	// Writes counts successful Write calls.
	Writes int

	// ReadErr and WriteErr, when set, are returned by the matching operation.
	ReadErr  error
	WriteErr error
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]Offset{}}
}

func (s *MemoryStore) Read(_ context.Context, k string) (Offset, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReadErr != nil {
		return "", false, s.ReadErr
	}
	o, ok := s.values[k]
	return o, ok, nil
}

func (s *MemoryStore) Write(_ context.Context, k string, o Offset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.values[k] = o
	s.Writes++
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, k string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, k)
	return nil
}

func (s *MemoryStore) Keys(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Close() error { return nil }
