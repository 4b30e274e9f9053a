package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/matzehuels/framegraph/pkg/project"
)

// MemoryStore keeps encoded documents in memory. Loaded documents never
// alias stored ones.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, name string) (*project.Document, error) {
	s.mu.RLock()
	data, ok := s.docs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, NotFound(name)
	}
	return project.Unmarshal(data, project.FormatJSON)
}

func (s *MemoryStore) Save(_ context.Context, doc *project.Document) error {
	if err := CheckDocument(doc); err != nil {
		return err
	}
	data, err := project.Marshal(doc, project.FormatJSON)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Name] = data
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[name]; !ok {
		return NotFound(name)
	}
	delete(s.docs, name)
	return nil
}

func (s *MemoryStore) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.docs)), nil
}

// Close does nothing for the memory store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
