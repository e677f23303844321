package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// StaticDirectory is a fixed in-process profile directory, used when no
// external memory service is wired and in tests.
type StaticDirectory map[string]RelationshipProfile

func (d StaticDirectory) Profile(ctx context.Context, callerID string) (*RelationshipProfile, error) {
	if d == nil {
		return nil, nil
	}
	p, ok := d[callerID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// StaticSearcher returns the same canned results for every query.
type StaticSearcher struct {
	Results Results
	Err     error
}

func (s StaticSearcher) Search(ctx context.Context, q Query, callerID string) (Results, error) {
	if s.Err != nil {
		return Results{}, s.Err
	}
	return s.Results, nil
}

// MemStore is an in-memory conversation store. It is the default store when
// no database is configured.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]Entry)}
}

func (s *MemStore) StoreConversation(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e
	return e.ID, nil
}

// Conversation returns a stored entry by id.
func (s *MemStore) Conversation(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// Len reports how many conversations are stored.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
