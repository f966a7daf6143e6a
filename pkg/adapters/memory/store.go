package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
)

// Store implements ports.StateStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.ActivityState
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.ActivityState),
	}
}

// Save persists a deep copy of the state.
func (s *Store) Save(ctx context.Context, room string, state *domain.ActivityState) error {
	copied := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[room] = copied
	return nil
}

// Load returns a copy so callers can't mutate the stored state by pointer.
func (s *Store) Load(ctx context.Context, room string) (*domain.ActivityState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[room]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	return state.Clone(), nil
}

// Delete removes the state.
func (s *Store) Delete(ctx context.Context, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, room)
	return nil
}

// List returns the rooms with an activity in progress.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]string, 0, len(s.data))
	for room := range s.data {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms, nil
}
