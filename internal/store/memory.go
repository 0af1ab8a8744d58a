package store

import (
	"context"
	"sort"
	"sync"

	"auxpass/internal/status"
	"auxpass/models"
)

var _ StateStore = (*MemoryStore)(nil)

// MemoryStore is a process-local StateStore with the same compare-and-swap
// contract as RedisStore. It is used for tests and single-instance runs.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*models.AuxState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*models.AuxState)}
}

func (s *MemoryStore) Get(_ context.Context, stationID string) (*models.AuxState, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[stationID]
	if !ok {
		return nil, 0, nil
	}
	return state.Clone(), state.Version, nil
}

func (s *MemoryStore) Put(_ context.Context, state *models.AuxState, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if existing, ok := s.states[state.StationID]; ok {
		current = existing.Version
	}
	if current != expectedVersion {
		return status.ErrVersionConflict
	}

	s.states[state.StationID] = state.Clone()
	return nil
}

func (s *MemoryStore) Stations(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
