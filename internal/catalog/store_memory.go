package catalog

import (
	"context"
	"sync"
)

// MemStore is the DSN-less Store implementation, also used by tests.
type MemStore struct {
	mu sync.RWMutex
	m  map[int64]Anime
}

func NewMemStore() *MemStore {
	return &MemStore{m: map[int64]Anime{}}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Get(ctx context.Context, malID int64) (Anime, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.m[malID]
	return a, ok, nil
}

func (s *MemStore) GetMany(ctx context.Context, malIDs []int64) (map[int64]Anime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]Anime, len(malIDs))
	for _, id := range malIDs {
		if a, ok := s.m[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (s *MemStore) Insert(ctx context.Context, a Anime) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[a.MalID]; ok {
		return ErrAnimeExists
	}
	s.m[a.MalID] = a
	return nil
}
