package watchlist

import (
	"context"
	"sort"
	"sync"
	"time"
)

type entryKey struct {
	userID string
	malID  int64
}

// MemStore is the DSN-less Store implementation, also used by tests.
type MemStore struct {
	mu sync.RWMutex
	m  map[entryKey]Entry
}

func NewMemStore() *MemStore {
	return &MemStore{m: map[entryKey]Entry{}}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Find(ctx context.Context, userID string, status Status) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, 16)
	for k, e := range s.m {
		if k.userID != userID {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].MalID < out[j].MalID })
	return out, nil
}

func (s *MemStore) Get(ctx context.Context, userID string, malID int64) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.m[entryKey{userID, malID}]
	return e, ok, nil
}

func (s *MemStore) Insert(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := entryKey{e.UserID, e.MalID}
	if _, ok := s.m[k]; ok {
		return ErrEntryExists
	}
	s.m[k] = e
	return nil
}

func (s *MemStore) Update(ctx context.Context, userID string, malID int64, p Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := entryKey{userID, malID}
	e, ok := s.m[k]
	if !ok {
		return false, nil
	}

	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.StartedDate != nil {
		e.StartedDate = p.StartedDate
	} else if p.ClearStarted {
		e.StartedDate = nil
	}
	if p.FinishedDate != nil {
		e.FinishedDate = p.FinishedDate
	} else if p.ClearFinished {
		e.FinishedDate = nil
	}
	if p.Score != nil {
		e.Score = p.Score
	} else if p.ClearScore {
		e.Score = nil
	}
	e.UpdatedAt = time.Now().UTC()

	s.m[k] = e
	return true, nil
}

func (s *MemStore) Delete(ctx context.Context, userID string, malID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := entryKey{userID, malID}
	if _, ok := s.m[k]; !ok {
		return false, nil
	}
	delete(s.m, k)
	return true, nil
}
