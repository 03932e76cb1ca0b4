package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

type pairKey struct {
	group string
	user  string
}

// MemoryStore is a thread-safe in-memory history. Suitable for a single
// process; records are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[pairKey]Record
}

// NewMemoryStore creates an empty in-memory history.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[pairKey]Record)}
}

func (s *MemoryStore) Get(_ context.Context, groupID, userID string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[pairKey{groupID, userID}]
	return r, ok, nil
}

func (s *MemoryStore) RecordEnforcement(_ context.Context, groupID, userID string, at time.Time) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pairKey{groupID, userID}
	r := s.records[k]
	r.GroupID = groupID
	r.UserID = userID
	r.Count++
	r.LastEnforcedAt = at
	s.records[k] = r
	return r, nil
}

func (s *MemoryStore) List(_ context.Context, groupID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for k, r := range s.records {
		if k.group == groupID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
