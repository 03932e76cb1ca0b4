package engine

import "sync"

// lockRegistry hands out one mutex per group, created on first use and kept
// for the life of the process.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: make(map[string]*sync.Mutex)}
}

func (r *lockRegistry) get(groupID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[groupID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[groupID] = l
	}
	return l
}
