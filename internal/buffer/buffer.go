// Package buffer holds pending chat messages per group and per user until a
// batch cycle hands them to the analyzer.
//
// The buffer is in-memory and bounded by the recent-message window and the
// expiry sweep. Nothing here survives a restart.
package buffer

import (
	"sort"
	"sync"
	"time"
)

// Message is a single buffered chat message. Values are never mutated after
// Append.
type Message struct {
	UserID      string
	Text        string
	DisplayName string
	ArrivedAt   time.Time

	seq uint64 // arrival order across the whole buffer
}

// Buffer is a thread-safe per-group, per-user message store.
type Buffer struct {
	mu     sync.RWMutex
	groups map[string]map[string][]Message
	seq    uint64
}

// New creates an empty buffer.
func New() *Buffer {
	return &Buffer{groups: make(map[string]map[string][]Message)}
}

// Append adds msg to the group's buffer under msg.UserID and returns the
// group's total message count after the append.
func (b *Buffer) Append(groupID string, msg Message) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	users, ok := b.groups[groupID]
	if !ok {
		users = make(map[string][]Message)
		b.groups[groupID] = users
	}
	b.seq++
	msg.seq = b.seq
	users[msg.UserID] = append(users[msg.UserID], msg)
	return countLocked(users)
}

// Snapshot returns an isolated copy of the group's per-user messages.
// Later appends, trims or clears do not affect the returned value.
func (b *Buffer) Snapshot(groupID string) Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := Snapshot{Group: groupID, Users: make(map[string][]Message)}
	for uid, msgs := range b.groups[groupID] {
		if len(msgs) == 0 {
			continue
		}
		cp := make([]Message, len(msgs))
		copy(cp, msgs)
		snap.Users[uid] = cp
		for _, m := range msgs {
			if m.seq > snap.through {
				snap.through = m.seq
			}
		}
	}
	return snap
}

// Clear empties the group's buffer.
func (b *Buffer) Clear(groupID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.groups, groupID)
}

// ClearThrough removes every message of snap's group that was already
// buffered when snap was taken. Messages appended afterwards are kept, so
// nothing that arrives during an analysis is dropped unseen.
func (b *Buffer) ClearThrough(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	users, ok := b.groups[snap.Group]
	if !ok {
		return
	}
	for uid, msgs := range users {
		kept := msgs[:0:0]
		for _, m := range msgs {
			if m.seq > snap.through {
				kept = append(kept, m)
			}
		}
		if len(kept) == 0 {
			delete(users, uid)
		} else {
			users[uid] = kept
		}
	}
	if len(users) == 0 {
		delete(b.groups, snap.Group)
	}
}

// TrimToRecent keeps only the newest limit messages of the group across all
// users. Ordering is by arrival time, ties resolved by arrival order.
// A limit <= 0 means unlimited. Returns the number of messages dropped.
func (b *Buffer) TrimToRecent(groupID string, limit int) int {
	if limit <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	users, ok := b.groups[groupID]
	if !ok {
		return 0
	}
	total := countLocked(users)
	if total <= limit {
		return 0
	}

	flat := make([]Message, 0, total)
	for _, msgs := range users {
		flat = append(flat, msgs...)
	}
	sortChronological(flat)
	recent := flat[len(flat)-limit:]

	rebuilt := make(map[string][]Message)
	for _, m := range recent {
		rebuilt[m.UserID] = append(rebuilt[m.UserID], m)
	}
	b.groups[groupID] = rebuilt
	return total - limit
}

// ExpireOlderThan drops every message that arrived before cutoff, in all
// groups. Users and groups left without messages are removed. Returns the
// number of messages dropped.
func (b *Buffer) ExpireOlderThan(cutoff time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for gid, users := range b.groups {
		for uid, msgs := range users {
			kept := msgs[:0:0]
			for _, m := range msgs {
				if m.ArrivedAt.Before(cutoff) {
					dropped++
					continue
				}
				kept = append(kept, m)
			}
			if len(kept) == 0 {
				delete(users, uid)
			} else {
				users[uid] = kept
			}
		}
		if len(users) == 0 {
			delete(b.groups, gid)
		}
	}
	return dropped
}

// TotalCount returns the number of messages buffered for the group.
func (b *Buffer) TotalCount(groupID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return countLocked(b.groups[groupID])
}

// Groups returns, sorted, the groups holding at least one message.
func (b *Buffer) Groups() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.groups))
	for gid, users := range b.groups {
		if countLocked(users) > 0 {
			ids = append(ids, gid)
		}
	}
	sort.Strings(ids)
	return ids
}

// Stats returns the number of non-empty groups and the total number of
// buffered messages.
func (b *Buffer) Stats() (groups, messages int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, users := range b.groups {
		n := countLocked(users)
		if n > 0 {
			groups++
			messages += n
		}
	}
	return groups, messages
}

func countLocked(users map[string][]Message) int {
	n := 0
	for _, msgs := range users {
		n += len(msgs)
	}
	return n
}

func sortChronological(msgs []Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].ArrivedAt.Equal(msgs[j].ArrivedAt) {
			return msgs[i].ArrivedAt.Before(msgs[j].ArrivedAt)
		}
		return msgs[i].seq < msgs[j].seq
	})
}
