package buffer

import "sort"

// Snapshot is an isolated copy of one group's buffer taken at the start of
// a batch cycle.
type Snapshot struct {
	Group string
	Users map[string][]Message

	through uint64 // highest arrival sequence included
}

// Total returns the number of messages in the snapshot.
func (s Snapshot) Total() int {
	return countLocked(s.Users)
}

// Empty reports whether the snapshot holds no messages.
func (s Snapshot) Empty() bool {
	return s.Total() == 0
}

// Messages returns the user's messages and whether the user appears in the
// snapshot at all.
func (s Snapshot) Messages(userID string) ([]Message, bool) {
	msgs, ok := s.Users[userID]
	return msgs, ok
}

// UserIDs returns the users present in the snapshot, sorted.
func (s Snapshot) UserIDs() []string {
	ids := make([]string, 0, len(s.Users))
	for uid := range s.Users {
		ids = append(ids, uid)
	}
	sort.Strings(ids)
	return ids
}

// Chronological flattens the snapshot into one slice ordered by arrival
// time across all users.
func (s Snapshot) Chronological() []Message {
	flat := make([]Message, 0, s.Total())
	for _, msgs := range s.Users {
		flat = append(flat, msgs...)
	}
	sortChronological(flat)
	return flat
}
