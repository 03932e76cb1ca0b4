// Package history records past enforcements per (group, user) pair.
//
// The store is append-only: a record is created on the first confirmed
// enforcement and never deleted. The guardrail's cool-down check is relative
// to LastEnforcedAt, so old records simply stop mattering.
package history

import (
	"context"
	"time"
)

// Record is the enforcement history of one user in one group.
type Record struct {
	GroupID        string    `json:"group_id"`
	UserID         string    `json:"user_id"`
	Count          int       `json:"count"`
	LastEnforcedAt time.Time `json:"last_enforced_at"`
}

// Store is the violation history backend.
type Store interface {
	// Get returns the record for the pair and whether one exists.
	Get(ctx context.Context, groupID, userID string) (Record, bool, error)

	// RecordEnforcement increments the pair's count and sets its last
	// enforcement time to at. Returns the updated record.
	RecordEnforcement(ctx context.Context, groupID, userID string, at time.Time) (Record, error)

	// List returns all records for a group ordered by user ID.
	List(ctx context.Context, groupID string) ([]Record, error)

	// Close releases resources held by the store.
	Close() error
}

// Compile-time checks.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
