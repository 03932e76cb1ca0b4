package trigger

import (
	"sync"
	"time"
)

// Clocks holds the last check time of every group. A group's clock is
// created when its first message arrives and is advanced only at the end of
// a batch cycle. Safe for concurrent use.
type Clocks struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// NewClocks creates an empty clock registry.
func NewClocks() *Clocks {
	return &Clocks{last: make(map[string]time.Time)}
}

// Init starts the group's clock at now unless it already runs, and returns
// the group's last check time. Idempotent.
func (c *Clocks) Init(groupID string, now time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.last[groupID]; ok {
		return t
	}
	c.last[groupID] = now
	return now
}

// Elapsed returns the time since the group's last check. A group without a
// clock has elapsed zero.
func (c *Clocks) Elapsed(groupID string, now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.last[groupID]
	if !ok {
		return 0
	}
	return now.Sub(t)
}

// Reset sets the group's last check time to now.
func (c *Clocks) Reset(groupID string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[groupID] = now
}

// Last returns the group's last check time and whether a clock exists.
func (c *Clocks) Last(groupID string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.last[groupID]
	return t, ok
}
