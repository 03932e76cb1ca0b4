// Package trigger decides when a group's buffer holds enough context to
// justify an analysis call.
//
// Four modes combine two conditions: the group's message count reaching the
// batch size, and the time since the group's last check reaching the check
// interval.
//
//	count_only     count
//	time_only      (scheduler only) time
//	hybrid         time OR count
//	strict_hybrid  time AND count
package trigger

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Mode selects which conditions cause a group to be analyzed.
type Mode string

const (
	ModeCountOnly    Mode = "count_only"
	ModeTimeOnly     Mode = "time_only"
	ModeHybrid       Mode = "hybrid"
	ModeStrictHybrid Mode = "strict_hybrid"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeCountOnly, ModeTimeOnly, ModeHybrid, ModeStrictHybrid}

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		names := make([]string, len(Modes))
		for i, mode := range Modes {
			names[i] = string(mode)
		}
		return "", fmt.Errorf("unknown trigger mode %q (want one of %s)", s, strings.Join(names, ", "))
	}
	return m, nil
}

// Valid reports whether m is one of the supported modes.
func (m Mode) Valid() bool {
	return slices.Contains(Modes, m)
}

// TimeSensitive reports whether elapsed time takes part in the decision.
func (m Mode) TimeSensitive() bool {
	return m == ModeTimeOnly || m == ModeHybrid || m == ModeStrictHybrid
}

// ShouldTrigger is the decision evaluated after every append and on every
// scheduler tick for modes other than time_only. It is a pure function of
// its arguments. time_only never fires here; see ShouldTriggerOnTick.
func ShouldTrigger(mode Mode, total, batchSize int, elapsed, interval time.Duration) bool {
	countReached := total >= batchSize
	timeReached := elapsed >= interval

	switch mode {
	case ModeCountOnly:
		return countReached
	case ModeTimeOnly:
		return false
	case ModeHybrid:
		return timeReached || countReached
	case ModeStrictHybrid:
		return timeReached && countReached
	}
	return false
}

// ShouldTriggerOnTick is the scheduler's decision for a group that holds at
// least one message. time_only fires purely on elapsed time; the other modes
// reuse ShouldTrigger.
func ShouldTriggerOnTick(mode Mode, total, batchSize int, elapsed, interval time.Duration) bool {
	if mode == ModeTimeOnly {
		return elapsed >= interval
	}
	return ShouldTrigger(mode, total, batchSize, elapsed, interval)
}
