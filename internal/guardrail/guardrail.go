// Package guardrail filters analyzer verdicts before anything is enforced.
//
// The analyzer is not trusted. A verdict is acted on only when the named
// user actually spoke in the batch that produced it and has not already been
// punished within the cool-down window.
package guardrail

import (
	"context"
	"fmt"
	"time"

	"github.com/gzhole/groupguard/internal/buffer"
	"github.com/gzhole/groupguard/internal/history"
)

// DefaultCoolDown is the minimum time between two enforcements for the same
// (group, user) pair.
const DefaultCoolDown = time.Hour

// Rule identifies the check that rejected a verdict.
type Rule string

const (
	// RuleNotInSnapshot: the user did not appear in the analyzed batch,
	// so the identifier is fabricated or stale.
	RuleNotInSnapshot Rule = "not_in_snapshot"
	// RuleCoolDown: the user was enforced too recently.
	RuleCoolDown Rule = "cool_down"
	// RuleNoMessages: the user appears in the batch with zero messages.
	RuleNoMessages Rule = "no_messages"
	// RuleHistoryUnavailable: the history could not be read; fail closed.
	RuleHistoryUnavailable Rule = "history_unavailable"
)

// Decision is the outcome of a guardrail check. Rule and Detail are empty
// when Accepted is true.
type Decision struct {
	Accepted bool
	Rule     Rule
	Detail   string
}

// Validator applies the guardrail rules. Checks have no side effects;
// history is written by the caller only after enforcement succeeds.
type Validator struct {
	history  history.Store
	coolDown time.Duration
	now      func() time.Time
}

// NewValidator creates a validator reading from h. A nil now uses time.Now.
func NewValidator(h history.Store, coolDown time.Duration, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{history: h, coolDown: coolDown, now: now}
}

// CoolDown returns the configured cool-down window.
func (v *Validator) CoolDown() time.Duration { return v.coolDown }

// Check evaluates a verdict naming userID against the snapshot it came from.
func (v *Validator) Check(ctx context.Context, groupID, userID string, snap buffer.Snapshot, reason string) Decision {
	msgs, present := snap.Messages(userID)
	if !present {
		return reject(RuleNotInSnapshot, "user %s is not in this batch, possible hallucination", userID)
	}

	rec, found, err := v.history.Get(ctx, groupID, userID)
	if err != nil {
		return reject(RuleHistoryUnavailable, "violation history unavailable for %s: %v", userID, err)
	}
	if found && rec.Count > 0 {
		since := v.now().Sub(rec.LastEnforcedAt)
		if since < v.coolDown {
			return reject(RuleCoolDown, "user %s was enforced %s ago (cool-down %s)",
				userID, since.Truncate(time.Second), v.coolDown)
		}
	}

	if len(msgs) == 0 {
		return reject(RuleNoMessages, "user %s has no messages in this batch", userID)
	}

	return Decision{Accepted: true}
}

// Accept reports whether the verdict passes every rule.
func (v *Validator) Accept(ctx context.Context, groupID, userID string, snap buffer.Snapshot, reason string) bool {
	return v.Check(ctx, groupID, userID, snap, reason).Accepted
}

func reject(rule Rule, format string, args ...any) Decision {
	return Decision{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}
