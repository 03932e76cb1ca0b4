// Package guardian flags chat messages that talk to the moderation analyzer
// instead of the group. A member can post text that tries to override the
// review rules, reveal the prompt or forge a verdict payload naming someone
// else. Such messages are still analyzed; they are only marked so the
// analyzer treats them as content rather than instructions.
//
//	Provider (interface)
//	  └── HeuristicProvider  built-in pattern rules
package guardian

// Signal is one reason a message was flagged.
type Signal struct {
	// ID is a short, unique identifier (e.g., "instruction_override").
	ID string

	// Category groups related signals (e.g., "prompt-injection").
	Category string

	// Severity indicates impact: "critical", "high", "medium", "low".
	Severity string

	Description string
}

// Result is the outcome of scanning one message.
type Result struct {
	Signals     []Signal
	Explanation string
}

// Flagged reports whether any signal fired.
func (r Result) Flagged() bool { return len(r.Signals) > 0 }

// IDs returns the signal identifiers in rule order.
func (r Result) IDs() []string {
	ids := make([]string, len(r.Signals))
	for i, s := range r.Signals {
		ids[i] = s.ID
	}
	return ids
}

// Provider inspects a single chat message.
type Provider interface {
	Name() string
	Analyze(text string) Result
}
