package engine

import (
	"fmt"
	"strings"
)

// Cycle sources, used in logs, metrics and the audit trail.
const (
	SourceMessage   = "message"
	SourceScheduler = "scheduler"
	SourceForce     = "force"
)

// Report summarizes one batch cycle for administrative callers.
type Report struct {
	Group    string   `json:"group"`
	Cycle    string   `json:"cycle,omitempty"`
	Source   string   `json:"source"`
	Empty    bool     `json:"empty"`
	Messages int      `json:"messages"`
	Verdicts int      `json:"verdicts"`
	Dropped  int      `json:"dropped"`
	Rejected int      `json:"rejected"`
	Enforced []string `json:"enforced,omitempty"`
	Skipped  string   `json:"skipped,omitempty"`
	Failures []string `json:"failures,omitempty"`
}

func (r *Report) fail(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// Summary renders the report as a few human-readable lines.
func (r Report) Summary() string {
	if r.Empty {
		return fmt.Sprintf("group %s: nothing buffered", r.Group)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "group %s: analyzed %d messages", r.Group, r.Messages)
	if r.Skipped != "" {
		fmt.Fprintf(&b, ", skipped (%s)", r.Skipped)
	} else {
		fmt.Fprintf(&b, ", %d verdicts, %d rejected, %d enforced", r.Verdicts, r.Rejected, len(r.Enforced))
	}
	if len(r.Enforced) > 0 {
		fmt.Fprintf(&b, "\n  enforced: %s", strings.Join(r.Enforced, ", "))
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "\n  failed: %s", f)
	}
	return b.String()
}
