package analyzer

import (
	"strings"
	"time"

	"github.com/gzhole/groupguard/internal/buffer"
	"github.com/gzhole/groupguard/internal/guardian"
	"github.com/gzhole/groupguard/internal/redact"
	"github.com/gzhole/groupguard/internal/sanitize"
)

const unknownName = "unknown"

var injectionDetector guardian.Provider = guardian.NewHeuristicProvider()

// Format renders a snapshot as one line per message, oldest first across
// all users:
//
//	[user_id|display_name] HH:MM:SS: text
//
// Text is stripped of hidden characters, folded to a single line and
// redacted, so a message can never forge a line for another user. A message
// that addresses the analyzer itself gets a trailing [flagged: ...] marker.
func Format(snap buffer.Snapshot, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	msgs := snap.Chronological()
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		name := sanitize.Line(m.DisplayName)
		if name == "" {
			name = unknownName
		}
		name = strings.NewReplacer("|", "/", "]", ")").Replace(name)
		text := redact.Redact(sanitize.Line(m.Text))
		if res := injectionDetector.Analyze(text); res.Flagged() {
			text += " [flagged: " + strings.Join(res.IDs(), ",") + "]"
		}
		lines = append(lines, "["+sanitize.Line(m.UserID)+"|"+name+"] "+
			m.ArrivedAt.In(loc).Format("15:04:05")+": "+text)
	}
	return strings.Join(lines, "\n")
}
