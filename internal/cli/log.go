package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzhole/groupguard/internal/guardrail"
	"github.com/gzhole/groupguard/internal/logger"
)

type logFilter struct {
	decision string
	group    string
	user     string
	last     int
}

var (
	logOpts    logFilter
	logSummary bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the enforcement audit log",
	Long: `View the GroupGuard audit log with filtering and summary options.

Examples:
  groupguard log                        # Show all entries
  groupguard log --last 20              # Show last 20 entries
  groupguard log --decision REJECTED    # Show only guardrail rejections
  groupguard log --group 123456789      # Show one group
  groupguard log --summary              # Show summary stats`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logOpts.decision, "decision", "", "Filter by decision (ENFORCED, REJECTED, FAILED, TEST)")
	logCmd.Flags().StringVar(&logOpts.group, "group", "", "Filter by group ID")
	logCmd.Flags().StringVar(&logOpts.user, "user", "", "Filter by user ID")
	logCmd.Flags().IntVar(&logOpts.last, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	events, err := readAuditLog(cfg.AuditLog)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(events) == 0 {
		fmt.Println("No audit log entries found.")
		return nil
	}

	filtered := filterEvents(events, logOpts)

	if logSummary {
		printSummary(os.Stdout, events)
		return nil
	}

	printEvents(os.Stdout, filtered)
	return nil
}

func readAuditLog(path string) ([]logger.AuditEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []logger.AuditEvent
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var event logger.AuditEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip malformed lines
		}
		events = append(events, event)
	}
	return events, scanner.Err()
}

func filterEvents(events []logger.AuditEvent, f logFilter) []logger.AuditEvent {
	var filtered []logger.AuditEvent
	for _, e := range events {
		if f.decision != "" && !strings.EqualFold(e.Decision, f.decision) {
			continue
		}
		if f.group != "" && e.Group != f.group {
			continue
		}
		if f.user != "" && e.User != f.user {
			continue
		}
		filtered = append(filtered, e)
	}
	if f.last > 0 && f.last < len(filtered) {
		filtered = filtered[len(filtered)-f.last:]
	}
	return filtered
}

func printEvents(w io.Writer, events []logger.AuditEvent) {
	for _, e := range events {
		fmt.Fprintf(w, "%s %s %-8s group=%s user=%s\n", decisionIcon(e.Decision), formatTimestamp(e.Timestamp), e.Decision, e.Group, e.User)

		if e.Rule != "" {
			fmt.Fprintf(w, "     Rule: %s\n", e.Rule)
		}
		if e.Reason != "" {
			fmt.Fprintf(w, "     Reason: %s\n", e.Reason)
		}
		if e.DurationSeconds > 0 {
			fmt.Fprintf(w, "     Duration: %ds\n", e.DurationSeconds)
		}
		if e.Error != "" {
			fmt.Fprintf(w, "     Error: %s\n", e.Error)
		}
		if e.Cycle != "" {
			fmt.Fprintf(w, "     Cycle: %s (%s)\n", e.Cycle, e.Source)
		}
		fmt.Fprintln(w)
	}
}

func printSummary(w io.Writer, all []logger.AuditEvent) {
	counts := map[string]int{}
	rules := map[string]int{}
	groups := map[string]struct{}{}

	for _, e := range all {
		counts[e.Decision]++
		if e.Rule != "" {
			rules[e.Rule]++
		}
		groups[e.Group] = struct{}{}
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintln(w, "  GroupGuard Audit Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintf(w, "  Total events:    %d\n", len(all))
	fmt.Fprintf(w, "  Groups:          %d\n", len(groups))
	fmt.Fprintf(w, "  ENFORCED:        %d\n", counts[logger.DecisionEnforced])
	fmt.Fprintf(w, "  REJECTED:        %d\n", counts[logger.DecisionRejected])
	fmt.Fprintf(w, "  FAILED:          %d\n", counts[logger.DecisionFailed])
	fmt.Fprintf(w, "  TEST:            %d\n", counts[logger.DecisionTest])
	fmt.Fprintln(w, "═══════════════════════════════════════════")

	if len(all) > 0 {
		fmt.Fprintf(w, "  First event:     %s\n", formatTimestamp(all[0].Timestamp))
		fmt.Fprintf(w, "  Last event:      %s\n", formatTimestamp(all[len(all)-1].Timestamp))
	}

	if len(rules) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Guardrail rejections by rule:")
		for _, r := range []guardrail.Rule{
			guardrail.RuleNotInSnapshot,
			guardrail.RuleCoolDown,
			guardrail.RuleNoMessages,
			guardrail.RuleHistoryUnavailable,
		} {
			if n := rules[string(r)]; n > 0 {
				fmt.Fprintf(w, "    %-20s %d\n", r, n)
			}
		}
	}

	fmt.Fprintln(w)
}

func decisionIcon(decision string) string {
	switch decision {
	case logger.DecisionEnforced:
		return "\xf0\x9f\x94\x87" // muted speaker
	case logger.DecisionRejected:
		return "\xf0\x9f\x9b\xa1" // shield
	case logger.DecisionFailed:
		return "\xe2\x9d\x8c" // cross mark
	case logger.DecisionTest:
		return "\xf0\x9f\xa7\xaa" // test tube
	default:
		return "\xe2\x9d\x93" // question mark
	}
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
