// Package approval asks an operator to confirm a manual enforcement.
package approval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

type Result struct {
	Approved   bool
	UserAction string
}

// Prompt describes the action awaiting confirmation.
type Prompt struct {
	Action   string
	Group    string
	User     string
	Duration time.Duration
	Reason   string
}

func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Ask prompts on the terminal. Without a terminal the action is denied.
func Ask(p Prompt) Result {
	if !IsInteractive() {
		return Result{
			Approved:   false,
			UserAction: "auto_deny_non_interactive",
		}
	}
	return AskFrom(os.Stdin, os.Stderr, p)
}

// AskFrom reads the operator's answer from in and writes the prompt to out.
func AskFrom(in io.Reader, out io.Writer, p Prompt) Result {
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "CONFIRMATION REQUIRED")
	fmt.Fprintln(out, "")
	fmt.Fprintf(out, "Action:   %s\n", p.Action)
	fmt.Fprintf(out, "Group:    %s\n", p.Group)
	if p.User != "" {
		fmt.Fprintf(out, "User:     %s\n", p.User)
	}
	if p.Duration > 0 {
		fmt.Fprintf(out, "Duration: %s\n", p.Duration)
	}
	if p.Reason != "" {
		fmt.Fprintf(out, "Reason:   %s\n", p.Reason)
	}
	fmt.Fprintln(out, "")

	reader := bufio.NewReader(in)

	for {
		fmt.Fprint(out, "Proceed? [y/n]: ")
		input, err := reader.ReadString('\n')
		if err != nil && strings.TrimSpace(input) == "" {
			return Result{
				Approved:   false,
				UserAction: "error_reading_input",
			}
		}

		switch strings.TrimSpace(strings.ToLower(input)) {
		case "y", "yes", "a", "approve":
			return Result{
				Approved:   true,
				UserAction: "approve_once",
			}
		case "n", "no", "d", "deny":
			return Result{
				Approved:   false,
				UserAction: "deny",
			}
		default:
			if err != nil {
				return Result{Approved: false, UserAction: "error_reading_input"}
			}
			fmt.Fprintln(out, "Invalid input. Please enter 'y' to proceed or 'n' to cancel.")
		}
	}
}
