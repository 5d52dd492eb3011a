// Package printer writes colored CLI output and renders protocol outcomes.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dyluth/mural/internal/protocol"
	"github.com/dyluth/mural/pkg/phase"
	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	blue   = color.New(color.FgBlue)
	bold   = color.New(color.Bold)
)

// Output destinations. Tests redirect them.
var (
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		green.Fprintf(Out, "✓ %s", msg)
	} else {
		green.Fprint(Out, msg)
	}
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		yellow.Fprintf(Out, "⚠️  %s", msg)
	} else {
		yellow.Fprint(Out, msg)
	}
}

// Error prints a title, explanation and suggestions to stderr and returns a
// simple error for Cobra (which won't print it due to SilenceErrors)
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value details, printed in key order
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(Err, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(Err, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(Err, "\n")
		for _, key := range keys {
			fmt.Fprintf(Err, "  %s: %s\n", key, context[key])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(Err, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(Err, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(Err, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(Err, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	return fmt.Errorf("%s", title)
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Fprintf(Out, "→ %s", fmt.Sprintf(format, a...))
}

// Println prints a plain message (for output that doesn't need coloring)
func Println(a ...any) {
	fmt.Fprintln(Out, a...)
}

// Printf prints a plain formatted message (for output that doesn't need coloring)
func Printf(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}

// Phase returns the phase name colored by how far the season has progressed
func Phase(p phase.Phase) string {
	switch p {
	case phase.Funding:
		return green.Sprint(p.String())
	case phase.Voting:
		return blue.Sprint(p.String())
	default:
		return bold.Sprint(p.String())
	}
}

// suggestions per error code; codes without an entry print none
var suggestions = map[protocol.Code][]string{
	protocol.CodeWrongPhase: {
		"Check the season's deadlines with: mural season show <season>",
	},
	protocol.CodeSeasonNotFound: {
		"List the season address with: mural season show <prefix>",
	},
	protocol.CodeRegionNotFound: {
		"The region has not been funded yet. Fund it first with: mural fund <season> <x> <y> <amount>",
	},
	protocol.CodeNoContribution: {
		"Only contributors to a region can vote on its bids. Fund the region during the funding phase.",
	},
	protocol.CodeAlreadyVoted: {
		"Each contribution carries exactly one vote.",
	},
	protocol.CodeDuplicateBid: {
		"Each artist may submit one bid per region.",
	},
	protocol.CodeInsufficientFunds: {
		"Check your balance with: mural balance",
	},
	protocol.CodeNotWinner: {
		"Only the artist of the winning bid can be paid. Finalize the region first with: mural finalize-region <season> <x> <y>",
	},
	protocol.CodeNotAuthority: {
		"Use the key of the season's authority (--key).",
	},
}

// ProtocolError renders a rejected operation. Expected outcomes (wrong phase,
// already voted, duplicate bid) print as warnings and return nil so scripts
// can treat them as non-fatal.
func ProtocolError(op string, e *protocol.Error) error {
	if protocol.IsExpected(e) {
		Warning("%s: %s\n", op, e.Message)
		for _, s := range suggestions[e.Code] {
			Info("   %s\n", s)
		}
		return nil
	}

	title := fmt.Sprintf("%s rejected: %s", op, e.Code)
	return ErrorWithContext(title, e.Message, map[string]string{"kind": string(e.Kind)}, suggestions[e.Code])
}

// Result prints a submitted operation's outcome: the record address on success
// or the rendered protocol error
func Result(op string, r protocol.Result) error {
	if r.OK {
		Success("%s committed: %s\n", op, r.Address)
		return nil
	}
	return ProtocolError(op, r.Err)
}
