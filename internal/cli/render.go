package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	switchboard "github.com/omnihelp/switchboard"
)

// NewMarkdownRenderer returns a function that renders markdown for the
// terminal, falling back to plain text when no renderer is available.
func NewMarkdownRenderer() func(string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(md string) string { return md }
	}
	return func(md string) string {
		out, err := r.Render(md)
		if err != nil {
			return md
		}
		return out
	}
}

// statusColors maps outcome statuses to terminal colors.
var statusColors = map[switchboard.Status]string{
	switchboard.StatusAnswered:      "#22c55e",
	switchboard.StatusAwaitingReply: "#eab308",
	switchboard.StatusHandoff:       "#ef4444",
}

// PrintOutcome writes a human-readable rendering of the turn outcome.
func PrintOutcome(w io.Writer, out *switchboard.Outcome, render func(string) string, showTrail bool) {
	p := termenv.ColorProfile()
	status := termenv.String(strings.ToUpper(string(out.Status))).
		Foreground(p.Color(statusColors[out.Status])).
		Bold()
	fmt.Fprintf(w, "%s  session %s\n\n", status, out.SessionID)

	switch out.Status {
	case switchboard.StatusAnswered:
		fmt.Fprint(w, render(out.Answer))
	case switchboard.StatusAwaitingReply:
		fmt.Fprintf(w, "%s\n", out.Question)
	case switchboard.StatusHandoff:
		fmt.Fprintf(w, "Handed off to a human operator.\nReason: %s\n", out.Handoff.Reason)
		if out.Handoff.Rationale != "" {
			fmt.Fprintf(w, "Routing rationale: %s\n", out.Handoff.Rationale)
		}
	}

	if showTrail {
		fmt.Fprintln(w, "\nDecision trail:")
		for i, entry := range out.Trail {
			fmt.Fprintf(w, "  %2d. %-12s %s\n", i+1, entry.Node, entry.Output)
		}
	}
}
