package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/calm-cli/calm/internal/calendar"
)

// ANSI colors
const (
	ansiReset = "\033[0m"
	ansiGray  = "\033[90m"
	ansiGreen = "\033[1;32m"
	ansiWhite = "\033[97m"
	ansiRed   = "\033[31m"
	ansiCyan  = "\033[36m"
)

// colorize colors every line of text so multi-line values stay uniform.
func colorize(text, color string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = color + line + ansiReset
	}
	return strings.Join(lines, "\n")
}

func statusColor(s calendar.Status) string {
	switch s {
	case calendar.StatusInProgress:
		return ansiGreen
	case calendar.StatusUpcoming:
		return ansiWhite
	default:
		return ansiGray
	}
}

func legend() string {
	parts := make([]string, 0, 3)
	for _, s := range []calendar.Status{calendar.StatusPast, calendar.StatusInProgress, calendar.StatusUpcoming} {
		parts = append(parts, colorize("■", statusColor(s))+" "+s.String())
	}
	return strings.Join(parts, "  ")
}

// printEvents writes one colored line per event, preceded by the legend.
func printEvents(w io.Writer, events []calendar.Event, now time.Time, loc *time.Location) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}

	fmt.Fprintln(w, legend())
	for _, ev := range events {
		title := ev.Title
		if strings.TrimSpace(title) == "" {
			title = "No Subject"
		}
		color := statusColor(ev.StatusAt(now, loc))
		fmt.Fprintf(w, "%s：%s\n", colorize(ev.Span(loc), color), colorize(title, color))
	}
}

// printJSON writes v as indented JSON with non-ASCII text left as is.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
