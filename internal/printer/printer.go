// Package printer renders boardctl output: status messages and the live
// event feed of a watched board.
package printer

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/driftboard/driftboard/pkg/board"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	// Color definitions
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	dim    = color.New(color.Faint)
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		green.Printf("✓ %s", msg)
	} else {
		green.Print(msg)
	}
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		yellow.Printf("⚠️  %s", msg)
	} else {
		yellow.Print(msg)
	}
}

// Error creates a formatted error message with title, explanation, and suggestions
// Prints the formatted error to stderr with colors and returns a simple error for Cobra
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)
	fmt.Fprintf(os.Stderr, "%s\n", explanation)

	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(os.Stderr, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(os.Stderr, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	// Return simple error for Cobra (won't be printed due to SilenceErrors)
	return fmt.Errorf("%s", title)
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Printf("→ %s", fmt.Sprintf(format, a...))
}

// Println prints a plain message (for output that doesn't need coloring)
func Println(a ...any) {
	fmt.Println(a...)
}

// Printf prints a plain formatted message (for output that doesn't need coloring)
func Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Event prints one relay envelope as a feed line: timestamp, colored event
// name, sender, and a flattened payload summary.
func Event(env *board.Envelope) {
	Println(FormatEvent(env))
}

// FormatEvent renders an envelope without printing it, for testability.
func FormatEvent(env *board.Envelope) string {
	var b strings.Builder

	ts := time.UnixMilli(env.SentAtMs)
	if env.SentAtMs == 0 {
		ts = time.Now()
	}
	b.WriteString(dim.Sprintf("%s ", ts.Format("15:04:05")))
	b.WriteString(eventColor(env.Event).Sprintf("%-16s", env.Event))

	if env.SenderName != "" {
		b.WriteString(fmt.Sprintf(" %s", env.SenderName))
	} else if env.SenderID != "" {
		b.WriteString(fmt.Sprintf(" %s", env.SenderID))
	}

	if summary := payloadSummary(env.Payload); summary != "" {
		b.WriteString(dim.Sprintf("  %s", summary))
	}

	return b.String()
}

// eventColor picks a feed color per event family: green for arrivals, yellow
// for departures and errors, cyan for board mutations.
func eventColor(event string) *color.Color {
	switch event {
	case board.EventUserJoined, board.EventBoardJoined, board.EventCardCreated:
		return green
	case board.EventUserLeft, board.EventCardDeleted:
		return yellow
	case board.EventError:
		return red
	default:
		return cyan
	}
}

// payloadSummary flattens a JSON payload to "k=v" pairs in key order. Nested
// documents fall back to raw JSON, truncated.
func payloadSummary(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return truncate(string(payload), 80)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string, float64, bool, nil:
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		default:
			raw, _ := json.Marshal(v)
			parts = append(parts, fmt.Sprintf("%s=%s", k, truncate(string(raw), 40)))
		}
	}
	return truncate(strings.Join(parts, " "), 120)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
