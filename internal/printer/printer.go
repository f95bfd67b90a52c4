// Package printer renders CLI output with consistent coloring.
package printer

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/ashmit2704/taskboard/internal/events"
	"github.com/ashmit2704/taskboard/internal/models"
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

// Error prints a formatted error to stderr and returns a simple error for
// Cobra (won't be printed again due to SilenceErrors).
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

	return fmt.Errorf("%s", title)
}

// Println prints a plain message (for output that doesn't need coloring)
func Println(a ...any) {
	fmt.Println(a...)
}

// Printf prints a plain formatted message (for output that doesn't need coloring)
func Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}

// StatusLabel colors a board column name by how finished it is.
func StatusLabel(status models.Status) string {
	switch status {
	case models.StatusDone:
		return green.Sprint(status)
	case models.StatusInProgress:
		return yellow.Sprint(status)
	default:
		return cyan.Sprint(status)
	}
}

// TaskLine renders one task as a single board row.
func TaskLine(task *models.Task) string {
	line := fmt.Sprintf("%-12s v%-3d %-10s %s", StatusLabel(task.Status), task.Version, task.Priority, task.Title)
	if task.AssignedUser != "" {
		line += dim.Sprintf("  (%s)", task.AssignedUser)
	}
	if task.Locked() {
		line += yellow.Sprintf("  [editing: %s]", task.EditingBy)
	}
	return line
}

// EventLine renders one broadcast event for the watch stream.
func EventLine(kind events.Kind, detail string) string {
	var label string
	switch kind {
	case events.KindTaskUpdated, events.KindStatusUpdated:
		label = cyan.Sprint(kind)
	case events.KindTaskDeleted:
		label = red.Sprint(kind)
	case events.KindTaskLocked, events.KindTaskUnlocked:
		label = yellow.Sprint(kind)
	case events.KindConflictResolved:
		label = green.Sprint(kind)
	default:
		label = dim.Sprint(kind)
	}
	return fmt.Sprintf("%-24s %s", label, detail)
}
