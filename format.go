package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	if !cc.Flags.Quiet {
		fmt.Fprintf(cc.Err, format, args...)
	}
}

// formatTime returns a compact timestamp with its age, e.g.
// "Mar  1 12:00 (3 hours ago)".
func formatTime(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}

	layout := "Jan _2 15:04"
	if t.Year() != now.Year() {
		layout = "Jan _2  2006"
	}

	return fmt.Sprintf("%s (%s)", t.Format(layout), humanize.RelTime(t, now, "ago", "from now"))
}

// formatElapsed renders a run's duration, or "-" while it has not finished.
func formatElapsed(started, finished time.Time) string {
	if finished.IsZero() {
		return "-"
	}

	return finished.Sub(started).Round(time.Millisecond).String()
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}
