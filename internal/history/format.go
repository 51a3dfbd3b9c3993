package history

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

// Write prints entries as a table. Start times are shown relative to now.
func Write(w io.Writer, entries []Entry, now time.Time) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded")
		return err
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := "PASS"
		if !e.Success {
			status = "FAIL"
		}
		rows = append(rows, []string{
			shortID(e.RunID),
			e.Pipeline,
			string(e.Dialect),
			status,
			fmt.Sprint(e.Jobs),
			fmt.Sprint(e.Steps),
			humanize.RelTime(e.StartedAt, now, "ago", "from now"),
			e.Duration.Truncate(time.Millisecond).String(),
			shortID(e.Digest),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Run", "Pipeline", "Type", "Result", "Jobs", "Steps", "Started", "Duration", "Digest").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func shortID(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
