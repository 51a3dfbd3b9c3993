package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/bgricker/cisim/internal/report"
)

// MaxOutputLen bounds the output shown per step in the results table.
const MaxOutputLen = 200

// Theme holds the styles used by the pretty renderer.
type Theme struct {
	Pass    lipgloss.Style
	Fail    lipgloss.Style
	Skipped lipgloss.Style
	Header  lipgloss.Style
	Title   lipgloss.Style
	Dim     lipgloss.Style
	Border  lipgloss.Style
}

// NewTheme builds the default theme for the given renderer. Colors degrade to
// plain text when the renderer's writer is not a terminal.
func NewTheme(r *lipgloss.Renderer) Theme {
	return Theme{
		Pass:    r.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Fail:    r.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
		Skipped: r.NewStyle().Foreground(lipgloss.Color("#888888")),
		Header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#61AFEF")).Padding(0, 1),
		Title:   r.NewStyle().Bold(true),
		Dim:     r.NewStyle().Foreground(lipgloss.Color("#888888")),
		Border:  r.NewStyle().Foreground(lipgloss.Color("#874BFD")),
	}
}

// PrettyRenderer renders execution results in a human-friendly format.
type PrettyRenderer struct {
	out      io.Writer
	renderer *lipgloss.Renderer
	theme    Theme
}

// NewPretty creates a PrettyRenderer writing to the provided writer.
func NewPretty(out io.Writer) *PrettyRenderer {
	r := lipgloss.NewRenderer(out)
	return &PrettyRenderer{out: out, renderer: r, theme: NewTheme(r)}
}

// RenderResults prints one table per job followed by the summary line.
func (p *PrettyRenderer) RenderResults(result report.PipelineResult, warnings []string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", p.theme.Title.Render("Pipeline:"), pipelineLabel(result.Name, string(result.Dialect)))
	if result.RunID != "" {
		fmt.Fprintf(&b, "%s\n", p.theme.Dim.Render("run "+result.RunID))
	}

	for _, job := range result.Jobs {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s %s %s\n",
			p.theme.Title.Render("Job: "+job.Name),
			p.jobStatus(job),
			p.theme.Dim.Render("("+formatDuration(job.Duration)+")"),
		)
		if job.Skipped {
			fmt.Fprintf(&b, "  %s\n", job.SkipReason)
			continue
		}
		if len(job.Steps) == 0 {
			b.WriteString("  no steps\n")
			continue
		}
		b.WriteString(p.stepTable(job.Steps))
		b.WriteString("\n")
	}

	summary := result.Summary()
	b.WriteString("\n")
	fmt.Fprintf(&b, "Summary: %d/%d jobs passed (%s)\n", summary.PassedJobs, summary.TotalJobs, formatDuration(summary.Duration))
	if failed := result.FailedJobs(); len(failed) > 0 {
		fmt.Fprintf(&b, "Failed jobs: %s\n", strings.Join(failed, ", "))
	}
	for _, w := range warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}

	_, err := io.WriteString(p.out, b.String())
	return err
}

func (p *PrettyRenderer) stepTable(steps []report.StepResult) string {
	rows := make([][]string, 0, len(steps))
	for _, step := range steps {
		rows = append(rows, []string{step.Name, step.Status(), stepOutput(step)})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.theme.Border).
		Headers("Step", "Status", "Output").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.theme.Header
			}
			style := p.renderer.NewStyle().Padding(0, 1)
			if col == 1 && row >= 0 && row < len(steps) {
				return style.Inherit(p.statusStyle(steps[row].Status()))
			}
			return style
		})
	return t.String()
}

func (p *PrettyRenderer) jobStatus(job report.JobResult) string {
	switch {
	case job.Skipped:
		return p.theme.Skipped.Render(report.StatusSkipped)
	case job.Success:
		return p.theme.Pass.Render(report.StatusPass)
	default:
		return p.theme.Fail.Render(report.StatusFail)
	}
}

func (p *PrettyRenderer) statusStyle(status string) lipgloss.Style {
	switch status {
	case report.StatusPass:
		return p.theme.Pass
	case report.StatusFail:
		return p.theme.Fail
	default:
		return p.theme.Skipped
	}
}

// stepOutput picks what the Output column shows: the error for failures that
// have one, the skip reason for skipped steps, otherwise the captured output.
func stepOutput(step report.StepResult) string {
	var text string
	switch {
	case step.Skipped && step.Output == "":
		text = step.SkipReason
	case !step.Success && !step.Skipped && step.Error != "":
		text = step.Error
	default:
		text = step.Output
	}
	return Truncate(strings.TrimSpace(text), MaxOutputLen)
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func pipelineLabel(name, dialect string) string {
	if name == "" {
		name = "(unnamed)"
	}
	if dialect == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, dialect)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Truncate(time.Millisecond).String()
}
