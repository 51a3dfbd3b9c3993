package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/bgricker/cisim/internal/pipeline"
	"github.com/bgricker/cisim/internal/report"
)

// Progress prints a line as each job starts and each step finishes.
type Progress struct {
	mu  sync.Mutex
	out io.Writer
}

// NewProgress creates a Progress observer writing to out.
func NewProgress(out io.Writer) *Progress {
	return &Progress{out: out}
}

func (p *Progress) JobStarted(job pipeline.Job) {
	p.printf("==> %s (%d steps)\n", job.Name, len(job.Steps))
}

func (p *Progress) StepFinished(job string, result report.StepResult) {
	p.printf("    [%s] %s: %s (%s)\n", job, result.Name, result.Status(), formatDuration(result.Duration))
}

func (p *Progress) JobFinished(result report.JobResult) {
	status := report.StatusPass
	switch {
	case result.Skipped:
		status = report.StatusSkipped
	case !result.Success:
		status = report.StatusFail
	}
	p.printf("<== %s %s\n", result.Name, status)
}

func (p *Progress) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}
