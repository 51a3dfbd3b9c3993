// Package report holds the result tree produced by a pipeline run.
package report

import (
	"time"

	"github.com/bgricker/cisim/internal/pipeline"
)

// Step status labels used by renderers.
const (
	StatusPass    = "PASS"
	StatusFail    = "FAIL"
	StatusSkipped = "SKIPPED"
)

// StepResult captures the outcome of a single step.
type StepResult struct {
	Name       string        `json:"name"`
	Success    bool          `json:"success"`
	ExitCode   int           `json:"exit_code"`
	Output     string        `json:"output"`
	Error      string        `json:"error,omitempty"`
	Skipped    bool          `json:"skipped"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Command    string        `json:"command,omitempty"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// Status returns the display label for the step.
func (s StepResult) Status() string {
	switch {
	case s.Skipped:
		return StatusSkipped
	case s.Success:
		return StatusPass
	default:
		return StatusFail
	}
}

// JobResult captures the outcome of a job and the steps that were attempted.
type JobResult struct {
	Name       string        `json:"name"`
	Success    bool          `json:"success"`
	Skipped    bool          `json:"skipped,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Steps      []StepResult  `json:"steps"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// PipelineResult is the root of the result tree.
type PipelineResult struct {
	RunID      string           `json:"run_id"`
	Name       string           `json:"name"`
	Dialect    pipeline.Dialect `json:"type"`
	Success    bool             `json:"success"`
	Jobs       []JobResult      `json:"jobs"`
	StartedAt  time.Time        `json:"started_at"`
	Duration   time.Duration    `json:"-"`
	DurationMS int64            `json:"duration_ms"`
}

// Summary aggregates pipeline execution results.
type Summary struct {
	TotalJobs  int           `json:"total_jobs"`
	PassedJobs int           `json:"passed_jobs"`
	FailedJobs int           `json:"failed_jobs"`
	TotalSteps int           `json:"total_steps"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
	ExitCode   int           `json:"exit_code"`
}

// Summary counts jobs and steps. Skipped jobs count as passed.
func (r PipelineResult) Summary() Summary {
	s := Summary{
		TotalJobs:  len(r.Jobs),
		Duration:   r.Duration,
		DurationMS: r.Duration.Milliseconds(),
	}
	for _, job := range r.Jobs {
		if job.Success {
			s.PassedJobs++
		} else {
			s.FailedJobs++
		}
		for _, step := range job.Steps {
			s.TotalSteps++
			switch step.Status() {
			case StatusSkipped:
				s.Skipped++
			case StatusPass:
				s.Passed++
			default:
				s.Failed++
			}
		}
	}
	if s.FailedJobs > 0 || !r.Success {
		s.ExitCode = 1
	}
	return s
}

// FailedJobs returns the names of jobs that did not succeed.
func (r PipelineResult) FailedJobs() []string {
	var names []string
	for _, job := range r.Jobs {
		if !job.Success {
			names = append(names, job.Name)
		}
	}
	return names
}
