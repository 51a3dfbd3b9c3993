// Package runner executes a parsed pipeline on the local machine.
//
// Jobs run one after another in declaration order and steps run one after
// another within a job. needs and dependsOn are informational only. Every
// scope gets its own copy of the environment: process, then pipeline, then
// job, then step, with the innermost value winning.
//
// Commands are handed to the shell exactly as written after variable
// substitution. Nothing is quoted or escaped, so a pipeline definition has the
// same power as a shell script run by the current user.
package runner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/bgricker/cisim/internal/condition"
	"github.com/bgricker/cisim/internal/env"
	cisimlog "github.com/bgricker/cisim/internal/log"
	"github.com/bgricker/cisim/internal/pipeline"
	"github.com/bgricker/cisim/internal/report"
)

// DefaultTimeout bounds a single step.
const DefaultTimeout = 300 * time.Second

// ExitCodeFault is recorded when a step ends without a process exit status:
// timeouts, spawn failures and missing working directories.
const ExitCodeFault = -1

// Skip reasons recorded on step results.
const (
	ReasonDryRun  = "dry run"
	ReasonNothing = "nothing to execute"
)

//go:generate mockgen -source=runner.go -destination=mocks/mock_observer.go -package=mocks

// Observer is notified as a run progresses. Calls are made synchronously, in
// execution order, from the goroutine calling RunPipeline.
type Observer interface {
	JobStarted(job pipeline.Job)
	StepFinished(job string, result report.StepResult)
	JobFinished(result report.JobResult)
}

// Options configure how the runner executes steps.
type Options struct {
	// WorkDir is the directory every step runs in unless the step names its
	// own. Defaults to the current directory.
	WorkDir string
	// Environ is the process environment at the bottom of the cascade.
	// Defaults to os.Environ(), captured when a pipeline run starts.
	Environ []string
	// Timeout bounds each step. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Shell is the shell spec used when a step does not declare one, for
	// example "bash -e -c". Defaults to "sh -c".
	Shell   string
	Stdout  io.Writer
	Stderr  io.Writer
	Verbose bool
	DryRun  bool

	GuardPrivileged    bool
	PrivilegedPatterns []string

	Observers []Observer
	Logger    *slog.Logger
	Now       func() time.Time
}

// Runner executes pipelines sequentially.
type Runner struct {
	opts Options
}

// New creates a runner with the supplied options.
func New(opts Options) *Runner {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = cisimlog.WithComponent("runner")
	}
	if len(opts.PrivilegedPatterns) == 0 {
		opts.PrivilegedPatterns = DefaultPrivilegedPatterns()
	}
	opts.PrivilegedPatterns = append([]string{}, opts.PrivilegedPatterns...)
	return &Runner{opts: opts}
}

// RunPipeline executes every job of p, or only the job named jobFilter when it
// is not empty. A failed job does not stop later jobs. Cancelling ctx stops
// the run after the current step.
func (r *Runner) RunPipeline(ctx context.Context, p pipeline.Pipeline, jobFilter string) report.PipelineResult {
	start := r.opts.Now()
	result := report.PipelineResult{
		RunID:     uuid.NewString(),
		Name:      p.Name,
		Dialect:   p.Dialect,
		Success:   true,
		Jobs:      []report.JobResult{},
		StartedAt: start,
	}

	environ := r.opts.Environ
	if environ == nil {
		environ = os.Environ()
	}
	base := env.FromSlice(environ)
	base.MergeMap(p.Env)

	logger := r.opts.Logger.With("run_id", result.RunID, "pipeline", p.Name)
	logger.Debug("pipeline started", "type", p.Dialect, "jobs", len(p.AllJobs()), "filter", jobFilter)

	for _, job := range p.AllJobs() {
		if jobFilter != "" && job.Name != jobFilter {
			continue
		}
		if ctx.Err() != nil {
			logger.Warn("run cancelled", "error", ctx.Err())
			result.Success = false
			break
		}
		jobResult := r.RunJob(ctx, job, base)
		result.Jobs = append(result.Jobs, jobResult)
		if !jobResult.Success {
			result.Success = false
		}
	}

	result.Duration = r.opts.Now().Sub(start)
	result.DurationMS = result.Duration.Milliseconds()
	logger.Debug("pipeline finished", "success", result.Success, "duration", result.Duration)
	return result
}

// RunJob executes the steps of job against a copy of base. The first failing
// step ends the job; the remaining steps produce no results.
func (r *Runner) RunJob(ctx context.Context, job pipeline.Job, base *env.Environment) report.JobResult {
	start := r.opts.Now()
	result := report.JobResult{
		Name:    job.Name,
		Success: true,
		Steps:   []report.StepResult{},
	}
	r.notify(func(o Observer) { o.JobStarted(job) })

	jobEnv := base.Overlay(job.Env)
	logger := r.opts.Logger.With("job", job.Name)

	if ok, matcher := condition.Explain(job.Condition, jobEnv); !ok {
		result.Skipped = true
		result.SkipReason = conditionReason(job.Condition)
		logger.Debug("job skipped", "condition", job.Condition, "matcher", matcher)
	} else {
		logger.Debug("job started", "steps", len(job.Steps))
		for _, step := range job.Steps {
			stepResult := r.RunStep(ctx, step, jobEnv)
			result.Steps = append(result.Steps, stepResult)
			r.notify(func(o Observer) { o.StepFinished(job.Name, stepResult) })
			if !stepResult.Success && !stepResult.Skipped {
				result.Success = false
				logger.Debug("job stopped after failed step", "step", step.Name, "exit_code", stepResult.ExitCode)
				break
			}
		}
	}

	result.Duration = r.opts.Now().Sub(start)
	result.DurationMS = result.Duration.Milliseconds()
	r.notify(func(o Observer) { o.JobFinished(result) })
	return result
}

// RunStep executes a single step against a copy of parent.
func (r *Runner) RunStep(ctx context.Context, step pipeline.Step, parent *env.Environment) report.StepResult {
	start := r.opts.Now()
	stepEnv := parent.Overlay(step.Env)
	result := r.runStep(ctx, step, stepEnv)
	result.Duration = r.opts.Now().Sub(start)
	result.DurationMS = result.Duration.Milliseconds()
	r.opts.Logger.Debug("step finished",
		"step", step.Name,
		"status", result.Status(),
		"exit_code", result.ExitCode,
		"duration", result.Duration,
	)
	return result
}

func (r *Runner) runStep(ctx context.Context, step pipeline.Step, stepEnv *env.Environment) report.StepResult {
	result := report.StepResult{Name: step.Name, Success: true}

	if !condition.Evaluate(step.Condition, stepEnv) {
		result.Skipped = true
		result.SkipReason = conditionReason(step.Condition)
		return result
	}

	switch step.Kind() {
	case pipeline.KindUses:
		result.Skipped = true
		result.SkipReason = actionReason(step.Uses)
		result.Output = "[simulated] action: " + step.Uses
		return result
	case pipeline.KindRun:
		return r.runCommand(ctx, step, stepEnv)
	default:
		result.Skipped = true
		result.SkipReason = ReasonNothing
		return result
	}
}

func (r *Runner) notify(fn func(Observer)) {
	for _, o := range r.opts.Observers {
		if o != nil {
			fn(o)
		}
	}
}

func conditionReason(expr string) string {
	return "condition not met: " + expr
}

func actionReason(uses string) string {
	return "external action \"" + uses + "\" is simulated, not executed"
}
