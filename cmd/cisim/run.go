package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bgricker/cisim/internal/config"
	"github.com/bgricker/cisim/internal/history"
	cisimlog "github.com/bgricker/cisim/internal/log"
	"github.com/bgricker/cisim/internal/metrics"
	"github.com/bgricker/cisim/internal/output"
	"github.com/bgricker/cisim/internal/pipeline"
	"github.com/bgricker/cisim/internal/provider"
	"github.com/bgricker/cisim/internal/report"
	"github.com/bgricker/cisim/internal/runner"
)

// errPipelineFailed is returned after the results of a failed run have been
// rendered, so main exits non-zero without printing anything else.
var errPipelineFailed = errors.New("pipeline failed")

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [FILE]",
		Short: "Execute a pipeline locally",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExecute,
	}

	flags := cmd.Flags()
	flags.StringP("job", "j", "", "run only the job with this name")
	flags.StringP("workdir", "w", "", "directory steps run in (default: current directory)")
	flags.Bool("dry-run", false, "print commands without executing them")
	flags.BoolP("verbose", "v", false, "stream command output and step progress")
	flags.Duration("timeout", config.DefaultTimeout, "per-step timeout")
	flags.String("shell", "", `shell used for run steps (default "sh -c")`)
	flags.String("metrics-file", "", "write Prometheus metrics to this textfile")
	flags.Bool("guard-privileged", false, "skip steps running privileged commands such as sudo")

	return cmd
}

func runExecute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	src, p, err := loadPipeline(root, cfg, args)
	if err != nil {
		return err
	}
	if cfg.Job != "" && !hasJob(p, cfg.Job) {
		return fmt.Errorf("job %q not found in %s", cfg.Job, src.Path)
	}

	warnings := collapseWarnings(src, p, versionWarnings(ctx, root, cfg))
	isJSON := strings.EqualFold(cfg.Format, config.FormatJSON)

	// Live output never goes to stdout when stdout carries JSON.
	live := cmd.OutOrStdout()
	if isJSON {
		live = cmd.ErrOrStderr()
	}

	var observers []runner.Observer
	if cfg.Verbose {
		observers = append(observers, output.NewProgress(cmd.ErrOrStderr()))
	}
	var recorder *metrics.Recorder
	if cfg.Metrics.Textfile != "" {
		recorder = metrics.NewRecorder()
		observers = append(observers, recorder)
	}

	workdir := root
	if cfg.Workdir != "" {
		workdir = resolvePath(root, cfg.Workdir)
	}

	r := runner.New(runner.Options{
		WorkDir:            workdir,
		Timeout:            cfg.Timeout.Duration(),
		Shell:              cfg.Shell,
		Stdout:             live,
		Stderr:             cmd.ErrOrStderr(),
		Verbose:            cfg.Verbose,
		DryRun:             cfg.DryRun,
		GuardPrivileged:    cfg.GuardPrivileged,
		PrivilegedPatterns: cfg.PrivilegedCommandPatterns,
		Observers:          observers,
	})
	result := r.RunPipeline(ctx, p, cfg.Job)
	logger := cisimlog.WithPipeline(p.Name).With("run_id", result.RunID)

	if recorder != nil {
		recorder.PipelineFinished(result)
		if err := recorder.WriteTextfile(resolvePath(root, cfg.Metrics.Textfile)); err != nil {
			logger.Warn("write metrics failed", "error", err)
		}
	}
	if path := cfg.HistoryPath(); path != "" {
		if err := recordHistory(ctx, resolvePath(root, path), src, p, result); err != nil {
			logger.Warn("record run failed", "error", err)
		}
	}

	if err := renderRun(cmd.OutOrStdout(), cfg, p, result, warnings); err != nil {
		return err
	}
	if !result.Success {
		return errPipelineFailed
	}
	return nil
}

func renderRun(w io.Writer, cfg config.Config, p pipeline.Pipeline, result report.PipelineResult, warnings []string) error {
	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		return output.NewPretty(w).RenderResults(result, warnings)
	case config.FormatJSON:
		return output.NewJSON(w).Render(output.NewReport(p, result, warnings))
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
}

func recordHistory(ctx context.Context, path string, src provider.Source, p pipeline.Pipeline, result report.PipelineResult) error {
	store, err := history.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	entry, err := history.NewEntry(p, src.Data, result)
	if err != nil {
		return err
	}
	return store.Record(ctx, entry)
}

func hasJob(p pipeline.Pipeline, name string) bool {
	for _, job := range p.AllJobs() {
		if job.Name == name {
			return true
		}
	}
	return false
}
