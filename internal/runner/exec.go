package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/buildkite/shellwords"

	"github.com/bgricker/cisim/internal/env"
	"github.com/bgricker/cisim/internal/expand"
	"github.com/bgricker/cisim/internal/pipeline"
	"github.com/bgricker/cisim/internal/report"
)

// waitDelay bounds how long output pipes are drained after the process has
// been killed. Grandchildren that escaped the process group may hold them open.
const waitDelay = 2 * time.Second

func (r *Runner) runCommand(ctx context.Context, step pipeline.Step, stepEnv *env.Environment) report.StepResult {
	command := expand.Expand(step.Run, stepEnv)
	result := report.StepResult{Name: step.Name, Command: command}

	args, err := r.commandArgs(step.Shell, command)
	if err != nil {
		return fault(result, err.Error())
	}

	if r.opts.DryRun {
		result.Success = true
		result.Skipped = true
		result.SkipReason = ReasonDryRun
		result.Output = "[dry run] " + quoteArgs(args)
		return result
	}

	if r.opts.GuardPrivileged {
		if pattern, ok := matchPrivileged(command, r.opts.PrivilegedPatterns); ok {
			result.Success = true
			result.Skipped = true
			result.SkipReason = fmt.Sprintf("privileged command matching pattern %q", pattern)
			return result
		}
	}

	dir, err := resolveWorkingDirectory(r.opts.WorkDir, step.WorkingDirectory)
	if err != nil {
		return fault(result, err.Error())
	}

	runCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Env = stepEnv.ToSlice()
	cmd.WaitDelay = waitDelay
	setupProcessGroup(cmd)

	var stdoutBuf, stderrBuf strings.Builder
	if r.opts.Verbose {
		cmd.Stdout = io.MultiWriter(r.opts.Stdout, &stdoutBuf)
		cmd.Stderr = io.MultiWriter(r.opts.Stderr, &stderrBuf)
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	}

	err = cmd.Run()
	result.Output = stdoutBuf.String()
	result.Error = stderrBuf.String()
	return r.finish(ctx, runCtx, result, err)
}

// finish classifies the outcome of a command that was started. A clean exit
// wins over an expired deadline.
func (r *Runner) finish(ctx, runCtx context.Context, result report.StepResult, err error) report.StepResult {
	switch {
	case err == nil && ctx.Err() == nil:
		result.Success = true
		result.ExitCode = 0
		return result
	case timedOut(ctx, runCtx):
		return fault(result, fmt.Sprintf("command timed out after %s", r.opts.Timeout))
	case ctx.Err() != nil:
		return fault(result, fmt.Sprintf("command cancelled: %v", ctx.Err()))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitCode(exitErr)
		return result
	}
	return fault(result, err.Error())
}

// timedOut reports whether the step deadline expired while the parent context
// is still live. Callers check for a clean exit first: a command that exits 0
// as the deadline passes has succeeded.
func timedOut(ctx, runCtx context.Context) bool {
	return errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
}

// fault records a step that ended without an exit status. Captured stderr is
// kept ahead of the fault message.
func fault(result report.StepResult, msg string) report.StepResult {
	result.Success = false
	result.ExitCode = ExitCodeFault
	if strings.TrimSpace(result.Error) != "" {
		result.Error = strings.TrimRight(result.Error, "\n") + "\n" + msg
	} else {
		result.Error = msg
	}
	return result
}

// commandArgs builds the argv for script. The step's shell wins over the
// runner's shell, which wins over the platform default.
func (r *Runner) commandArgs(stepShell, script string) ([]string, error) {
	spec := strings.TrimSpace(stepShell)
	if spec == "" {
		spec = strings.TrimSpace(r.opts.Shell)
	}
	return commandArgs(spec, script)
}

func commandArgs(shellSpec, script string) ([]string, error) {
	if shellSpec == "" {
		if runtime.GOOS == "windows" {
			return []string{"cmd", "/C", script}, nil
		}
		return []string{"sh", "-c", script}, nil
	}

	fields, err := shellwords.Split(shellSpec)
	if err != nil {
		return nil, fmt.Errorf("parse shell %q: %w", shellSpec, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("parse shell %q: no command", shellSpec)
	}

	// A spec that already ends in its command flag only needs the script.
	switch strings.ToLower(fields[len(fields)-1]) {
	case "-c", "/c", "-command":
		return append(fields, script), nil
	}

	shell := fields[0]
	args := append([]string{}, fields[1:]...)
	switch strings.TrimSuffix(strings.ToLower(filepath.Base(shell)), ".exe") {
	case "bash", "zsh", "ksh", "fish", "sh", "dash", "python", "python3":
		args = append(args, "-c", script)
	case "cmd":
		args = append(args, "/C", script)
	case "pwsh", "powershell":
		args = append(args, "-Command", script)
	default:
		args = append(args, script)
	}
	return append([]string{shell}, args...), nil
}

func quoteArgs(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, shellwords.Quote(a))
	}
	return strings.Join(quoted, " ")
}

func resolveWorkingDirectory(root, stepDir string) (string, error) {
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
	}

	candidate := strings.TrimSpace(stepDir)
	if candidate == "" {
		candidate = root
	} else if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}

	info, err := os.Stat(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("working directory %q not found", candidate)
		}
		return "", fmt.Errorf("stat working directory %q: %w", candidate, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("working directory %q is not a directory", candidate)
	}
	return candidate, nil
}

func exitCode(exitErr *exec.ExitError) int {
	if status, ok := exitErr.Sys().(interface{ ExitStatus() int }); ok {
		return status.ExitStatus()
	}
	return exitErr.ExitCode()
}

func matchPrivileged(script string, patterns []string) (string, bool) {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		matched, err := regexp.MatchString(pattern, script)
		if err != nil {
			continue
		}
		if matched {
			return pattern, true
		}
	}
	return "", false
}

// DefaultPrivilegedPatterns matches commands that need elevated rights or
// change the host system outside the working directory.
func DefaultPrivilegedPatterns() []string {
	return []string{
		`(?i)^\s*sudo\b`,
		`(?i)\bapt-get\b`,
		`(?i)\bapt\b`,
		`(?i)\byum\b`,
		`(?i)\bdnf\b`,
		`(?i)\bzypper\b`,
		`(?i)\bpacman\b`,
		`(?i)\bbrew\b`,
		`(?i)\bchoco\b`,
		`(?i)\bwinget\b`,
		`(?i)\bpip\s+install\s+--user`,
		`(?i)\bnpm\s+install\s+-g`,
		`(?i)\byarn\s+global`,
	}
}
