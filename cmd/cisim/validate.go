package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bgricker/cisim/internal/config"
	"github.com/bgricker/cisim/internal/validate"
)

// errValidationFailed is returned after a report with errors has been printed.
var errValidationFailed = errors.New("validation failed")

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [FILE]",
		Short: "Check a pipeline without running it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	src, dialect, err := loadSource(root, cfg, args)
	if err != nil {
		return err
	}

	rep := validate.Source(ctx, src, dialect, validate.Options{Environ: os.Environ()})
	for _, w := range versionWarnings(ctx, root, cfg) {
		rep.Warnings = append(rep.Warnings, validate.Issue{Location: w.Source, Message: w.String()})
	}

	if err := renderValidation(cmd.OutOrStdout(), cfg.Format, rep); err != nil {
		return err
	}
	if !rep.OK() {
		return errValidationFailed
	}
	return nil
}

func renderValidation(w io.Writer, format string, rep validate.Report) error {
	switch strings.ToLower(format) {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case config.FormatPretty:
	default:
		return fmt.Errorf("unsupported format %q", format)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Validating %s (%s)\n", rep.Path, rep.Dialect)
	for _, issue := range rep.Errors {
		fmt.Fprintf(&b, "error: %s\n", issue)
	}
	for _, issue := range rep.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", issue)
	}
	if rep.OK() {
		fmt.Fprintf(&b, "OK: %d jobs, %d steps, %d warnings\n", rep.Jobs, rep.Steps, len(rep.Warnings))
	} else {
		fmt.Fprintf(&b, "FAILED: %d errors, %d warnings\n", len(rep.Errors), len(rep.Warnings))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
