package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bgricker/cisim/internal/config"
	"github.com/bgricker/cisim/internal/output"
	"github.com/bgricker/cisim/internal/provider/filter"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [FILE]",
		Short: "Print the structure of a pipeline",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runShow,
	}

	flags := cmd.Flags()
	flags.StringArray("job", nil, "job filter, substring or /regex/ (repeatable)")
	flags.StringArray("step", nil, "step filter, substring or /regex/ (repeatable)")

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	_, p, err := loadPipeline(root, cfg, args)
	if err != nil {
		return err
	}

	jobPatterns, err := compileFlag(cmd, "job")
	if err != nil {
		return err
	}
	stepPatterns, err := compileFlag(cmd, "step")
	if err != nil {
		return err
	}
	p = filter.Pipeline(p, jobPatterns, stepPatterns)

	if len(p.AllJobs()) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching jobs or steps")
		return nil
	}

	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		return output.Show(cmd.OutOrStdout(), p)
	case config.FormatJSON:
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
}

func compileFlag(cmd *cobra.Command, name string) ([]filter.Pattern, error) {
	raw, err := cmd.Flags().GetStringArray(name)
	if err != nil {
		return nil, fmt.Errorf("parse --%s: %w", name, err)
	}
	patterns, err := filter.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("parse --%s: %w", name, err)
	}
	return patterns, nil
}
