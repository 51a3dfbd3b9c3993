package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bgricker/cisim/internal/config"
)

func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	var values config.FlagValues
	var err error

	if values.Type, err = stringFlag(cmd, "type"); err != nil {
		return values, err
	}
	if values.Job, err = stringFlag(cmd, "job"); err != nil {
		return values, err
	}
	if values.Workdir, err = stringFlag(cmd, "workdir"); err != nil {
		return values, err
	}
	if values.Format, err = stringFlag(cmd, "format"); err != nil {
		return values, err
	}
	if values.Verbose, err = boolFlag(cmd, "verbose"); err != nil {
		return values, err
	}
	if values.DryRun, err = boolFlag(cmd, "dry-run"); err != nil {
		return values, err
	}
	if values.Timeout, err = durationFlag(cmd, "timeout"); err != nil {
		return values, err
	}
	if values.Shell, err = stringFlag(cmd, "shell"); err != nil {
		return values, err
	}
	if values.LogLevel, err = stringFlag(cmd, "log-level"); err != nil {
		return values, err
	}
	if values.HistoryDB, err = stringFlag(cmd, "history-db"); err != nil {
		return values, err
	}
	if values.MetricsFile, err = stringFlag(cmd, "metrics-file"); err != nil {
		return values, err
	}
	if values.GuardPrivileged, err = boolFlag(cmd, "guard-privileged"); err != nil {
		return values, err
	}

	return values, nil
}

// changed reports whether the flag exists on cmd with the given type and was
// set on the command line. Commands define different subsets of flags, and
// show declares --job as a list.
func changed(cmd *cobra.Command, name, typ string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed && f.Value.Type() == typ
}

func stringFlag(cmd *cobra.Command, name string) (config.StringFlag, error) {
	if !changed(cmd, name, "string") {
		return config.StringFlag{}, nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return config.StringFlag{}, fmt.Errorf("parse --%s: %w", name, err)
	}
	return config.StringFlag{Value: v, Set: true}, nil
}

func boolFlag(cmd *cobra.Command, name string) (config.BoolFlag, error) {
	if !changed(cmd, name, "bool") {
		return config.BoolFlag{}, nil
	}
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return config.BoolFlag{}, fmt.Errorf("parse --%s: %w", name, err)
	}
	return config.BoolFlag{Value: v, Set: true}, nil
}

func durationFlag(cmd *cobra.Command, name string) (config.DurationFlag, error) {
	if !changed(cmd, name, "duration") {
		return config.DurationFlag{}, nil
	}
	v, err := cmd.Flags().GetDuration(name)
	if err != nil {
		return config.DurationFlag{}, fmt.Errorf("parse --%s: %w", name, err)
	}
	return config.DurationFlag{Value: v, Set: true}, nil
}
