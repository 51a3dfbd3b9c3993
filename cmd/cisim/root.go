package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cisim",
		Short:         "cisim runs GitHub Actions and Azure Pipelines definitions locally",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	persistent := cmd.PersistentFlags()
	persistent.StringP("type", "t", "auto", "pipeline type (auto|github|azure)")
	persistent.String("format", "pretty", "output format (pretty|json)")
	persistent.String("log-level", "warn", "log level (debug|info|warn|error)")
	persistent.String("history-db", "", "path of the run history database")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}
