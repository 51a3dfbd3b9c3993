package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bgricker/cisim/internal/config"
	"github.com/bgricker/cisim/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	cmd.Flags().Int("limit", history.DefaultLimit, "number of runs to list")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("parse --limit: %w", err)
	}

	path := cfg.HistoryPath()
	if path == "" {
		path = config.DefaultHistoryPath
	}
	path = resolvePath(root, path)

	var entries []history.Entry
	if _, err := os.Stat(path); err == nil {
		store, err := history.Open(ctx, path)
		if err != nil {
			return err
		}
		defer store.Close()
		if entries, err = store.List(ctx, limit); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat history %q: %w", path, err)
	}

	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		return history.Write(cmd.OutOrStdout(), entries, time.Now())
	case config.FormatJSON:
		if entries == nil {
			entries = []history.Entry{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
}
