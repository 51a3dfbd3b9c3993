package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bgricker/cisim/internal/config"
	"github.com/bgricker/cisim/internal/discovery"
	cisimlog "github.com/bgricker/cisim/internal/log"
	"github.com/bgricker/cisim/internal/pipeline"
	"github.com/bgricker/cisim/internal/provider"
	"github.com/bgricker/cisim/internal/toolcheck"
)

// loadConfig merges .cisim.yml from the working directory with the command
// line flags and installs the logger.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	root, err := os.Getwd()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determine working directory: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return config.Config{}, "", err
	}

	flags, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	config.ApplyFlags(&cfg, flags)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, "", err
	}
	cisimlog.Setup(cfg.LogLevel, cmd.ErrOrStderr())

	return cfg, root, nil
}

// loadSource picks the pipeline file (argument, then config, then discovery),
// decodes it and settles its dialect.
func loadSource(root string, cfg config.Config, args []string) (provider.Source, pipeline.Dialect, error) {
	dialect, err := cfg.Dialect()
	if err != nil {
		return provider.Source{}, "", err
	}

	input := cfg.Pipeline
	if len(args) > 0 {
		input = args[0]
	}

	var rel string
	if input != "" {
		rel, err = discovery.Resolve(root, input)
		if err != nil {
			return provider.Source{}, "", err
		}
	} else {
		candidate, err := discovery.Find(root, dialect)
		if err != nil {
			if errors.Is(err, discovery.ErrNoPipelines) {
				return provider.Source{}, "", errors.New("no pipeline found; pass a pipeline file")
			}
			return provider.Source{}, "", err
		}
		rel = candidate.Path
		if dialect == "" {
			dialect = candidate.Dialect
		}
	}

	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, rel)
	}
	src, err := provider.Load(path)
	if err != nil {
		return provider.Source{}, "", err
	}
	src.Path = rel

	if dialect == "" {
		dialect, err = provider.Detect(rel, src.Doc)
		if err != nil {
			return provider.Source{}, "", err
		}
	}
	return src, dialect, nil
}

// loadPipeline resolves and parses the pipeline for run and show.
func loadPipeline(root string, cfg config.Config, args []string) (provider.Source, pipeline.Pipeline, error) {
	src, dialect, err := loadSource(root, cfg, args)
	if err != nil {
		return provider.Source{}, pipeline.Pipeline{}, err
	}
	p, err := provider.ParseSource(src, dialect)
	if err != nil {
		return provider.Source{}, pipeline.Pipeline{}, err
	}
	return src, p, nil
}

func versionWarnings(ctx context.Context, root string, cfg config.Config) []toolcheck.Warning {
	if !cfg.Warn.VersionMismatch {
		return nil
	}
	return toolcheck.New().Check(ctx, root)
}

func collapseWarnings(src provider.Source, p pipeline.Pipeline, tools []toolcheck.Warning) []string {
	var out []string
	for _, w := range provider.Unsupported(src, p.Dialect) {
		out = append(out, w.String())
	}
	for _, w := range tools {
		out = append(out, w.String())
	}
	return out
}

func resolvePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
