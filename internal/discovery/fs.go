// Package discovery locates pipeline definitions in a repository when the
// user does not name one.
package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bgricker/cisim/internal/pipeline"
)

// ErrNoPipelines indicates that no pipeline files were found during discovery.
var ErrNoPipelines = errors.New("no pipelines discovered")

// Candidate is a pipeline file together with the dialect implied by its
// location.
type Candidate struct {
	Path    string
	Dialect pipeline.Dialect
}

var globs = map[pipeline.Dialect][]string{
	pipeline.DialectGitHub: {
		filepath.Join(".github", "workflows", "*.yml"),
		filepath.Join(".github", "workflows", "*.yaml"),
	},
	pipeline.DialectAzure: {
		"azure-pipelines.yml",
		"azure-pipelines.yaml",
		filepath.Join(".azure-pipelines", "*.yml"),
		filepath.Join(".azure-pipelines", "*.yaml"),
	},
}

// Candidates returns every pipeline file under root for the given dialect,
// or for all dialects when dialect is empty. Paths are relative to root and
// sorted lexicographically.
func Candidates(root string, dialect pipeline.Dialect) ([]Candidate, error) {
	dialects := pipeline.Dialects()
	if dialect != "" {
		dialects = []pipeline.Dialect{dialect}
	}

	matches := make(map[string]pipeline.Dialect)
	for _, d := range dialects {
		for _, glob := range globs[d] {
			pattern := filepath.Join(root, glob)
			found, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", pattern, err)
			}
			for _, m := range found {
				if info, err := os.Stat(m); err != nil || info.IsDir() {
					continue
				}
				matches[mustRelOrClean(root, m)] = d
			}
		}
	}

	if len(matches) == 0 {
		return nil, ErrNoPipelines
	}

	out := make([]Candidate, 0, len(matches))
	for p, d := range matches {
		out = append(out, Candidate{Path: p, Dialect: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Find returns the single pipeline file under root. More than one candidate
// is an error naming all of them.
func Find(root string, dialect pipeline.Dialect) (Candidate, error) {
	found, err := Candidates(root, dialect)
	if err != nil {
		return Candidate{}, err
	}
	if len(found) > 1 {
		paths := make([]string, 0, len(found))
		for _, c := range found {
			paths = append(paths, c.Path)
		}
		return Candidate{}, fmt.Errorf("found %d pipelines, pass one explicitly: %s", len(found), strings.Join(paths, ", "))
	}
	return found[0], nil
}

// Resolve validates an explicitly named pipeline file. Relative paths are
// taken relative to root.
func Resolve(root, input string) (string, error) {
	cleaned := input
	if !filepath.IsAbs(cleaned) {
		cleaned = filepath.Join(root, cleaned)
	}
	info, err := os.Stat(cleaned)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("pipeline %q not found", input)
		}
		return "", fmt.Errorf("stat %q: %w", input, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("pipeline %q is a directory", input)
	}
	return mustRelOrClean(root, cleaned), nil
}

func mustRelOrClean(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Clean(path)
	}
	rel = filepath.Clean(rel)
	if rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Clean(path)
	}
	return rel
}
