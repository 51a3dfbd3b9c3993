// Package provider turns pipeline source files into the normalized pipeline
// model. Each dialect lives in its own subpackage; this package dispatches to
// them and owns loading, dialect detection and parse errors.
package provider

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bgricker/cisim/internal/pipeline"
	"github.com/bgricker/cisim/internal/provider/azure"
	"github.com/bgricker/cisim/internal/provider/fields"
	"github.com/bgricker/cisim/internal/provider/github"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedDialect is wrapped by ParseError when the dialect tag is unknown.
var ErrUnsupportedDialect = errors.New("unsupported pipeline type")

// ParseError reports a pipeline that could not be turned into the model.
// No part of such a pipeline is ever executed.
type ParseError struct {
	Dialect pipeline.Dialect
	Path    string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parse %s pipeline %q: %v", e.Dialect, e.Path, e.Err)
	}
	return fmt.Sprintf("parse %s pipeline: %v", e.Dialect, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Warning captures non-fatal issues found while loading a pipeline.
type Warning struct {
	Path    string `json:"path,omitempty"`
	Job     string `json:"job,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	switch {
	case w.Path != "" && w.Job != "":
		return fmt.Sprintf("%s:%s: %s", w.Path, w.Job, w.Message)
	case w.Path != "":
		return fmt.Sprintf("%s: %s", w.Path, w.Message)
	default:
		return w.Message
	}
}

// Parse maps a decoded document in the given dialect onto the pipeline model.
func Parse(doc *yaml.Node, dialect pipeline.Dialect) (pipeline.Pipeline, error) {
	var (
		p   pipeline.Pipeline
		err error
	)
	switch dialect {
	case pipeline.DialectGitHub:
		p, err = github.Parse(doc)
	case pipeline.DialectAzure:
		p, err = azure.Parse(doc)
	default:
		return pipeline.Pipeline{}, &ParseError{Dialect: dialect, Err: fmt.Errorf("%w %q", ErrUnsupportedDialect, string(dialect))}
	}
	if err != nil {
		return pipeline.Pipeline{}, &ParseError{Dialect: dialect, Err: err}
	}
	return p, nil
}

// Decode reads one YAML document from r.
func Decode(r io.Reader) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("document is empty")
		}
		return nil, err
	}
	return &doc, nil
}

// ParseBytes decodes YAML content and parses it in the given dialect.
func ParseBytes(data []byte, dialect pipeline.Dialect) (pipeline.Pipeline, error) {
	doc, err := Decode(bytes.NewReader(data))
	if err != nil {
		return pipeline.Pipeline{}, &ParseError{Dialect: dialect, Err: err}
	}
	return Parse(doc, dialect)
}

// Source is a loaded pipeline file before dialect mapping.
type Source struct {
	Path string
	Data []byte
	Doc  *yaml.Node
}

// Load reads and decodes a pipeline file without mapping it.
func Load(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("read pipeline %q: %w", path, err)
	}
	doc, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Source{}, fmt.Errorf("decode pipeline %q: %w", path, err)
	}
	return Source{Path: path, Data: data, Doc: doc}, nil
}

// ParseSource maps a loaded source in the given dialect.
func ParseSource(src Source, dialect pipeline.Dialect) (pipeline.Pipeline, error) {
	p, err := Parse(src.Doc, dialect)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = src.Path
		}
		return pipeline.Pipeline{}, err
	}
	p.Path = src.Path
	return p, nil
}

// ParseFile loads a pipeline file and parses it in the given dialect.
func ParseFile(path string, dialect pipeline.Dialect) (pipeline.Pipeline, error) {
	src, err := Load(path)
	if err != nil {
		return pipeline.Pipeline{}, &ParseError{Dialect: dialect, Path: path, Err: err}
	}
	return ParseSource(src, dialect)
}

// Unsupported reports dialect features that are accepted but not simulated.
func Unsupported(src Source, dialect pipeline.Dialect) []Warning {
	var msgs []string
	switch dialect {
	case pipeline.DialectGitHub:
		msgs = github.Unsupported(src.Doc)
	case pipeline.DialectAzure:
		msgs = azure.Unsupported(src.Doc)
	}
	warnings := make([]Warning, 0, len(msgs))
	for _, msg := range msgs {
		warnings = append(warnings, Warning{Path: src.Path, Message: msg})
	}
	return warnings
}

// Detect guesses the dialect of a document from its location and shape.
func Detect(path string, doc *yaml.Node) (pipeline.Dialect, error) {
	slashed := filepath.ToSlash(path)
	if strings.Contains(slashed, ".github/workflows/") {
		return pipeline.DialectGitHub, nil
	}
	if strings.HasPrefix(strings.ToLower(filepath.Base(path)), "azure-pipelines") {
		return pipeline.DialectAzure, nil
	}

	root, err := fields.Root(doc)
	if err != nil {
		return "", fmt.Errorf("detect pipeline type of %q: %w", path, err)
	}
	if jobs := fields.Lookup(root, "jobs"); jobs != nil {
		switch jobs.Kind {
		case yaml.MappingNode:
			return pipeline.DialectGitHub, nil
		case yaml.SequenceNode:
			return pipeline.DialectAzure, nil
		}
	}
	for _, key := range []string{"stages", "steps", "variables", "trigger", "pool"} {
		if fields.Has(root, key) {
			return pipeline.DialectAzure, nil
		}
	}
	if fields.Has(root, "on") || fields.Has(root, "env") {
		return pipeline.DialectGitHub, nil
	}
	return "", fmt.Errorf("cannot detect pipeline type of %q; pass --type", path)
}
