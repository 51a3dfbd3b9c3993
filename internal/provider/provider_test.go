package provider

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bgricker/cisim/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnsupportedDialect(t *testing.T) {
	_, err := ParseBytes([]byte("jobs: {}\n"), pipeline.Dialect("gitlab"))
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr), "expected *ParseError, got %T", err)
	assert.True(t, errors.Is(err, ErrUnsupportedDialect))
	assert.Contains(t, err.Error(), `"gitlab"`)
}

func TestParseBytesErrors(t *testing.T) {
	cases := map[string]string{
		"syntax error": "jobs: [\n",
		"empty":        "",
		"scalar root":  "hello\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBytes([]byte(src), pipeline.DialectGitHub)
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, pipeline.DialectGitHub, perr.Dialect)
		})
	}
}

func TestParseBytesDispatch(t *testing.T) {
	gh, err := ParseBytes([]byte("jobs:\n  a:\n    steps:\n      - run: echo a\n"), pipeline.DialectGitHub)
	require.NoError(t, err)
	assert.Equal(t, pipeline.DialectGitHub, gh.Dialect)
	require.Len(t, gh.Jobs, 1)
	assert.Equal(t, "a", gh.Jobs[0].Name)

	az, err := ParseBytes([]byte("jobs:\n  - job: a\n    steps:\n      - script: echo a\n"), pipeline.DialectAzure)
	require.NoError(t, err)
	assert.Equal(t, pipeline.DialectAzure, az.Dialect)
	require.Len(t, az.Jobs, 1)
	assert.Equal(t, "echo a", az.Jobs[0].Steps[0].Run)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join("testdata", "azure-pipelines.yml")
	p, err := ParseFile(path, pipeline.DialectAzure)
	require.NoError(t, err)
	assert.Equal(t, path, p.Path)
	assert.Equal(t, "hello", p.Env["GREETING"])
	require.Len(t, p.Jobs, 1)
	assert.Equal(t, "Greet", p.Jobs[0].Steps[0].Name)
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.yml"), pipeline.DialectGitHub)
	require.Error(t, err)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.NotEmpty(t, perr.Path)
}

func TestParseSourceSetsPathOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  - nope\n"), 0o644))

	src, err := Load(path)
	require.NoError(t, err)
	_, err = ParseSource(src, pipeline.DialectGitHub)
	require.Error(t, err)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, path, perr.Path)
	assert.True(t, strings.Contains(err.Error(), path))
}

func TestUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ci.yml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  build:\n    container: golang:1.22\n    steps: []\n"), 0o644))

	src, err := Load(path)
	require.NoError(t, err)
	warnings := Unsupported(src, pipeline.DialectGitHub)
	require.Len(t, warnings, 1)
	assert.Equal(t, path, warnings[0].Path)
	assert.Contains(t, warnings[0].String(), "container is ignored")
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		path string
		src  string
		want pipeline.Dialect
	}{
		{"workflow dir", ".github/workflows/ci.yml", "name: x\n", pipeline.DialectGitHub},
		{"azure file name", "azure-pipelines.yml", "name: x\n", pipeline.DialectAzure},
		{"jobs mapping", "ci.yml", "jobs:\n  a: {}\n", pipeline.DialectGitHub},
		{"jobs list", "ci.yml", "jobs:\n  - job: a\n", pipeline.DialectAzure},
		{"stages", "ci.yml", "stages:\n  - stage: a\n", pipeline.DialectAzure},
		{"bare steps", "ci.yml", "steps:\n  - script: echo\n", pipeline.DialectAzure},
		{"on trigger", "ci.yml", "on: push\n", pipeline.DialectGitHub},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := Decode(strings.NewReader(tc.src))
			require.NoError(t, err)
			got, err := Detect(tc.path, doc)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	doc, err := Decode(strings.NewReader("name: only\n"))
	require.NoError(t, err)
	_, err = Detect("ci.yml", doc)
	assert.Error(t, err)
}
