package main

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateCommandGolden(t *testing.T) {
	root := projectRoot(t)
	chdir(t, root)

	cases := []struct {
		file   string
		golden string
	}{
		{"testdata/pipelines/ci.yml", "validate_ci.txt"},
		{"testdata/pipelines/warnings.yml", "validate_warnings.txt"},
	}
	for _, tc := range cases {
		t.Run(tc.golden, func(t *testing.T) {
			out, _, err := execute(t, "validate", tc.file)
			if err != nil {
				t.Fatalf("command execute: %v", err)
			}
			want := readGolden(t, filepath.Join(root, "testdata", "golden", tc.golden))
			if diff := diffStrings(want, out); diff != "" {
				t.Fatalf("unexpected output:\n%s", diff)
			}
		})
	}
}

func TestValidateCommandErrors(t *testing.T) {
	root := projectRoot(t)
	chdir(t, root)

	out, _, err := execute(t, "validate", "testdata/pipelines/invalid.yml")
	if !errors.Is(err, errValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if !strings.Contains(out, "error: ") || !strings.Contains(out, "FAILED: ") {
		t.Fatalf("expected errors in output:\n%s", out)
	}
}

func TestValidateCommandJSON(t *testing.T) {
	root := projectRoot(t)
	chdir(t, root)

	out, _, err := execute(t, "validate", "testdata/pipelines/azure-pipelines.yml", "--format", "json")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}

	var decoded struct {
		Path   string            `json:"path"`
		Type   string            `json:"type"`
		Errors []json.RawMessage `json:"errors"`
		Jobs   int               `json:"jobs"`
		Steps  int               `json:"steps"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if decoded.Type != "azure" || decoded.Path != "testdata/pipelines/azure-pipelines.yml" {
		t.Fatalf("unexpected header: %+v", decoded)
	}
	if len(decoded.Errors) != 0 || decoded.Jobs != 2 || decoded.Steps != 3 {
		t.Fatalf("unexpected report: %+v", decoded)
	}
}

func TestValidateCommandTypeOverride(t *testing.T) {
	root := projectRoot(t)
	chdir(t, root)

	_, _, err := execute(t, "validate", "testdata/pipelines/ci.yml", "--type", "gitlab")
	if err == nil || !strings.Contains(err.Error(), "unsupported pipeline type") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
}
