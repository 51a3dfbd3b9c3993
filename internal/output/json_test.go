package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/bgricker/cisim/internal/pipeline"
)

func TestJSONRenderer(t *testing.T) {
	p := pipeline.Pipeline{
		Name:    "CI",
		Dialect: pipeline.DialectGitHub,
		Path:    "ci.yml",
		Jobs:    []pipeline.Job{{Name: "build", Steps: []pipeline.Step{{Name: "Compile", Run: "go build"}}}},
	}
	rep := NewReport(p, sampleResult(), []string{"ci.yml: note"})

	buf := &bytes.Buffer{}
	if err := NewJSON(buf).Render(rep); err != nil {
		t.Fatalf("render json: %v", err)
	}

	var decoded struct {
		Provider string `json:"provider"`
		Pipeline struct {
			Name string `json:"name"`
			Path string `json:"path"`
		} `json:"pipeline"`
		Result struct {
			RunID   string `json:"run_id"`
			Success bool   `json:"success"`
			Jobs    []struct {
				Name  string `json:"name"`
				Steps []struct {
					Name     string `json:"name"`
					ExitCode int    `json:"exit_code"`
				} `json:"steps"`
			} `json:"jobs"`
		} `json:"result"`
		Summary struct {
			TotalJobs  int `json:"total_jobs"`
			PassedJobs int `json:"passed_jobs"`
			ExitCode   int `json:"exit_code"`
		} `json:"summary"`
		Warnings []string `json:"warnings"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.Provider != "github" {
		t.Fatalf("provider mismatch: %s", decoded.Provider)
	}
	if decoded.Pipeline.Path != "ci.yml" || decoded.Pipeline.Name != "CI" {
		t.Fatalf("pipeline mismatch: %+v", decoded.Pipeline)
	}
	if decoded.Result.RunID != "run-1" || decoded.Result.Success {
		t.Fatalf("result mismatch: %+v", decoded.Result)
	}
	if len(decoded.Result.Jobs) != 3 || decoded.Result.Jobs[1].Steps[0].ExitCode != 1 {
		t.Fatalf("jobs mismatch: %+v", decoded.Result.Jobs)
	}
	if decoded.Summary.TotalJobs != 3 || decoded.Summary.PassedJobs != 2 || decoded.Summary.ExitCode != 1 {
		t.Fatalf("summary mismatch: %+v", decoded.Summary)
	}
	if len(decoded.Warnings) != 1 {
		t.Fatalf("expected warnings serialized")
	}
}
