package output

import (
	"encoding/json"
	"io"

	"github.com/bgricker/cisim/internal/pipeline"
	"github.com/bgricker/cisim/internal/report"
)

// JSONRenderer emits structured execution data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Report captures JSON output schema.
type Report struct {
	Provider string                `json:"provider"`
	Pipeline pipeline.Pipeline     `json:"pipeline"`
	Result   report.PipelineResult `json:"result"`
	Summary  report.Summary        `json:"summary"`
	Warnings []string              `json:"warnings,omitempty"`
}

// NewReport assembles the JSON report for a finished run.
func NewReport(p pipeline.Pipeline, result report.PipelineResult, warnings []string) Report {
	return Report{
		Provider: string(p.Dialect),
		Pipeline: p,
		Result:   result,
		Summary:  result.Summary(),
		Warnings: warnings,
	}
}

// Render encodes the report as JSON.
func (j *JSONRenderer) Render(report Report) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
