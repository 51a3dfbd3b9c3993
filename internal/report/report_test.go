package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSummary(t *testing.T) {
	r := PipelineResult{
		Success:  false,
		Duration: 1500 * time.Millisecond,
		Jobs: []JobResult{
			{Name: "build", Success: true, Steps: []StepResult{
				{Name: "a", Success: true},
				{Name: "b", Success: true, Skipped: true},
			}},
			{Name: "test", Success: false, Steps: []StepResult{
				{Name: "c", Success: false, ExitCode: 2},
			}},
			{Name: "deploy", Success: true, Skipped: true},
		},
	}

	want := Summary{
		TotalJobs:  3,
		PassedJobs: 2,
		FailedJobs: 1,
		TotalSteps: 3,
		Passed:     1,
		Failed:     1,
		Skipped:    1,
		Duration:   1500 * time.Millisecond,
		DurationMS: 1500,
		ExitCode:   1,
	}
	if diff := cmp.Diff(want, r.Summary()); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"test"}, r.FailedJobs()); diff != "" {
		t.Fatalf("failed jobs mismatch (-want +got):\n%s", diff)
	}
}

func TestSummaryAllPassed(t *testing.T) {
	r := PipelineResult{Success: true, Jobs: []JobResult{{Name: "a", Success: true}}}
	if got := r.Summary().ExitCode; got != 0 {
		t.Fatalf("expected exit code 0, got %d", got)
	}
}

func TestStepStatus(t *testing.T) {
	cases := map[string]StepResult{
		StatusPass:    {Success: true},
		StatusFail:    {Success: false},
		StatusSkipped: {Success: true, Skipped: true},
	}
	for want, step := range cases {
		if got := step.Status(); got != want {
			t.Fatalf("Status(%+v) = %q, want %q", step, got, want)
		}
	}
}

func TestJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(StepResult{Name: "x", Success: true, SkipReason: "dry run", Skipped: true, DurationMS: 3})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"name", "success", "exit_code", "output", "skipped", "skip_reason", "duration_ms"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("expected key %q in %s", key, data)
		}
	}
	if _, ok := fields["Duration"]; ok {
		t.Fatalf("raw duration must not be serialized")
	}
}
