package pipeline

import "testing"

func TestParseDialect(t *testing.T) {
	for input, want := range map[string]Dialect{"github": DialectGitHub, " Azure ": DialectAzure, "GITHUB": DialectGitHub} {
		got, err := ParseDialect(input)
		if err != nil {
			t.Fatalf("ParseDialect(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseDialect(%q) = %q, want %q", input, got, want)
		}
	}
	if _, err := ParseDialect("gitlab"); err == nil {
		t.Fatalf("expected error for unknown dialect")
	}
}

func TestAllJobsFlattensStages(t *testing.T) {
	p := Pipeline{Stages: []Stage{
		{Name: "one", Jobs: []Job{{Name: "a", Steps: []Step{{Run: "x"}}}, {Name: "b"}}},
		{Name: "two", Jobs: []Job{{Name: "c", Steps: []Step{{Run: "y"}, {Uses: "z"}}}}},
	}}
	jobs := p.AllJobs()
	if len(jobs) != 3 || jobs[0].Name != "a" || jobs[2].Name != "c" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
	if p.StepCount() != 3 {
		t.Fatalf("expected 3 steps, got %d", p.StepCount())
	}
}

func TestStepKind(t *testing.T) {
	cases := []struct {
		step Step
		want string
	}{
		{Step{Run: "echo"}, KindRun},
		{Step{Uses: "actions/checkout@v4"}, KindUses},
		{Step{Run: "echo", Uses: "x"}, KindRun},
		{Step{}, KindNone},
	}
	for _, tc := range cases {
		if got := tc.step.Kind(); got != tc.want {
			t.Fatalf("Kind(%+v) = %q, want %q", tc.step, got, tc.want)
		}
	}
}

func TestJobLabel(t *testing.T) {
	if got := (Job{Name: "build"}).Label(); got != "build" {
		t.Fatalf("expected name fallback, got %q", got)
	}
	if got := (Job{Name: "build", DisplayName: "Build"}).Label(); got != "Build" {
		t.Fatalf("expected display name, got %q", got)
	}
}
