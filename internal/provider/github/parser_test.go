package github

import (
	"strings"
	"testing"

	"github.com/bgricker/cisim/internal/pipeline"
	"gopkg.in/yaml.v3"
)

func TestParseBasic(t *testing.T) {
	doc := mustDecode(t, `name: Basic CI
env:
  GLOBAL: one
  COUNT: 3
jobs:
  build:
    name: Build it
    env:
      JOB_VAR: job
    steps:
      - uses: actions/checkout@v4
        with:
          fetch-depth: 0
      - name: Compile
        run: go build ./...
        env:
          CGO_ENABLED: 0
  test:
    needs: build
    if: github.ref == 'refs/heads/main'
    timeout-minutes: 10
    steps:
      - name: Unit
        run: go test ./...
        if: env.GLOBAL == 'one'
        shell: bash
        working-directory: ./app
  lint:
    needs: [build, test]
    steps:
      - run: golangci-lint run
`)

	p, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if p.Name != "Basic CI" {
		t.Fatalf("expected name 'Basic CI', got %q", p.Name)
	}
	if p.Dialect != pipeline.DialectGitHub {
		t.Fatalf("expected github dialect, got %q", p.Dialect)
	}
	if p.Env["GLOBAL"] != "one" || p.Env["COUNT"] != "3" {
		t.Fatalf("unexpected workflow env: %v", p.Env)
	}
	if p.Source != doc {
		t.Fatalf("expected source document to be retained")
	}
	if len(p.Stages) != 0 {
		t.Fatalf("expected no stages, got %d", len(p.Stages))
	}

	var names []string
	for _, job := range p.Jobs {
		names = append(names, job.Name)
	}
	if got := strings.Join(names, ","); got != "build,test,lint" {
		t.Fatalf("expected declaration order build,test,lint, got %s", got)
	}

	build := p.Jobs[0]
	if build.DisplayName != "Build it" {
		t.Fatalf("expected display name, got %q", build.DisplayName)
	}
	if build.Env["JOB_VAR"] != "job" {
		t.Fatalf("unexpected job env: %v", build.Env)
	}
	if len(build.Needs) != 0 {
		t.Fatalf("expected no needs, got %v", build.Needs)
	}
	if len(build.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(build.Steps))
	}
	checkout := build.Steps[0]
	if checkout.Name != DefaultStepName {
		t.Fatalf("expected placeholder step name, got %q", checkout.Name)
	}
	if checkout.Kind() != pipeline.KindUses || checkout.Uses != "actions/checkout@v4" {
		t.Fatalf("expected uses step, got %+v", checkout)
	}
	if checkout.With["fetch-depth"] != "0" {
		t.Fatalf("expected with args, got %v", checkout.With)
	}
	if build.Steps[1].Kind() != pipeline.KindRun || build.Steps[1].Run != "go build ./..." {
		t.Fatalf("expected run step, got %+v", build.Steps[1])
	}
	if build.Steps[1].Env["CGO_ENABLED"] != "0" {
		t.Fatalf("expected step env, got %v", build.Steps[1].Env)
	}

	test := p.Jobs[1]
	if len(test.Needs) != 1 || test.Needs[0] != "build" {
		t.Fatalf("expected needs normalized to [build], got %v", test.Needs)
	}
	if test.Condition != "github.ref == 'refs/heads/main'" {
		t.Fatalf("unexpected job condition %q", test.Condition)
	}
	if test.TimeoutMinutes != 10 {
		t.Fatalf("expected timeout 10, got %d", test.TimeoutMinutes)
	}
	unit := test.Steps[0]
	if unit.Condition != "env.GLOBAL == 'one'" || unit.Shell != "bash" || unit.WorkingDirectory != "./app" {
		t.Fatalf("unexpected step fields: %+v", unit)
	}

	lint := p.Jobs[2]
	if strings.Join(lint.Needs, ",") != "build,test" {
		t.Fatalf("expected needs list preserved, got %v", lint.Needs)
	}
	if lint.Steps[0].Name != DefaultStepName {
		t.Fatalf("expected placeholder name, got %q", lint.Steps[0].Name)
	}
}

func TestParseDefaults(t *testing.T) {
	p, err := Parse(mustDecode(t, "on: push\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if p.Name != DefaultWorkflowName {
		t.Fatalf("expected default workflow name, got %q", p.Name)
	}
	if len(p.Jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(p.Jobs))
	}
}

func TestParseEmptyJobBody(t *testing.T) {
	p, err := Parse(mustDecode(t, "jobs:\n  noop:\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(p.Jobs) != 1 || p.Jobs[0].Name != "noop" || len(p.Jobs[0].Steps) != 0 {
		t.Fatalf("unexpected jobs: %+v", p.Jobs)
	}
}

func TestParseStructuralErrors(t *testing.T) {
	cases := map[string]string{
		"scalar root":     "just a string\n",
		"jobs as list":    "jobs:\n  - build\n",
		"step not a map":  "jobs:\n  build:\n    steps:\n      - echo hi\n",
		"needs as a map":  "jobs:\n  build:\n    needs:\n      a: b\n",
		"steps as scalar": "jobs:\n  build:\n    steps: nope\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(mustDecode(t, src)); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestUnsupported(t *testing.T) {
	doc := mustDecode(t, `jobs:
  build:
    services:
      redis:
        image: redis
    strategy:
      matrix:
        go: [1.21, 1.22]
    steps:
      - run: echo hi
`)
	msgs := Unsupported(doc)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %v", msgs)
	}
	mustContain(t, msgs, "services are not supported")
	mustContain(t, msgs, "strategy.matrix is not supported")
}

func mustDecode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	return &doc
}

func mustContain(t *testing.T, list []string, target string) {
	t.Helper()
	for _, item := range list {
		if strings.Contains(item, target) {
			return
		}
	}
	t.Fatalf("expected to find %q in %v", target, list)
}
