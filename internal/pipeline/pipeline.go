// Package pipeline holds the normalized model shared by the dialect parsers
// and the runner. Both source dialects are reduced to these types so nothing
// downstream of the parser needs to know which dialect a pipeline came from.
package pipeline

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dialect names a supported source schema family.
type Dialect string

const (
	// DialectGitHub is the flat, job-graph style used by GitHub Actions workflows.
	DialectGitHub Dialect = "github"
	// DialectAzure is the stage/variable style used by Azure Pipelines.
	DialectAzure Dialect = "azure"
)

// Dialects lists the supported dialects in a stable order.
func Dialects() []Dialect {
	return []Dialect{DialectGitHub, DialectAzure}
}

// ParseDialect converts user input into a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case DialectGitHub:
		return DialectGitHub, nil
	case DialectAzure:
		return DialectAzure, nil
	default:
		return "", fmt.Errorf("unsupported pipeline type %q", s)
	}
}

// Pipeline is the root of a parsed definition. Exactly one of Jobs and Stages
// is populated.
type Pipeline struct {
	Name    string            `json:"name"`
	Dialect Dialect           `json:"type"`
	Path    string            `json:"path,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Jobs    []Job             `json:"jobs,omitempty"`
	Stages  []Stage           `json:"stages,omitempty"`

	// Source is the decoded document the pipeline was built from. It is kept
	// for diagnostics and must not be modified.
	Source *yaml.Node `json:"-"`
}

// AllJobs returns the jobs in execution order, flattening stages.
func (p Pipeline) AllJobs() []Job {
	if len(p.Stages) == 0 {
		return p.Jobs
	}
	var jobs []Job
	for _, stage := range p.Stages {
		jobs = append(jobs, stage.Jobs...)
	}
	return jobs
}

// StepCount reports the number of steps across all jobs.
func (p Pipeline) StepCount() int {
	n := 0
	for _, job := range p.AllJobs() {
		n += len(job.Steps)
	}
	return n
}

// Stage groups jobs. Only the azure dialect produces stages.
type Stage struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	Condition   string   `json:"condition,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Jobs        []Job    `json:"jobs"`
}

// Job is an ordered sequence of steps.
type Job struct {
	Name            string            `json:"name"`
	DisplayName     string            `json:"display_name,omitempty"`
	Env             map[string]string `json:"env,omitempty"`
	Needs           []string          `json:"needs,omitempty"`
	Condition       string            `json:"condition,omitempty"`
	TimeoutMinutes  int               `json:"timeout_minutes,omitempty"`
	ContinueOnError bool              `json:"continue_on_error,omitempty"`
	Steps           []Step            `json:"steps"`
}

// Label returns the display name when one was declared.
func (j Job) Label() string {
	if j.DisplayName != "" {
		return j.DisplayName
	}
	return j.Name
}

// Step kinds reported by Step.Kind.
const (
	KindRun  = "run"
	KindUses = "uses"
	KindNone = "none"
)

// Step is a single unit of work. A step with neither Run nor Uses is a
// placeholder that does nothing.
type Step struct {
	Name             string            `json:"name"`
	Run              string            `json:"run,omitempty"`
	Uses             string            `json:"uses,omitempty"`
	Env              map[string]string `json:"env,omitempty"`
	Condition        string            `json:"condition,omitempty"`
	With             map[string]string `json:"with,omitempty"`
	Shell            string            `json:"shell,omitempty"`
	WorkingDirectory string            `json:"working_directory,omitempty"`
}

// Kind classifies the step as a run step, a uses step, or neither.
func (s Step) Kind() string {
	switch {
	case s.Run != "":
		return KindRun
	case s.Uses != "":
		return KindUses
	default:
		return KindNone
	}
}
