// Package validate checks a pipeline definition without running it: the raw
// document against a structural schema, the mapping onto the pipeline model,
// and a set of lint warnings for things that would surprise at run time.
package validate

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/buildkite/interpolate"
	"github.com/qri-io/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/bgricker/cisim/internal/env"
	"github.com/bgricker/cisim/internal/pipeline"
	"github.com/bgricker/cisim/internal/provider"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Issue is a single validation finding.
type Issue struct {
	Location string `json:"location,omitempty"`
	Job      string `json:"job,omitempty"`
	Step     string `json:"step,omitempty"`
	Message  string `json:"message"`
}

func (i Issue) String() string {
	var prefix []string
	if i.Location != "" {
		prefix = append(prefix, i.Location)
	}
	if i.Job != "" {
		prefix = append(prefix, "job "+i.Job)
	}
	if i.Step != "" {
		prefix = append(prefix, "step "+i.Step)
	}
	if len(prefix) == 0 {
		return i.Message
	}
	return strings.Join(prefix, ": ") + ": " + i.Message
}

// Report collects validation findings for one pipeline file.
type Report struct {
	Path     string           `json:"path"`
	Dialect  pipeline.Dialect `json:"type"`
	Errors   []Issue          `json:"errors"`
	Warnings []Issue          `json:"warnings"`
	Jobs     int              `json:"jobs"`
	Steps    int              `json:"steps"`
}

// OK reports whether the pipeline has no errors. Warnings do not count.
func (r Report) OK() bool {
	return len(r.Errors) == 0
}

// Options tune the checks.
type Options struct {
	// Environ is the environment steps would inherit, as KEY=VALUE entries.
	// Variables defined here are never reported as undefined.
	Environ []string
}

// Source validates a loaded pipeline in the given dialect.
func Source(ctx context.Context, src provider.Source, dialect pipeline.Dialect, opts Options) Report {
	r := Report{Path: src.Path, Dialect: dialect, Errors: []Issue{}, Warnings: []Issue{}}

	schemaIssues, err := Schema(ctx, src.Doc, dialect)
	if err != nil {
		r.Errors = append(r.Errors, Issue{Message: err.Error()})
		return r
	}
	r.Errors = append(r.Errors, schemaIssues...)

	p, err := provider.ParseSource(src, dialect)
	if err != nil {
		r.Errors = append(r.Errors, Issue{Message: err.Error()})
		return r
	}
	r.Jobs = len(p.AllJobs())
	r.Steps = p.StepCount()

	for _, w := range provider.Unsupported(src, dialect) {
		r.Warnings = append(r.Warnings, Issue{Message: w.Message})
	}
	r.Warnings = append(r.Warnings, Dependencies(p)...)
	r.Warnings = append(r.Warnings, UndefinedVariables(p, env.FromSlice(opts.Environ))...)
	return r
}

// Schema validates the raw document against the structural schema of the
// dialect.
func Schema(ctx context.Context, doc *yaml.Node, dialect pipeline.Dialect) ([]Issue, error) {
	schema, err := loadSchema(dialect)
	if err != nil {
		return nil, err
	}

	var raw interface{}
	if err := doc.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	data, err := json.Marshal(jsonCompatible(raw))
	if err != nil {
		return nil, fmt.Errorf("convert document to json: %w", err)
	}

	keyErrs, err := schema.ValidateBytes(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("validate %s schema: %w", dialect, err)
	}
	issues := make([]Issue, 0, len(keyErrs))
	for _, ke := range keyErrs {
		loc := ke.PropertyPath
		if loc == "" {
			loc = "/"
		}
		issues = append(issues, Issue{Location: loc, Message: ke.Message})
	}
	return issues, nil
}

func loadSchema(dialect pipeline.Dialect) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile("schemas/" + string(dialect) + ".json")
	if err != nil {
		return nil, fmt.Errorf("%w %q", provider.ErrUnsupportedDialect, string(dialect))
	}
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(data, schema); err != nil {
		return nil, fmt.Errorf("load %s schema: %w", dialect, err)
	}
	return schema, nil
}

// jsonCompatible rewrites decoded YAML so encoding/json accepts it: mapping
// keys that are not strings are stringified.
func jsonCompatible(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = jsonCompatible(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = jsonCompatible(val)
		}
		return out
	default:
		return t
	}
}

// Dependencies warns about needs or dependsOn entries naming jobs or stages
// that do not exist. Dependencies never affect execution order, so these are
// warnings only.
func Dependencies(p pipeline.Pipeline) []Issue {
	var issues []Issue

	jobs := map[string]bool{}
	for _, job := range p.AllJobs() {
		jobs[job.Name] = true
	}
	for _, job := range p.AllJobs() {
		for _, need := range job.Needs {
			if !jobs[need] {
				issues = append(issues, Issue{Job: job.Name, Message: fmt.Sprintf("depends on unknown job %q", need)})
			}
		}
	}

	stages := map[string]bool{}
	for _, stage := range p.Stages {
		stages[stage.Name] = true
	}
	for _, stage := range p.Stages {
		for _, dep := range stage.DependsOn {
			if !stages[dep] {
				issues = append(issues, Issue{Location: "stage " + stage.Name, Message: fmt.Sprintf("depends on unknown stage %q", dep)})
			}
		}
	}
	return issues
}

var (
	exprRef    = regexp.MustCompile(`\$\{\{\s*env\.(\w+)\s*\}\}`)
	anyExpr    = regexp.MustCompile(`\$\{\{.*?\}\}`)
	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	assignment = regexp.MustCompile(`(?m)(?:^|[\s;&|(])(?:export\s+|local\s+|readonly\s+)?([A-Za-z_][A-Za-z0-9_]*)=`)
	loopVar    = regexp.MustCompile(`\b(?:for|read|select)\s+(?:-r\s+)?([A-Za-z_][A-Za-z0-9_]*)`)
)

// shellVars are set by the shell itself and are never defined by a pipeline.
var shellVars = map[string]bool{
	"PWD": true, "OLDPWD": true, "RANDOM": true, "LINENO": true, "SECONDS": true,
	"PPID": true, "UID": true, "EUID": true, "IFS": true, "OPTARG": true,
	"OPTIND": true, "REPLY": true, "HOSTNAME": true, "SHLVL": true, "PIPESTATUS": true,
}

// UndefinedVariables warns about run steps referencing variables that no
// scope defines and that are missing from process. The check is textual and
// errs on the side of silence: variables assigned inside the script are
// treated as defined.
func UndefinedVariables(p pipeline.Pipeline, process *env.Environment) []Issue {
	var issues []Issue
	base := process.Overlay(p.Env)
	for _, job := range p.AllJobs() {
		jobEnv := base.Overlay(job.Env)
		for _, step := range job.Steps {
			if step.Run == "" {
				continue
			}
			stepEnv := jobEnv.Overlay(step.Env)
			for _, name := range undefinedIn(step.Run, stepEnv) {
				issues = append(issues, Issue{
					Job:     job.Name,
					Step:    step.Name,
					Message: fmt.Sprintf("references undefined variable $%s", name),
				})
			}
		}
	}
	return issues
}

func undefinedIn(script string, defined *env.Environment) []string {
	missing := map[string]bool{}

	for _, m := range exprRef.FindAllStringSubmatch(script, -1) {
		if !defined.Exists(m[1]) {
			missing[m[1]] = true
		}
	}
	stripped := anyExpr.ReplaceAllString(script, "")

	local := map[string]bool{}
	for _, m := range assignment.FindAllStringSubmatch(stripped, -1) {
		local[m[1]] = true
	}
	for _, m := range loopVar.FindAllStringSubmatch(stripped, -1) {
		local[m[1]] = true
	}

	ids, err := interpolate.Identifiers(stripped)
	if err == nil {
		for _, id := range ids {
			// escaped references ($$VAR) come back with a leading $
			if !identifier.MatchString(id) {
				continue
			}
			if local[id] || shellVars[id] || defined.Exists(id) {
				continue
			}
			missing[id] = true
		}
	}

	out := make([]string, 0, len(missing))
	for name := range missing {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
