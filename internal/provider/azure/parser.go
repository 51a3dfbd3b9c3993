package azure

import (
	"fmt"

	"github.com/bgricker/cisim/internal/pipeline"
	"github.com/bgricker/cisim/internal/provider/fields"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPipelineName is used when a pipeline declares no name.
	DefaultPipelineName = "Unnamed Pipeline"
	// DefaultStageName is used when a stage declares no identifier.
	DefaultStageName = "Unnamed Stage"
	// DefaultJobName is used when a job declares no identifier.
	DefaultJobName = "Unnamed Job"
	// DefaultStepName is used when a step declares neither displayName nor name.
	DefaultStepName = "Unnamed Step"
	// ImplicitJobName names the job wrapping a bare top-level steps list.
	ImplicitJobName = "default"
)

// Parse maps a decoded Azure Pipelines document onto the pipeline model. A
// document may carry stages, jobs, or a bare list of steps; the first one
// present wins in that order.
func Parse(doc *yaml.Node) (pipeline.Pipeline, error) {
	root, err := fields.Root(doc)
	if err != nil {
		return pipeline.Pipeline{}, err
	}

	var pDoc pipelineDocument
	if err := root.Decode(&pDoc); err != nil {
		return pipeline.Pipeline{}, fmt.Errorf("decode pipeline: %w", err)
	}

	p := pipeline.Pipeline{
		Name:    pDoc.Name,
		Dialect: pipeline.DialectAzure,
		Env:     pDoc.Variables.Strings(),
		Source:  doc,
	}
	if p.Name == "" {
		p.Name = DefaultPipelineName
	}

	switch {
	case fields.Has(root, "stages"):
		p.Stages = make([]pipeline.Stage, 0, len(pDoc.Stages))
		for _, stageDoc := range pDoc.Stages {
			p.Stages = append(p.Stages, convertStage(stageDoc))
		}
	case fields.Has(root, "jobs"):
		p.Jobs = convertJobs(pDoc.Jobs)
	case fields.Has(root, "steps"):
		p.Jobs = []pipeline.Job{{
			Name:  ImplicitJobName,
			Steps: convertSteps(pDoc.Steps),
		}}
	}
	return p, nil
}

func convertStage(stageDoc stageDocument) pipeline.Stage {
	stage := pipeline.Stage{
		Name:        stageDoc.Stage,
		DisplayName: stageDoc.DisplayName,
		Condition:   stageDoc.Condition,
		DependsOn:   []string(stageDoc.DependsOn),
		Jobs:        convertJobs(stageDoc.Jobs),
	}
	if stage.Name == "" {
		stage.Name = DefaultStageName
	}
	return stage
}

func convertJobs(docs []jobDocument) []pipeline.Job {
	jobs := make([]pipeline.Job, 0, len(docs))
	for _, jobDoc := range docs {
		job := pipeline.Job{
			Name:            jobDoc.Job,
			DisplayName:     jobDoc.DisplayName,
			Env:             jobDoc.Variables.Strings(),
			Needs:           []string(jobDoc.DependsOn),
			Condition:       jobDoc.Condition,
			TimeoutMinutes:  int(jobDoc.TimeoutInMinutes),
			ContinueOnError: bool(jobDoc.ContinueOnError),
			Steps:           convertSteps(jobDoc.Steps),
		}
		if job.Name == "" {
			job.Name = jobDoc.Deployment
		}
		if job.Name == "" {
			job.Name = DefaultJobName
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func convertSteps(docs []stepDocument) []pipeline.Step {
	steps := make([]pipeline.Step, 0, len(docs))
	for _, stepDoc := range docs {
		step := pipeline.Step{
			Name:      firstNonEmpty(stepDoc.DisplayName, stepDoc.Name, DefaultStepName),
			Run:       firstNonEmpty(stepDoc.Script, stepDoc.Bash, stepDoc.Pwsh, stepDoc.PowerShell),
			Uses:      stepDoc.Task,
			Env:       stepDoc.Env.Strings(),
			Condition: stepDoc.Condition,
			With:      stepDoc.Inputs.Strings(),
		}
		if step.Uses == "" && stepDoc.Checkout != "" {
			step.Uses = "checkout@" + stepDoc.Checkout
		}
		steps = append(steps, step)
	}
	return steps
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Unsupported lists pipeline features that are accepted but have no local
// equivalent.
func Unsupported(doc *yaml.Node) []string {
	root, err := fields.Root(doc)
	if err != nil {
		return nil
	}
	var msgs []string
	if fields.Has(root, "extends") {
		msgs = append(msgs, "extends templates are not expanded")
	}
	if fields.Has(root, "resources") {
		msgs = append(msgs, "resources are ignored")
	}
	for _, key := range []string{"stages", "jobs", "steps"} {
		list := fields.Lookup(root, key)
		if list == nil || list.Kind != yaml.SequenceNode {
			continue
		}
		for _, item := range list.Content {
			if fields.Has(item, "template") {
				msgs = append(msgs, fmt.Sprintf("line %d: %s template references are not expanded", item.Line, key))
			}
		}
	}
	return msgs
}

type pipelineDocument struct {
	Name      string          `yaml:"name"`
	Variables variables       `yaml:"variables"`
	Stages    []stageDocument `yaml:"stages"`
	Jobs      []jobDocument   `yaml:"jobs"`
	Steps     []stepDocument  `yaml:"steps"`
}

type stageDocument struct {
	Stage       string            `yaml:"stage"`
	DisplayName string            `yaml:"displayName"`
	Condition   string            `yaml:"condition"`
	DependsOn   fields.StringList `yaml:"dependsOn"`
	Jobs        []jobDocument     `yaml:"jobs"`
}

type jobDocument struct {
	Job              string            `yaml:"job"`
	Deployment       string            `yaml:"deployment"`
	DisplayName      string            `yaml:"displayName"`
	Variables        variables         `yaml:"variables"`
	DependsOn        fields.StringList `yaml:"dependsOn"`
	Condition        string            `yaml:"condition"`
	TimeoutInMinutes fields.Int        `yaml:"timeoutInMinutes"`
	ContinueOnError  fields.Bool       `yaml:"continueOnError"`
	Steps            []stepDocument    `yaml:"steps"`
}

type stepDocument struct {
	Script      string     `yaml:"script"`
	Bash        string     `yaml:"bash"`
	Pwsh        string     `yaml:"pwsh"`
	PowerShell  string     `yaml:"powershell"`
	Task        string     `yaml:"task"`
	Checkout    string     `yaml:"checkout"`
	DisplayName string     `yaml:"displayName"`
	Name        string     `yaml:"name"`
	Env         fields.Env `yaml:"env"`
	Condition   string     `yaml:"condition"`
	Inputs      fields.Env `yaml:"inputs"`
}

// variables accepts both the mapping form and the list form
// (`- name: X` / `value: Y`). List entries referencing groups or templates
// carry no values and are skipped.
type variables struct {
	fields.Env
}

func (v *variables) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		var env fields.Env
		if err := value.Decode(&env); err != nil {
			return err
		}
		v.Env = env
		return nil
	case yaml.SequenceNode:
		var entries []struct {
			Name  string      `yaml:"name"`
			Value interface{} `yaml:"value"`
		}
		if err := value.Decode(&entries); err != nil {
			return err
		}
		env := make(fields.Env, len(entries))
		for _, e := range entries {
			if e.Name == "" {
				continue
			}
			env[e.Name] = e.Value
		}
		v.Env = env
		return nil
	default:
		return fmt.Errorf("line %d: variables must be a mapping or a list", value.Line)
	}
}
