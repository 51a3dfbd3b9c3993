package github

import (
	"fmt"

	"github.com/bgricker/cisim/internal/pipeline"
	"github.com/bgricker/cisim/internal/provider/fields"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultWorkflowName is used when a workflow declares no name.
	DefaultWorkflowName = "Unnamed Workflow"
	// DefaultStepName is used when a step declares no name.
	DefaultStepName = "Unnamed Step"
)

// Parse maps a decoded GitHub Actions workflow onto the pipeline model. Jobs
// keep the order they are declared in.
func Parse(doc *yaml.Node) (pipeline.Pipeline, error) {
	root, err := fields.Root(doc)
	if err != nil {
		return pipeline.Pipeline{}, err
	}

	var wfDoc workflowDocument
	if err := root.Decode(&wfDoc); err != nil {
		return pipeline.Pipeline{}, fmt.Errorf("decode workflow: %w", err)
	}

	p := pipeline.Pipeline{
		Name:    wfDoc.Name,
		Dialect: pipeline.DialectGitHub,
		Env:     wfDoc.Env.Strings(),
		Source:  doc,
	}
	if p.Name == "" {
		p.Name = DefaultWorkflowName
	}

	p.Jobs = make([]pipeline.Job, 0, len(wfDoc.Jobs))
	for _, entry := range wfDoc.Jobs {
		p.Jobs = append(p.Jobs, convertJob(entry.ID, entry.Doc))
	}
	return p, nil
}

func convertJob(id string, jobDoc jobDocument) pipeline.Job {
	job := pipeline.Job{
		Name:            id,
		DisplayName:     jobDoc.Name,
		Env:             jobDoc.Env.Strings(),
		Needs:           []string(jobDoc.Needs),
		Condition:       jobDoc.If,
		TimeoutMinutes:  int(jobDoc.TimeoutMinutes),
		ContinueOnError: bool(jobDoc.ContinueOnError),
	}

	job.Steps = make([]pipeline.Step, 0, len(jobDoc.Steps))
	for _, stepDoc := range jobDoc.Steps {
		step := pipeline.Step{
			Name:             stepDoc.Name,
			Run:              stepDoc.Run,
			Uses:             stepDoc.Uses,
			Env:              stepDoc.Env.Strings(),
			Condition:        stepDoc.If,
			With:             stepDoc.With.Strings(),
			Shell:            stepDoc.Shell,
			WorkingDirectory: stepDoc.WorkingDirectory,
		}
		if step.Name == "" {
			step.Name = DefaultStepName
		}
		job.Steps = append(job.Steps, step)
	}
	return job
}

// Unsupported lists workflow features that are accepted but have no local
// equivalent, one message per occurrence.
func Unsupported(doc *yaml.Node) []string {
	root, err := fields.Root(doc)
	if err != nil {
		return nil
	}
	var wfDoc workflowDocument
	if err := root.Decode(&wfDoc); err != nil {
		return nil
	}

	var msgs []string
	for _, entry := range wfDoc.Jobs {
		if entry.Doc.Services != nil {
			msgs = append(msgs, fmt.Sprintf("job %q: services are not supported", entry.ID))
		}
		if entry.Doc.Strategy.Matrix != nil {
			msgs = append(msgs, fmt.Sprintf("job %q: strategy.matrix is not supported", entry.ID))
		}
		if entry.Doc.Container != nil {
			msgs = append(msgs, fmt.Sprintf("job %q: container is ignored; steps run on the host", entry.ID))
		}
	}
	return msgs
}

type workflowDocument struct {
	Name string     `yaml:"name"`
	Env  fields.Env `yaml:"env"`
	Jobs jobList    `yaml:"jobs"`
}

// jobList decodes the jobs mapping while preserving declaration order.
type jobList []namedJob

type namedJob struct {
	ID  string
	Doc jobDocument
}

func (l *jobList) UnmarshalYAML(value *yaml.Node) error {
	if fields.IsNull(value) {
		*l = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: jobs must be a mapping of job id to job", value.Line)
	}
	out := make(jobList, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, body := value.Content[i], value.Content[i+1]
		var jobDoc jobDocument
		if !fields.IsNull(body) {
			if err := body.Decode(&jobDoc); err != nil {
				return fmt.Errorf("job %q: %w", key.Value, err)
			}
		}
		out = append(out, namedJob{ID: key.Value, Doc: jobDoc})
	}
	*l = out
	return nil
}

type jobDocument struct {
	Name            string            `yaml:"name"`
	Env             fields.Env        `yaml:"env"`
	Needs           fields.StringList `yaml:"needs"`
	If              string            `yaml:"if"`
	TimeoutMinutes  fields.Int        `yaml:"timeout-minutes"`
	ContinueOnError fields.Bool       `yaml:"continue-on-error"`
	Steps           []stepDocument    `yaml:"steps"`
	Services        interface{}       `yaml:"services"`
	Container       interface{}       `yaml:"container"`
	Strategy        strategyDocument  `yaml:"strategy"`
}

type strategyDocument struct {
	Matrix interface{} `yaml:"matrix"`
}

type stepDocument struct {
	Name             string     `yaml:"name"`
	Run              string     `yaml:"run"`
	Uses             string     `yaml:"uses"`
	Env              fields.Env `yaml:"env"`
	If               string     `yaml:"if"`
	With             fields.Env `yaml:"with"`
	Shell            string     `yaml:"shell"`
	WorkingDirectory string     `yaml:"working-directory"`
}
