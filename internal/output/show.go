package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bgricker/cisim/internal/pipeline"
)

// Show writes a plain-text outline of p: header, env, stages and jobs with
// numbered steps.
func Show(w io.Writer, p pipeline.Pipeline) error {
	var b strings.Builder

	name := p.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(&b, "Pipeline: %s\n", name)
	fmt.Fprintf(&b, "Type: %s\n", p.Dialect)
	if p.Path != "" {
		fmt.Fprintf(&b, "File: %s\n", p.Path)
	}
	writeEnv(&b, "", p.Env)

	if len(p.Stages) > 0 {
		b.WriteString("Stages:\n")
		for _, stage := range p.Stages {
			fmt.Fprintf(&b, "  %s%s\n", stage.Name, annotations(stage.DependsOn, stage.Condition))
			for _, job := range stage.Jobs {
				writeJob(&b, "    ", job)
			}
		}
	} else {
		b.WriteString("Jobs:\n")
		for _, job := range p.Jobs {
			writeJob(&b, "  ", job)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeJob(b *strings.Builder, indent string, job pipeline.Job) {
	label := job.Name
	if job.DisplayName != "" && job.DisplayName != job.Name {
		label = fmt.Sprintf("%s (%s)", job.Name, job.DisplayName)
	}
	fmt.Fprintf(b, "%sJob %s%s\n", indent, label, annotations(job.Needs, job.Condition))
	writeEnv(b, indent+"  ", job.Env)
	if len(job.Steps) == 0 {
		fmt.Fprintf(b, "%s  (no steps)\n", indent)
	}
	for i, step := range job.Steps {
		fmt.Fprintf(b, "%s  %d. %s [%s]", indent, i+1, stepLabel(step), step.Kind())
		if step.Condition != "" {
			fmt.Fprintf(b, " if: %s", step.Condition)
		}
		b.WriteString("\n")
	}
}

func stepLabel(step pipeline.Step) string {
	switch {
	case step.Name != "":
		return step.Name
	case step.Run != "":
		return firstLine(step.Run)
	case step.Uses != "":
		return step.Uses
	default:
		return "(unnamed)"
	}
}

func annotations(deps []string, cond string) string {
	var parts []string
	if len(deps) > 0 {
		parts = append(parts, "depends on: "+strings.Join(deps, ", "))
	}
	if cond != "" {
		parts = append(parts, "if: "+cond)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, "; ") + ")"
}

func writeEnv(b *strings.Builder, indent string, vars map[string]string) {
	if len(vars) == 0 {
		return
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(b, "%sEnv:\n", indent)
	for _, k := range keys {
		fmt.Fprintf(b, "%s  %s=%s\n", indent, k, vars[k])
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
