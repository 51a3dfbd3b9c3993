// Package filter narrows a pipeline to the jobs and steps matching
// user-supplied patterns. Patterns are case-insensitive substrings, or regular
// expressions when wrapped in slashes ("/^build/").
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bgricker/cisim/internal/pipeline"
)

// Pattern represents a compiled filter condition supporting substring and regex matching.
type Pattern struct {
	raw   string
	regex *regexp.Regexp
	lower string
}

// Compile transforms raw pattern strings into Pattern values.
func Compile(patterns []string) ([]Pattern, error) {
	result := make([]Pattern, 0, len(patterns))
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.HasPrefix(raw, "/") && strings.HasSuffix(raw, "/") && len(raw) >= 2 {
			expr := raw[1 : len(raw)-1]
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("compile regexp %q: %w", raw, err)
			}
			result = append(result, Pattern{raw: raw, regex: re})
			continue
		}
		result = append(result, Pattern{raw: raw, lower: strings.ToLower(raw)})
	}
	return result, nil
}

func (p Pattern) String() string {
	return p.raw
}

// Match reports whether the pattern matches the supplied string.
func (p Pattern) Match(s string) bool {
	if s == "" {
		return false
	}
	if p.regex != nil {
		return p.regex.MatchString(s)
	}
	return strings.Contains(strings.ToLower(s), p.lower)
}

// Pipeline returns a copy of p keeping only the jobs matching jobPatterns and,
// within them, the steps matching stepPatterns. Empty pattern lists match
// everything. Stages left without jobs are dropped.
func Pipeline(p pipeline.Pipeline, jobPatterns, stepPatterns []Pattern) pipeline.Pipeline {
	out := p
	if len(p.Stages) > 0 {
		out.Stages = make([]pipeline.Stage, 0, len(p.Stages))
		for _, stage := range p.Stages {
			jobs := Jobs(stage.Jobs, jobPatterns, stepPatterns)
			if len(jobs) == 0 {
				continue
			}
			stageCopy := stage
			stageCopy.Jobs = jobs
			out.Stages = append(out.Stages, stageCopy)
		}
		return out
	}
	out.Jobs = Jobs(p.Jobs, jobPatterns, stepPatterns)
	return out
}

// Jobs applies job and step patterns to a job list.
func Jobs(jobs []pipeline.Job, jobPatterns, stepPatterns []Pattern) []pipeline.Job {
	result := make([]pipeline.Job, 0, len(jobs))
	for _, job := range jobs {
		if !matchesJob(job, jobPatterns) {
			continue
		}
		if len(stepPatterns) > 0 {
			steps := filterSteps(job.Steps, stepPatterns)
			if len(steps) == 0 {
				continue
			}
			job.Steps = steps
		}
		result = append(result, job)
	}
	return result
}

func matchesJob(job pipeline.Job, patterns []Pattern) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if pattern.Match(job.Name) || pattern.Match(job.DisplayName) {
			return true
		}
	}
	return false
}

func filterSteps(steps []pipeline.Step, patterns []Pattern) []pipeline.Step {
	result := make([]pipeline.Step, 0, len(steps))
	for _, step := range steps {
		if matchesStep(step, patterns) {
			result = append(result, step)
		}
	}
	return result
}

func matchesStep(step pipeline.Step, patterns []Pattern) bool {
	for _, pattern := range patterns {
		if pattern.Match(step.Name) || pattern.Match(step.Run) || pattern.Match(step.Uses) {
			return true
		}
	}
	return false
}
