// Package condition evaluates the small subset of pipeline condition
// expressions that can be decided locally. Anything it does not recognise
// evaluates to true, so an unknown expression never hides a step.
package condition

import (
	"regexp"
	"strings"
)

// Lookup resolves variable values. *env.Environment satisfies it.
type Lookup interface {
	Get(key string) (string, bool)
}

// Fallback names the decision taken when no matcher recognised the expression.
const Fallback = "default"

// Matcher recognises one form of condition expression.
type Matcher struct {
	Name     string
	Patterns []*regexp.Regexp
	decide   func(groups []string, env Lookup) bool
}

// Match reports whether the expression has this matcher's form and, if so,
// what it evaluates to.
func (m Matcher) Match(expr string, env Lookup) (matched, result bool) {
	for _, re := range m.Patterns {
		groups := re.FindStringSubmatch(expr)
		if groups == nil {
			continue
		}
		return true, m.decide(groups[1:], env)
	}
	return false, false
}

const (
	ident  = `[A-Za-z_][A-Za-z0-9_]*`
	quoted = `'[^']+'|"[^"]+"`
)

func comparisonPatterns(op, fn string) []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^env\.(` + ident + `)\s*` + op + `\s*(` + quoted + `)$`),
		regexp.MustCompile(`^env\[\s*(` + quoted + `)\s*\]\s*` + op + `\s*(` + quoted + `)$`),
		regexp.MustCompile(`^` + fn + `\(\s*variables\[\s*(` + quoted + `)\s*\]\s*,\s*(` + quoted + `)\s*\)$`),
		regexp.MustCompile(`^` + fn + `\(\s*variables\.(` + ident + `)\s*,\s*(` + quoted + `)\s*\)$`),
	}
}

var matchers = []Matcher{
	{
		Name:     "always",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`^always\(\s*\)$`)},
		decide:   func([]string, Lookup) bool { return true },
	},
	{
		Name:     "failure",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`^(?:failure|failed)\(\s*\)$`)},
		decide:   func([]string, Lookup) bool { return false },
	},
	{
		Name:     "success",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`^(?:success|succeeded)\(\s*\)$`)},
		decide:   func([]string, Lookup) bool { return true },
	},
	{
		Name:     "equality",
		Patterns: comparisonPatterns(`==`, `eq`),
		decide: func(groups []string, env Lookup) bool {
			v, ok := env.Get(unquote(groups[0]))
			return ok && v == unquote(groups[1])
		},
	},
	{
		Name:     "inequality",
		Patterns: comparisonPatterns(`!=`, `ne`),
		decide: func(groups []string, env Lookup) bool {
			v, ok := env.Get(unquote(groups[0]))
			return !ok || v != unquote(groups[1])
		},
	},
}

// Matchers returns the matchers in the order they are tried.
func Matchers() []Matcher {
	out := make([]Matcher, len(matchers))
	copy(out, matchers)
	return out
}

// Evaluate decides whether a condition holds against env. It never fails.
func Evaluate(expr string, env Lookup) bool {
	ok, _ := Explain(expr, env)
	return ok
}

// Explain is Evaluate that also names the matcher that decided.
func Explain(expr string, env Lookup) (bool, string) {
	expr = Normalize(expr)
	if expr == "" {
		return true, "empty"
	}
	if env == nil {
		env = emptyLookup{}
	}
	for _, m := range matchers {
		if matched, result := m.Match(expr, env); matched {
			return result, m.Name
		}
	}
	return true, Fallback
}

// Normalize trims whitespace and strips a ${{ }} wrapper.
func Normalize(expr string) string {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "${{") && strings.HasSuffix(expr, "}}") {
		expr = strings.TrimSpace(expr[3 : len(expr)-2])
	}
	return expr
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

type emptyLookup struct{}

func (emptyLookup) Get(string) (string, bool) { return "", false }
