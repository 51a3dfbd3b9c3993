package condition

import (
	"testing"

	"github.com/bgricker/cisim/internal/env"
)

func TestEvaluate(t *testing.T) {
	vars := env.FromMap(map[string]string{
		"DEPLOY":      "true",
		"BuildConfig": "Release",
		"EMPTY":       "",
	})

	cases := []struct {
		expr    string
		want    bool
		matcher string
	}{
		{"", true, "empty"},
		{"   ", true, "empty"},
		{"${{ }}", true, "empty"},
		{"always()", true, "always"},
		{" always() ", true, "always"},
		{"${{ always() }}", true, "always"},
		{"failure()", false, "failure"},
		{"failed()", false, "failure"},
		{"success()", true, "success"},
		{"succeeded()", true, "success"},

		{"env.DEPLOY == 'true'", true, "equality"},
		{`env.DEPLOY == "true"`, true, "equality"},
		{"env.DEPLOY=='false'", false, "equality"},
		{"env['DEPLOY'] == 'true'", true, "equality"},
		{"${{ env.DEPLOY == 'true' }}", true, "equality"},
		{"env.MISSING == ''", true, "default"},
		{"env.EMPTY == ''", true, "default"},
		{"env.DEPLOY != ''", true, "default"},
		{"eq(variables['BuildConfig'], 'Release')", true, "equality"},
		{"eq(variables.BuildConfig, 'Debug')", false, "equality"},
		{`eq(variables["BuildConfig"],"Release")`, true, "equality"},

		{"env.DEPLOY != 'true'", false, "inequality"},
		{"env.DEPLOY != 'false'", true, "inequality"},
		{"env.MISSING != 'x'", true, "inequality"},
		{"env['DEPLOY'] != 'true'", false, "inequality"},
		{"ne(variables['BuildConfig'], 'Release')", false, "inequality"},
		{"ne(variables.BuildConfig, 'Debug')", true, "inequality"},

		{"github.event_name == 'push'", true, Fallback},
		{"contains(github.ref, 'main')", true, Fallback},
		{"env.DEPLOY == 'true' && env.X == 'y'", true, Fallback},
		{"and(succeeded(), eq(variables.BuildConfig, 'Debug'))", true, Fallback},
	}

	for _, tc := range cases {
		got, matcher := Explain(tc.expr, vars)
		if got != tc.want {
			t.Errorf("Explain(%q) = %v, want %v", tc.expr, got, tc.want)
		}
		if matcher != tc.matcher {
			t.Errorf("Explain(%q) matcher = %q, want %q", tc.expr, matcher, tc.matcher)
		}
		if Evaluate(tc.expr, vars) != tc.want {
			t.Errorf("Evaluate(%q) disagrees with Explain", tc.expr)
		}
	}
}

func TestEvaluateNilLookup(t *testing.T) {
	if Evaluate("env.A == 'x'", nil) {
		t.Fatalf("expected absent variable to never equal")
	}
	if !Evaluate("env.A != 'x'", nil) {
		t.Fatalf("expected absent variable to differ")
	}
}

func TestMatchersOrder(t *testing.T) {
	var names []string
	for _, m := range Matchers() {
		names = append(names, m.Name)
	}
	want := []string{"always", "failure", "success", "equality", "inequality"}
	if len(names) != len(want) {
		t.Fatalf("unexpected matchers: %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("matcher %d = %q, want %q", i, names[i], want[i])
		}
	}

	ms := Matchers()
	ms[0].Name = "mutated"
	if Matchers()[0].Name != "always" {
		t.Fatalf("Matchers must return a copy")
	}
}
