// Package expand substitutes variable references in step commands before
// they reach the shell. Substitution is purely textual: values are not quoted
// or escaped, and whatever the pipeline author wrote runs with the user's
// privileges.
package expand

import (
	"regexp"
	"sort"
	"strings"
)

// Source provides the variables available for substitution.
// *env.Environment satisfies it.
type Source interface {
	Get(key string) (string, bool)
	Keys() []string
}

var exprPattern = regexp.MustCompile(`\$\{\{\s*env\.(\w+)\s*\}\}`)

// Expand rewrites text in two passes. First every ${{ env.NAME }} becomes the
// value of NAME, or "" when unset. Then ${NAME} and $NAME are replaced for
// every variable in src. Longer names are substituted first so $FOOBAR is
// never mistaken for $FOO followed by "BAR". Substituted values are not
// expanded again.
func Expand(text string, src Source) string {
	if text == "" || src == nil {
		return text
	}

	text = exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := exprPattern.FindStringSubmatch(match)[1]
		v, _ := src.Get(name)
		return v
	})

	if !strings.Contains(text, "$") {
		return text
	}
	return newReplacer(src).Replace(text)
}

func newReplacer(src Source) *strings.Replacer {
	keys := src.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, len(keys)*4)
	for _, k := range keys {
		if k == "" {
			continue
		}
		v, _ := src.Get(k)
		pairs = append(pairs, "${"+k+"}", v)
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		v, _ := src.Get(k)
		pairs = append(pairs, "$"+k, v)
	}
	return strings.NewReplacer(pairs...)
}
