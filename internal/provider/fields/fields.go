// Package fields holds the loosely typed YAML shapes shared by the dialect
// parsers: string-or-list values, scalar maps and lenient integers.
package fields

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotMapping is returned by Root when the document is not a mapping.
var ErrNotMapping = errors.New("top-level document must be a mapping")

// Root unwraps a document node and returns its top-level mapping.
func Root(doc *yaml.Node) (*yaml.Node, error) {
	if doc == nil {
		return nil, errors.New("document is empty")
	}
	n := doc
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil, errors.New("document is empty")
		}
		n = n.Content[0]
	}
	n = resolve(n)
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: %w", n.Line, ErrNotMapping)
	}
	return n, nil
}

// Has reports whether mapping m declares key with a non-null value.
func Has(m *yaml.Node, key string) bool {
	v := Lookup(m, key)
	return v != nil && !IsNull(v)
}

// Lookup returns the value node for key in mapping m, or nil.
func Lookup(m *yaml.Node, key string) *yaml.Node {
	m = resolve(m)
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return resolve(m.Content[i+1])
		}
	}
	return nil
}

// IsNull reports whether n is an explicit YAML null.
func IsNull(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// StringList accepts either a single string or a sequence of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	value = resolve(value)
	switch value.Kind {
	case yaml.ScalarNode:
		if IsNull(value) || value.Value == "" {
			*l = nil
			return nil
		}
		*l = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// Env is a mapping whose scalar values are rendered as strings.
type Env map[string]interface{}

// Strings renders every value as a string. Nil and empty maps return nil.
func (e Env) Strings() map[string]string {
	if len(e) == 0 {
		return nil
	}
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]string, len(e))
	for _, k := range keys {
		out[k] = Scalar(e[k])
	}
	return out
}

// Scalar renders a decoded YAML value as a string. Nested values are
// re-encoded as flow YAML.
func Scalar(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case map[string]interface{}, []interface{}:
		data, err := yaml.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return strings.TrimSpace(string(data))
	default:
		return fmt.Sprint(t)
	}
}

// Int is an integer that tolerates quoted numbers and expressions. Values that
// do not parse decode as zero.
type Int int

// UnmarshalYAML implements yaml.Unmarshaler.
func (i *Int) UnmarshalYAML(value *yaml.Node) error {
	value = resolve(value)
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", value.Line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(value.Value))
	if err != nil {
		*i = 0
		return nil
	}
	*i = Int(n)
	return nil
}

// Bool is a boolean that tolerates expressions, which decode as false.
type Bool bool

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *Bool) UnmarshalYAML(value *yaml.Node) error {
	value = resolve(value)
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a boolean", value.Line)
	}
	v, err := strconv.ParseBool(strings.TrimSpace(value.Value))
	if err != nil {
		*b = false
		return nil
	}
	*b = Bool(v)
	return nil
}
