// Package env holds the layered environment handed to each step. Every layer
// is an independent copy so a job or step can never leak variables into its
// siblings.
package env

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v2"
)

// Environment is a concurrency-safe set of environment variables. Keys are
// case-sensitive.
type Environment struct {
	underlying *xsync.MapOf[string, string]
}

func New() *Environment {
	return &Environment{underlying: xsync.NewMapOf[string]()}
}

func NewWithLength(length int) *Environment {
	return &Environment{underlying: xsync.NewMapOfPresized[string](length)}
}

// FromMap creates an environment from a plain map.
func FromMap(m map[string]string) *Environment {
	e := NewWithLength(len(m))
	for k, v := range m {
		e.Set(k, v)
	}
	return e
}

// Split splits a "name=value" entry. Entries without '=' or with an empty
// name are rejected.
func Split(l string) (name, value string, ok bool) {
	i := strings.IndexRune(l, '=')
	if i <= 0 {
		return "", "", false
	}
	return l[:i], l[i+1:], true
}

// FromSlice creates an environment from KEY=VALUE entries, such as os.Environ.
func FromSlice(s []string) *Environment {
	e := NewWithLength(len(s))
	for _, l := range s {
		if k, v, ok := Split(l); ok {
			e.Set(k, v)
		}
	}
	return e
}

// Get returns the value of key.
func (e *Environment) Get(key string) (string, bool) {
	return e.underlying.Load(key)
}

// Lookup returns the value of key, or "" when it is unset.
func (e *Environment) Lookup(key string) string {
	v, _ := e.Get(key)
	return v
}

// Exists reports whether key is set.
func (e *Environment) Exists(key string) bool {
	_, ok := e.underlying.Load(key)
	return ok
}

// Set stores value under key and returns it.
func (e *Environment) Set(key, value string) string {
	e.underlying.Store(key, value)
	return value
}

// Remove deletes key and returns its previous value.
func (e *Environment) Remove(key string) string {
	v, ok := e.Get(key)
	if ok {
		e.underlying.Delete(key)
	}
	return v
}

// Length returns the number of variables.
func (e *Environment) Length() int {
	return e.underlying.Size()
}

// Keys returns the variable names in sorted order.
func (e *Environment) Keys() []string {
	keys := make([]string, 0, e.underlying.Size())
	e.underlying.Range(func(k, _ string) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	return keys
}

// Merge copies every variable of other into e, overwriting existing keys.
func (e *Environment) Merge(other *Environment) {
	if other == nil {
		return
	}
	other.underlying.Range(func(k, v string) bool {
		e.Set(k, v)
		return true
	})
}

// MergeMap copies every entry of m into e, overwriting existing keys.
func (e *Environment) MergeMap(m map[string]string) {
	for k, v := range m {
		e.Set(k, v)
	}
}

// Copy returns an independent copy of the environment.
func (e *Environment) Copy() *Environment {
	if e == nil {
		return New()
	}
	c := NewWithLength(e.Length())
	c.Merge(e)
	return c
}

// Overlay returns a copy of e with m applied on top. e is not modified.
func (e *Environment) Overlay(m map[string]string) *Environment {
	c := e.Copy()
	c.MergeMap(m)
	return c
}

// Dump returns a plain map copy of the environment.
func (e *Environment) Dump() map[string]string {
	d := make(map[string]string, e.underlying.Size())
	e.underlying.Range(func(k, v string) bool {
		d[k] = v
		return true
	})
	return d
}

// ToSlice returns KEY=VALUE entries sorted by key, suitable for exec.Cmd.Env.
func (e *Environment) ToSlice() []string {
	keys := e.Keys()
	s := make([]string, 0, len(keys))
	for _, k := range keys {
		v, _ := e.Get(k)
		s = append(s, k+"="+v)
	}
	return s
}

func (e *Environment) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Dump())
}

func (e *Environment) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.underlying = xsync.NewMapOfPresized[string](len(raw))
	e.MergeMap(raw)
	return nil
}
