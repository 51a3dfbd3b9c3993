// Package toolcheck compares the language versions a repository pins with the
// ones installed on this machine. A mismatch is only ever a warning: the
// pipeline still runs with whatever is on PATH.
package toolcheck

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Tool describes how to find a pinned version and the installed one.
type Tool struct {
	Name string
	// Files are version pin files checked in order, relative to the repository root.
	Files []string
	// AsdfNames are the plugin names used for this tool in .tool-versions.
	AsdfNames []string
	Command   []string
	Pattern   *regexp.Regexp
}

// Info captures a language version installed on the system.
type Info struct {
	Name    string
	Version string
}

// Warning is a version mismatch or a missing tool.
type Warning struct {
	Tool      string `json:"tool"`
	Source    string `json:"source"`
	Requested string `json:"requested"`
	Installed string `json:"installed,omitempty"`
}

func (w Warning) String() string {
	if w.Installed == "" {
		return fmt.Sprintf("%s %s requested by %s but %s was not found", w.Tool, w.Requested, w.Source, w.Tool)
	}
	return fmt.Sprintf("%s %s requested by %s but %s is installed", w.Tool, w.Requested, w.Source, w.Installed)
}

// Tools returns the built-in tool table.
func Tools() []Tool {
	return []Tool{
		{
			Name:      "ruby",
			Files:     []string{".ruby-version"},
			AsdfNames: []string{"ruby"},
			Command:   []string{"ruby", "-v"},
			Pattern:   regexp.MustCompile(`(?i)ruby\s+(\d+\.\d+(?:\.\d+)?)`),
		},
		{
			Name:      "node",
			Files:     []string{".node-version", ".nvmrc"},
			AsdfNames: []string{"nodejs", "node"},
			Command:   []string{"node", "-v"},
			Pattern:   regexp.MustCompile(`(?i)v?(\d+\.\d+(?:\.\d+)?)`),
		},
		{
			Name:      "python",
			Files:     []string{".python-version"},
			AsdfNames: []string{"python"},
			Command:   []string{"python3", "--version"},
			Pattern:   regexp.MustCompile(`(?i)python\s+(\d+\.\d+(?:\.\d+)?)`),
		},
		{
			Name:      "go",
			Files:     []string{".go-version"},
			AsdfNames: []string{"golang", "go"},
			Command:   []string{"go", "version"},
			Pattern:   regexp.MustCompile(`go(\d+\.\d+(?:\.\d+)?)`),
		},
	}
}

// CommandFunc runs a command and returns its combined output.
type CommandFunc func(ctx context.Context, name string, args ...string) (string, error)

// Checker compares pinned and installed versions.
type Checker struct {
	Tools   []Tool
	Run     CommandFunc
	Timeout time.Duration
}

// New returns a checker for the built-in tools that shells out to detect
// installed versions.
func New() *Checker {
	return &Checker{Tools: Tools(), Run: runCommand, Timeout: 5 * time.Second}
}

// Check returns one warning per pinned tool whose installed major.minor
// differs or that is not installed at all. Tools without a pin are ignored.
func (c *Checker) Check(ctx context.Context, root string) []Warning {
	asdf := readToolVersions(filepath.Join(root, ".tool-versions"))

	var warnings []Warning
	for _, tool := range c.Tools {
		requested, source := pinned(root, tool, asdf)
		if requested == "" {
			continue
		}
		info, err := c.Detect(ctx, tool)
		if err != nil {
			warnings = append(warnings, Warning{Tool: tool.Name, Source: source, Requested: requested})
			continue
		}
		if !CompareMajorMinor(requested, info.Version) {
			warnings = append(warnings, Warning{Tool: tool.Name, Source: source, Requested: requested, Installed: info.Version})
		}
	}
	return warnings
}

// Detect returns the installed version of tool.
func (c *Checker) Detect(ctx context.Context, tool Tool) (Info, error) {
	if len(tool.Command) == 0 {
		return Info{}, fmt.Errorf("no version command for %s", tool.Name)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	out, err := c.Run(ctx, tool.Command[0], tool.Command[1:]...)
	if err != nil {
		return Info{}, err
	}
	match := tool.Pattern.FindStringSubmatch(out)
	if len(match) < 2 {
		return Info{}, fmt.Errorf("unable to parse %s version from %q", tool.Name, out)
	}
	return Info{Name: tool.Name, Version: match[1]}, nil
}

func pinned(root string, tool Tool, asdf map[string]string) (version, source string) {
	for _, name := range tool.Files {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}
		if v := cleanVersion(string(data)); v != "" {
			return v, name
		}
	}
	for _, name := range tool.AsdfNames {
		if v := asdf[name]; v != "" {
			return v, ".tool-versions"
		}
	}
	return "", ""
}

// readToolVersions parses an asdf .tool-versions file. Only the first version
// listed for a plugin counts.
func readToolVersions(path string) map[string]string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	out := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if _, ok := out[fields[0]]; !ok {
			out[fields[0]] = cleanVersion(fields[1])
		}
	}
	return out
}

func cleanVersion(raw string) string {
	v := strings.TrimSpace(raw)
	if i := strings.IndexAny(v, "\r\n"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	v = strings.TrimPrefix(v, "ruby-")
	v = strings.TrimPrefix(v, "go")
	v = strings.TrimPrefix(v, "v")
	return v
}

// CompareMajorMinor compares major.minor portions of two semver-like versions.
// A version without a minor part is compared on its major part only.
func CompareMajorMinor(desired, actual string) bool {
	d := strings.Split(desired, ".")
	a := strings.Split(actual, ".")
	if desired == "" || actual == "" {
		return false
	}
	n := 2
	if len(d) < n {
		n = len(d)
	}
	if len(a) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if !strings.EqualFold(d[i], a[i]) {
			return false
		}
	}
	return true
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// Missing reports whether executing the command returns a not-found error.
func Missing(cmdErr error) bool {
	return errors.Is(cmdErr, exec.ErrNotFound)
}
