package scenario

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadError provides details about a scenario loading error.
type LoadError struct {
	// File is the path of the file that failed to load.
	File string

	// Index is the 1-based document position within the file (0 if unknown).
	Index int

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString(e.File)
	if e.Index > 0 {
		fmt.Fprintf(&b, "#%d", e.Index)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Parse reads every YAML document in data as a scenario.
func Parse(data []byte) ([]*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var out []*Scenario
	for i := 1; ; i++ {
		var sc Scenario
		err := dec.Decode(&sc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Index: i, Message: "failed to parse YAML", Cause: err}
		}
		if err := sc.Validate(); err != nil {
			return nil, &LoadError{Index: i, Message: "invalid scenario", Cause: err}
		}
		out = append(out, &sc)
	}
	if len(out) == 0 {
		return nil, &LoadError{Message: "no scenarios"}
	}
	return out, nil
}

// LoadFile loads the scenarios of one file.
func LoadFile(path string) ([]*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	return parseNamed(path, data)
}

// LoadDirectory loads every .yaml or .yml file in dir.
func LoadDirectory(dir string) ([]*Scenario, error) {
	return LoadFS(os.DirFS(dir), ".")
}

// LoadFS loads every .yaml or .yml file in dir of fsys, in name order.
// Scenario IDs must be unique across files.
func LoadFS(fsys fs.FS, dir string) ([]*Scenario, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, &LoadError{File: dir, Message: "failed to read directory", Cause: err}
	}

	var all []*Scenario
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		name := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, &LoadError{File: name, Message: "failed to read file", Cause: err}
		}
		scs, err := parseNamed(name, data)
		if err != nil {
			return nil, err
		}
		for _, sc := range scs {
			if prev, ok := seen[sc.ID]; ok {
				return nil, &LoadError{File: name, Message: fmt.Sprintf("duplicate scenario ID %s (first in %s)", sc.ID, prev)}
			}
			seen[sc.ID] = name
		}
		all = append(all, scs...)
	}
	return all, nil
}

// Builtin returns the embedded scenario matrix.
func Builtin() ([]*Scenario, error) {
	return LoadFS(builtinFS, "builtin")
}

// Select returns the scenarios whose ID matches pattern. An empty pattern
// selects all.
func Select(scs []*Scenario, pattern string) ([]*Scenario, error) {
	if pattern == "" {
		return scs, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	var out []*Scenario
	for _, sc := range scs {
		if re.MatchString(sc.ID) {
			out = append(out, sc)
		}
	}
	return out, nil
}

func parseNamed(name string, data []byte) ([]*Scenario, error) {
	scs, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = name
			return nil, le
		}
		return nil, &LoadError{File: name, Message: err.Error()}
	}
	return scs, nil
}
