package certify

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/amiengine/internal/scenario"
)

//go:embed suites/minimal.yaml
var minimalSuiteYAML []byte

//go:embed suites/safety.yaml
var safetySuiteYAML []byte

var builtinSuites = map[string][]byte{
	"minimal": minimalSuiteYAML,
	"safety":  safetySuiteYAML,
}

// Suite is a versioned collection of certification categories.
type Suite struct {
	Name        string     `yaml:"name"`
	Version     string     `yaml:"version"`
	Description string     `yaml:"description,omitempty"`
	Categories  []Category `yaml:"categories"`
}

// Category groups related test cases under a named heading.
type Category struct {
	Name  string          `yaml:"name"`
	Cases []scenario.Case `yaml:"cases"`
}

// LoadSuite loads a built-in certification suite by name.
func LoadSuite(name string) (*Suite, error) {
	data, ok := builtinSuites[name]
	if !ok {
		return nil, fmt.Errorf("unknown certification suite: %q", name)
	}

	s, err := ParseSuite(data)
	if err != nil {
		return nil, fmt.Errorf("parse suite %q: %w", name, err)
	}

	return s, nil
}

// ParseSuite decodes a suite document. Unknown fields are rejected.
func ParseSuite(data []byte) (*Suite, error) {
	var s Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	if s.Name == "" {
		return nil, fmt.Errorf("suite name is required")
	}
	// Validate every category's cases through the scenario rules.
	for _, cat := range s.Categories {
		if err := scenario.Validate(&scenario.Scenario{Name: cat.Name, Cases: cat.Cases}); err != nil {
			return nil, fmt.Errorf("category %q: %w", cat.Name, err)
		}
	}
	return &s, nil
}

// ListSuites returns sorted names of all built-in certification suites.
func ListSuites() []string {
	names := make([]string, 0, len(builtinSuites))
	for name := range builtinSuites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
