package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/amiengine/internal/policy"
)

// Profile is a named bundle of threshold overrides layered over a base config.
type Profile struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Overrides   policy.Overrides `yaml:"overrides"`
}

// userDir returns ~/.amiengine/profiles, or "" when there is no home.
func userDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".amiengine", "profiles")
}

// Load loads a profile by name. Checks built-in profiles first,
// then falls back to ~/.amiengine/profiles/<name>.yaml.
func Load(name string) (*Profile, error) {
	if data, ok := builtinProfiles[name]; ok {
		p, err := parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse built-in profile %q: %w", name, err)
		}
		return p, nil
	}

	dir := userDir()
	if dir == "" {
		return nil, fmt.Errorf("profile %q not found (no built-in, cannot determine home dir)", name)
	}
	data, err := os.ReadFile(filepath.Join(dir, name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	p, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile %q: %w", name, err)
	}
	return p, nil
}

// LoadFile loads a profile from an explicit path.
func LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	p, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return p, nil
}

// parse decodes strictly: a misspelled override key is an error.
func parse(data []byte) (*Profile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Profile
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &p, nil
}

// List returns sorted names of all available profiles (built-in + user).
func List() []string {
	seen := make(map[string]bool)
	for name := range builtinProfiles {
		seen[name] = true
	}

	if dir := userDir(); dir != "" {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				name := e.Name()
				if ext := filepath.Ext(name); ext == ".yaml" || ext == ".yml" {
					seen[name[:len(name)-len(ext)]] = true
				}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that a profile is well-formed and produces a valid
// config when applied to the defaults.
func Validate(p *Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if _, err := ApplyToConfig(p, policy.DefaultConfig()); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	return nil
}

// ApplyToConfig returns a new config with the profile overrides applied.
// Does not mutate the input.
func ApplyToConfig(p *Profile, cfg *policy.Config) (*policy.Config, error) {
	return p.Overrides.Apply(cfg)
}

// Resolve applies the named profile to base. Empty name returns a copy of base.
func Resolve(name string, base *policy.Config) (*policy.Config, error) {
	if name == "" {
		return base.Clone(), nil
	}
	p, err := Load(name)
	if err != nil {
		return nil, err
	}
	return ApplyToConfig(p, base)
}

// InitProfile returns a commented YAML starter template for a new profile.
func InitProfile(name string) string {
	return fmt.Sprintf(`name: %s
description: Custom threshold profile

# Overrides are layered over the base configuration.
# Unknown keys are rejected. Run "amiengine profile keys" for the full list.
overrides:
  J_MIN: 0.65
  H_MAX: 0.40
  # J_CRITICAL: 0.55
  # H_CRITICAL: 0.70
  # CONFIDENCE_ESCALATION_FORCE: 0.20
  # SOFT_CLAMP_ALPHA: 0.60
  # CUS_MEAN_WINDOW: 10
`, name)
}
