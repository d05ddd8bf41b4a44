package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/amiengine/internal/policy"
)

func TestLoadAllBuiltins(t *testing.T) {
	for _, name := range Builtin() {
		p, err := Load(name)
		if err != nil {
			t.Fatalf("failed to load %s: %v", name, err)
		}
		if p.Name != name {
			t.Errorf("expected name %s, got %s", name, p.Name)
		}
		if p.Description == "" {
			t.Errorf("%s: expected non-empty description", name)
		}
		if err := Validate(p); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if len(Builtin()) != len(builtinProfiles) {
		t.Errorf("Builtin() lists %d names, embedded map has %d", len(Builtin()), len(builtinProfiles))
	}
}

func TestBaseProfileIsDefaults(t *testing.T) {
	cfg, err := Resolve("base", policy.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hash() != policy.DefaultConfig().Hash() {
		t.Error("base profile must not change the defaults")
	}
}

func TestProductionSafeValues(t *testing.T) {
	cfg, err := Resolve("production_safe", policy.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Thresholds.JMin != 0.65 || cfg.Thresholds.HMax != 0.40 {
		t.Errorf("unexpected thresholds %+v", cfg.Thresholds)
	}
	if cfg.Critical.JCritical != 0.55 || cfg.Critical.HCritical != 0.70 {
		t.Errorf("unexpected critical %+v", cfg.Critical)
	}
	if cfg.Escalation.DivergenceHardThreshold != 0.48 {
		t.Errorf("expected divergence 0.48, got %v", cfg.Escalation.DivergenceHardThreshold)
	}
	// Not overridden
	if cfg.Confidence.Force != 0.20 {
		t.Errorf("expected default force, got %v", cfg.Confidence.Force)
	}
}

func TestScenarioTestAvoidsGridFailSafe(t *testing.T) {
	cfg, err := Resolve("scenario_test", policy.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	// Grid worst case is J=0.5 and H about 0.96
	if cfg.Critical.JCritical > 0.5 || cfg.Critical.HCritical < 0.96 {
		t.Errorf("scenario_test must not trigger the grid fail-safe: %+v", cfg.Critical)
	}
}

func TestLoadUnknownProfile(t *testing.T) {
	if _, err := Load("nonexistent-profile"); err == nil {
		t.Error("expected error for unknown profile")
	}
	if _, err := Resolve("nonexistent-profile", policy.DefaultConfig()); err == nil {
		t.Error("expected Resolve error for unknown profile")
	}
}

func TestResolveEmptyNameCopiesBase(t *testing.T) {
	base := policy.DefaultConfig()
	cfg, err := Resolve("", base)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Grid[0] = 0.25
	if base.Grid[0] != 0 {
		t.Error("Resolve must return a copy")
	}
}

func TestListProfiles(t *testing.T) {
	names := List()
	found := false
	for _, n := range names {
		if n == "production_safe" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected production_safe in profile list, got %v", names)
	}
}

func TestLoadFileRejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "typo.yaml")
	content := "name: typo\noverrides:\n  J_MNI: 0.5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFile(path)
	if err == nil || !strings.Contains(err.Error(), "J_MNI") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestInitProfileParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte(InitProfile("custom")), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "custom" {
		t.Errorf("expected custom, got %s", p.Name)
	}
	if err := Validate(p); err != nil {
		t.Fatal(err)
	}
	if p.Overrides.JMin == nil || *p.Overrides.JMin != 0.65 {
		t.Errorf("expected J_MIN 0.65 in template")
	}
}

func TestValidateRequiresName(t *testing.T) {
	if err := Validate(&Profile{}); err == nil {
		t.Error("expected error for empty name")
	}
}
