package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Thresholds.JMin != 0.85 {
		t.Errorf("expected JMin=0.85, got %v", cfg.Thresholds.JMin)
	}
	if cfg.Thresholds.HMax != 0.30 {
		t.Errorf("expected HMax=0.30, got %v", cfg.Thresholds.HMax)
	}
	if cfg.Thresholds.CMin != 0.35 || cfg.Thresholds.CMax != 0.75 {
		t.Errorf("expected C band [0.35,0.75], got [%v,%v]", cfg.Thresholds.CMin, cfg.Thresholds.CMax)
	}
	if cfg.Critical.JCritical != 0.7 || cfg.Critical.HCritical != 0.6 {
		t.Errorf("unexpected critical thresholds %+v", cfg.Critical)
	}
	if cfg.Confidence.Force != 0.20 || cfg.Confidence.Suggest != 0.35 {
		t.Errorf("unexpected escalation thresholds %+v", cfg.Confidence)
	}
	if cfg.SoftClamp != (SoftClamp{Alpha: 0.60, Beta: 0.50, Gamma: 0.35}) {
		t.Errorf("unexpected soft clamp %+v", cfg.SoftClamp)
	}
	if cfg.Drift.Window != 10 {
		t.Errorf("expected window 10, got %d", cfg.Drift.Window)
	}
	if diff := cmp.Diff([]float64{0, 0.5, 1}, cfg.Grid); diff != "" {
		t.Errorf("grid mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestDefaultConfigIsIndependent(t *testing.T) {
	a := DefaultConfig()
	a.Grid[0] = 0.9
	b := DefaultConfig()
	if b.Grid[0] != 0 {
		t.Fatal("mutating one default config leaked into another")
	}
	if DefaultGrid[0] != 0 {
		t.Fatal("mutating a config leaked into DefaultGrid")
	}
}

func TestDefaultConfigYAMLMatchesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(DefaultConfigYAML()))
	if err != nil {
		t.Fatalf("template must parse: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("template drifted from defaults (-want +got):\n%s", diff)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Thresholds.JMin != 0.85 {
		t.Errorf("expected default JMin, got %v", cfg.Thresholds.JMin)
	}
}

func TestLoadConfigPartialYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	// Only thresholds change, everything else keeps defaults
	content := `
thresholds:
  j_min: 0.6
  h_max: 0.45
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Thresholds.JMin != 0.6 || cfg.Thresholds.HMax != 0.45 {
		t.Errorf("thresholds not applied: %+v", cfg.Thresholds)
	}
	// c_min was not in the file
	if cfg.Thresholds.CMin != 0.35 {
		t.Errorf("expected default CMin, got %v", cfg.Thresholds.CMin)
	}
	if cfg.Weights.Beta != 0.35 {
		t.Errorf("expected default Beta, got %v", cfg.Weights.Beta)
	}
}

func TestLoadConfigOverridesSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
thresholds:
  j_min: 0.6
overrides:
  J_MIN: 0.7
  CUS_MEAN_WINDOW: 4
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Thresholds.JMin != 0.7 {
		t.Errorf("overrides must win over fields, got JMin=%v", cfg.Thresholds.JMin)
	}
	if cfg.Drift.Window != 4 {
		t.Errorf("expected window 4, got %d", cfg.Drift.Window)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("{{invalid yaml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("thresholds:\n  c_min: 0.9\n  c_max: 0.2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "C_MIN") {
		t.Fatalf("expected C band error, got %v", err)
	}
}

func TestLoadConfigWithHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("grid: [0, 1]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, hash, err := LoadConfigWithHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(hash, "sha256:") || len(hash) != len("sha256:")+64 {
		t.Errorf("unexpected hash format %q", hash)
	}
	if len(cfg.Grid) != 2 {
		t.Errorf("expected 2 grid values, got %v", cfg.Grid)
	}

	_, missingHash, err := LoadConfigWithHash(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	// sha256 of empty input
	if missingHash != "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("unexpected empty hash %q", missingHash)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty grid", func(c *Config) { c.Grid = nil }, "grid"},
		{"grid out of range", func(c *Config) { c.Grid = []float64{0, 1.5} }, "grid[1]"},
		{"j_min out of range", func(c *Config) { c.Thresholds.JMin = 1.2 }, "J_MIN"},
		{"zero sigma", func(c *Config) { c.Confidence.SigmaMax = 0 }, "SIGMA_MAX"},
		{"zero window", func(c *Config) { c.Drift.Window = 0 }, "CUS_MEAN_WINDOW"},
		{"negative slope", func(c *Config) { c.Uncertainty.ASLambda = -1 }, "slope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestConfigHashStable(t *testing.T) {
	a := DefaultConfig().Hash()
	b := DefaultConfig().Hash()
	if a != b {
		t.Fatalf("hash not stable: %s vs %s", a, b)
	}
	cfg := DefaultConfig()
	cfg.Thresholds.JMin = 0.8
	if cfg.Hash() == a {
		t.Fatal("hash did not change with config")
	}
}
