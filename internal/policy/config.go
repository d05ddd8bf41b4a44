package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Thresholds are the per-candidate constraint bounds.
type Thresholds struct {
	JMin float64 `yaml:"j_min" json:"j_min"`
	HMax float64 `yaml:"h_max" json:"h_max"`
	CMin float64 `yaml:"c_min" json:"c_min"`
	CMax float64 `yaml:"c_max" json:"c_max"`
}

// Critical holds the global fail-safe triggers evaluated on worst-case scores.
type Critical struct {
	JCritical float64 `yaml:"j_critical" json:"j_critical"`
	HCritical float64 `yaml:"h_critical" json:"h_critical"`
}

// Weights are the composite score coefficients: α·W + β·J − γ·H + δ·C.
type Weights struct {
	Alpha float64 `yaml:"alpha" json:"alpha"`
	Beta  float64 `yaml:"beta" json:"beta"`
	Gamma float64 `yaml:"gamma" json:"gamma"`
	Delta float64 `yaml:"delta" json:"delta"`
}

// CompassionCoefficients shape the raw compassion term before the sigmoid.
type CompassionCoefficients struct {
	Empathy        float64 `yaml:"empathy" json:"empathy"`
	Physical       float64 `yaml:"physical" json:"physical"`
	Responsibility float64 `yaml:"responsibility" json:"responsibility"`
}

// Confidence parameters.
type Confidence struct {
	SigmaMax    float64 `yaml:"sigma_max" json:"sigma_max"`
	MarginK     float64 `yaml:"margin_k" json:"margin_k"`
	MarginClamp float64 `yaml:"margin_clamp" json:"margin_clamp"`
	Suggest     float64 `yaml:"suggest" json:"suggest"`
	Force       float64 `yaml:"force" json:"force"`
}

// CUSWeights blend hesitation, entropy and inverse spread.
type CUSWeights struct {
	HI float64 `yaml:"hi" json:"hi"`
	DE float64 `yaml:"de" json:"de"`
	AS float64 `yaml:"as" json:"as"`
}

// Uncertainty parameters.
type Uncertainty struct {
	MarginK    float64    `yaml:"margin_k" json:"margin_k"`
	ASLambda   float64    `yaml:"as_lambda" json:"as_lambda"`
	CUSWeights CUSWeights `yaml:"cus_weights" json:"cus_weights"`
}

// Escalation thresholds on top of the confidence force threshold.
type Escalation struct {
	ASSoftThreshold         float64 `yaml:"as_soft_threshold" json:"as_soft_threshold"`
	DivergenceHardThreshold float64 `yaml:"divergence_hard_threshold" json:"divergence_hard_threshold"`
	Hysteresis              float64 `yaml:"hysteresis" json:"hysteresis"`
}

// Envelope bounds the soft-safe region of the action space.
type Envelope struct {
	SeverityMax     float64 `yaml:"severity_max" json:"severity_max"`
	InterventionMax float64 `yaml:"intervention_max" json:"intervention_max"`
	DelayMin        float64 `yaml:"delay_min" json:"delay_min"`
}

// SoftClamp coefficients for severity, intervention and delay.
type SoftClamp struct {
	Alpha float64 `yaml:"alpha" json:"alpha"`
	Beta  float64 `yaml:"beta" json:"beta"`
	Gamma float64 `yaml:"gamma" json:"gamma"`
}

// Drift parameters for the caller-held CUS history.
type Drift struct {
	DeltaThreshold float64 `yaml:"delta_threshold" json:"delta_threshold"`
	Window         int     `yaml:"window" json:"window"`
	MeanThreshold  float64 `yaml:"mean_threshold" json:"mean_threshold"`
}

// Config holds every tunable parameter of the decision pipeline.
type Config struct {
	Grid           []float64              `yaml:"grid" json:"grid"`
	DefaultUnknown float64                `yaml:"default_unknown" json:"default_unknown"`
	Thresholds     Thresholds             `yaml:"thresholds" json:"thresholds"`
	Critical       Critical               `yaml:"critical" json:"critical"`
	Weights        Weights                `yaml:"weights" json:"weights"`
	Compassion     CompassionCoefficients `yaml:"compassion" json:"compassion"`
	Confidence     Confidence             `yaml:"confidence" json:"confidence"`
	Uncertainty    Uncertainty            `yaml:"uncertainty" json:"uncertainty"`
	Escalation     Escalation             `yaml:"escalation" json:"escalation"`
	Envelope       Envelope               `yaml:"envelope" json:"envelope"`
	SoftClamp      SoftClamp              `yaml:"soft_clamp" json:"soft_clamp"`
	Drift          Drift                  `yaml:"drift" json:"drift"`
}

// DefaultGrid is the default per-component action resolution.
var DefaultGrid = []float64{0.0, 0.5, 1.0}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Grid:           append([]float64(nil), DefaultGrid...),
		DefaultUnknown: 0.5,
		Thresholds: Thresholds{
			JMin: 0.85,
			HMax: 0.30,
			CMin: 0.35,
			CMax: 0.75,
		},
		Critical: Critical{
			JCritical: 0.7,
			HCritical: 0.6,
		},
		Weights: Weights{
			Alpha: 0.3,
			Beta:  0.35,
			Gamma: 0.2,
			Delta: 0.15,
		},
		Compassion: CompassionCoefficients{
			Empathy:        0.4,
			Physical:       0.4,
			Responsibility: 0.2,
		},
		Confidence: Confidence{
			SigmaMax:    0.5,
			MarginK:     8.0,
			MarginClamp: 1.0,
			Suggest:     0.35,
			Force:       0.20,
		},
		Uncertainty: Uncertainty{
			MarginK:  5.0,
			ASLambda: 2.0,
			CUSWeights: CUSWeights{
				HI: 0.4,
				DE: 0.35,
				AS: 0.25,
			},
		},
		Escalation: Escalation{
			ASSoftThreshold:         0.3,
			DivergenceHardThreshold: 0.5,
			Hysteresis:              0.02,
		},
		Envelope: Envelope{
			SeverityMax:     0.6,
			InterventionMax: 0.5,
			DelayMin:        0.3,
		},
		SoftClamp: SoftClamp{
			Alpha: 0.60,
			Beta:  0.50,
			Gamma: 0.35,
		},
		Drift: Drift{
			DeltaThreshold: 0.15,
			Window:         10,
			MeanThreshold:  0.65,
		},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Grid = append([]float64(nil), c.Grid...)
	return &out
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.Grid) == 0 {
		return fmt.Errorf("grid must not be empty")
	}
	for i, g := range c.Grid {
		if !inUnit(g) {
			return fmt.Errorf("grid[%d]=%v outside [0,1]", i, g)
		}
	}
	unit := []struct {
		name string
		v    float64
	}{
		{"default_unknown", c.DefaultUnknown},
		{"J_MIN", c.Thresholds.JMin},
		{"H_MAX", c.Thresholds.HMax},
		{"C_MIN", c.Thresholds.CMin},
		{"C_MAX", c.Thresholds.CMax},
		{"J_CRITICAL", c.Critical.JCritical},
		{"H_CRITICAL", c.Critical.HCritical},
		{"CONFIDENCE_ESCALATION_SUGGEST", c.Confidence.Suggest},
		{"CONFIDENCE_ESCALATION_FORCE", c.Confidence.Force},
		{"SEVERITY_SOFT_MAX", c.Envelope.SeverityMax},
		{"INTERVENTION_SOFT_MAX", c.Envelope.InterventionMax},
		{"DELAY_SOFT_MIN", c.Envelope.DelayMin},
		{"AS_SOFT_THRESHOLD", c.Escalation.ASSoftThreshold},
		{"DIVERGENCE_HARD_THRESHOLD", c.Escalation.DivergenceHardThreshold},
		{"ESCALATION_HYSTERESIS", c.Escalation.Hysteresis},
		{"SOFT_CLAMP_ALPHA", c.SoftClamp.Alpha},
		{"SOFT_CLAMP_BETA", c.SoftClamp.Beta},
		{"SOFT_CLAMP_GAMMA", c.SoftClamp.Gamma},
		{"DELTA_CUS_THRESHOLD", c.Drift.DeltaThreshold},
		{"CUS_MEAN_THRESHOLD", c.Drift.MeanThreshold},
	}
	for _, u := range unit {
		if !inUnit(u.v) {
			return fmt.Errorf("%s=%v outside [0,1]", u.name, u.v)
		}
	}
	if c.Thresholds.CMin > c.Thresholds.CMax {
		return fmt.Errorf("C_MIN=%v exceeds C_MAX=%v", c.Thresholds.CMin, c.Thresholds.CMax)
	}
	if !(c.Confidence.SigmaMax > 0) {
		return fmt.Errorf("SIGMA_MAX must be positive, got %v", c.Confidence.SigmaMax)
	}
	if !(c.Confidence.MarginClamp > 0) {
		return fmt.Errorf("CONFIDENCE_MARGIN_CLAMP must be positive, got %v", c.Confidence.MarginClamp)
	}
	if !(c.Confidence.MarginK >= 0) || !(c.Uncertainty.MarginK >= 0) || !(c.Uncertainty.ASLambda >= 0) {
		return fmt.Errorf("slope parameters must not be negative")
	}
	if c.Drift.Window < 1 {
		return fmt.Errorf("CUS_MEAN_WINDOW must be at least 1, got %d", c.Drift.Window)
	}
	return nil
}

// Hash returns sha256 over the JSON form of the effective configuration.
// Struct field order is fixed, so equal configs hash equally.
func (c *Config) Hash() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

// DefaultPath returns ~/.amiengine/config.yaml, or "" when there is no home.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".amiengine", "config.yaml")
}

// LoadConfig loads configuration from a YAML file.
// Empty path falls back to ~/.amiengine/config.yaml.
// Missing file returns defaults. Invalid YAML or values return an error.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads configuration and returns its SHA-256 hash.
// The hash is computed over the raw YAML bytes on disk.
// When no file exists (defaults used), the hash is the SHA-256 of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])
	if len(data) == 0 {
		return DefaultConfig(), hash, nil
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

// Parse overlays YAML bytes onto the defaults and validates the result.
// A top-level "overrides" map of contract names is applied last.
func Parse(data []byte) (*Config, error) {
	// Start with defaults, YAML overwrites only specified fields
	var doc struct {
		Config    `yaml:",inline"`
		Overrides map[string]float64 `yaml:"overrides"`
	}
	doc.Config = *DefaultConfig()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg := doc.Config.Clone()
	if err := ApplyOverrides(cfg, doc.Overrides); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// DefaultConfigYAML returns a commented YAML template for `amiengine init`.
func DefaultConfigYAML() string {
	return `# amiengine configuration
# Generated by: amiengine init
#
# Decision order (cannot be changed):
#   1. Encode raw state (missing or non-numeric -> default_unknown)
#   2. Generate candidates over grid^4 plus the no-op action
#   3. Score every candidate (W, J, H, C) and validate thresholds
#   4. Fail-safe on worst-case J/H across all candidates
#   5. Select the max composite score among valid candidates
#   6. Confidence, uncertainty, escalation level
#   7. Temporal drift, then soft clamp at level 1

grid: [0.0, 0.5, 1.0]
default_unknown: 0.5

# Per-candidate constraints.
thresholds:
  j_min: 0.85
  h_max: 0.30
  c_min: 0.35
  c_max: 0.75

# Global fail-safe on worst-case scores.
critical:
  j_critical: 0.7
  h_critical: 0.6

# Composite score = alpha*W + beta*J - gamma*H + delta*C
weights:
  alpha: 0.3
  beta: 0.35
  gamma: 0.2
  delta: 0.15

compassion:
  empathy: 0.4
  physical: 0.4
  responsibility: 0.2

confidence:
  sigma_max: 0.5
  margin_k: 8.0
  margin_clamp: 1.0
  suggest: 0.35
  force: 0.20

uncertainty:
  margin_k: 5.0
  as_lambda: 2.0
  cus_weights:
    hi: 0.4
    de: 0.35
    as: 0.25

escalation:
  as_soft_threshold: 0.3
  divergence_hard_threshold: 0.5
  hysteresis: 0.02

# Soft-safe action envelope.
envelope:
  severity_max: 0.6
  intervention_max: 0.5
  delay_min: 0.3

soft_clamp:
  alpha: 0.60
  beta: 0.50
  gamma: 0.35

drift:
  delta_threshold: 0.15
  window: 10
  mean_threshold: 0.65

# Contract-name overrides applied after the fields above, e.g.
# overrides:
#   J_MIN: 0.65
#   H_CRITICAL: 0.7
`
}
