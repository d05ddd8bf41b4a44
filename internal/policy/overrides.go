package policy

import (
	"fmt"
	"math"
	"sort"
)

// Overrides is a sparse set of contract-named parameters layered over a
// Config. Nil fields keep the underlying value.
type Overrides struct {
	JMin                *float64 `yaml:"J_MIN,omitempty" json:"J_MIN,omitempty"`
	HMax                *float64 `yaml:"H_MAX,omitempty" json:"H_MAX,omitempty"`
	CMin                *float64 `yaml:"C_MIN,omitempty" json:"C_MIN,omitempty"`
	CMax                *float64 `yaml:"C_MAX,omitempty" json:"C_MAX,omitempty"`
	JCritical           *float64 `yaml:"J_CRITICAL,omitempty" json:"J_CRITICAL,omitempty"`
	HCritical           *float64 `yaml:"H_CRITICAL,omitempty" json:"H_CRITICAL,omitempty"`
	ForceEscalation     *float64 `yaml:"CONFIDENCE_ESCALATION_FORCE,omitempty" json:"CONFIDENCE_ESCALATION_FORCE,omitempty"`
	SuggestEscalation   *float64 `yaml:"CONFIDENCE_ESCALATION_SUGGEST,omitempty" json:"CONFIDENCE_ESCALATION_SUGGEST,omitempty"`
	SeveritySoftMax     *float64 `yaml:"SEVERITY_SOFT_MAX,omitempty" json:"SEVERITY_SOFT_MAX,omitempty"`
	InterventionSoftMax *float64 `yaml:"INTERVENTION_SOFT_MAX,omitempty" json:"INTERVENTION_SOFT_MAX,omitempty"`
	DelaySoftMin        *float64 `yaml:"DELAY_SOFT_MIN,omitempty" json:"DELAY_SOFT_MIN,omitempty"`
	ASSoftThreshold     *float64 `yaml:"AS_SOFT_THRESHOLD,omitempty" json:"AS_SOFT_THRESHOLD,omitempty"`
	DivergenceHard      *float64 `yaml:"DIVERGENCE_HARD_THRESHOLD,omitempty" json:"DIVERGENCE_HARD_THRESHOLD,omitempty"`
	Hysteresis          *float64 `yaml:"ESCALATION_HYSTERESIS,omitempty" json:"ESCALATION_HYSTERESIS,omitempty"`
	SoftClampAlpha      *float64 `yaml:"SOFT_CLAMP_ALPHA,omitempty" json:"SOFT_CLAMP_ALPHA,omitempty"`
	SoftClampBeta       *float64 `yaml:"SOFT_CLAMP_BETA,omitempty" json:"SOFT_CLAMP_BETA,omitempty"`
	SoftClampGamma      *float64 `yaml:"SOFT_CLAMP_GAMMA,omitempty" json:"SOFT_CLAMP_GAMMA,omitempty"`
	DeltaCUSThreshold   *float64 `yaml:"DELTA_CUS_THRESHOLD,omitempty" json:"DELTA_CUS_THRESHOLD,omitempty"`
	CUSMeanWindow       *float64 `yaml:"CUS_MEAN_WINDOW,omitempty" json:"CUS_MEAN_WINDOW,omitempty"`
	CUSMeanThreshold    *float64 `yaml:"CUS_MEAN_THRESHOLD,omitempty" json:"CUS_MEAN_THRESHOLD,omitempty"`
	UncertaintyMarginK  *float64 `yaml:"UNCERTAINTY_MARGIN_K,omitempty" json:"UNCERTAINTY_MARGIN_K,omitempty"`
	UncertaintyASLambda *float64 `yaml:"UNCERTAINTY_AS_LAMBDA,omitempty" json:"UNCERTAINTY_AS_LAMBDA,omitempty"`
	ConfidenceMarginK   *float64 `yaml:"CONFIDENCE_MARGIN_K,omitempty" json:"CONFIDENCE_MARGIN_K,omitempty"`
	SigmaMax            *float64 `yaml:"SIGMA_MAX,omitempty" json:"SIGMA_MAX,omitempty"`
	MarginClamp         *float64 `yaml:"CONFIDENCE_MARGIN_CLAMP,omitempty" json:"CONFIDENCE_MARGIN_CLAMP,omitempty"`
}

// key binds a contract name to its Overrides slot and Config field.
// CUS_MEAN_WINDOW has no float field and is handled in set.
type key struct {
	name string
	ov   func(*Overrides) **float64
	cfg  func(*Config) *float64
}

var keys = []key{
	{"J_MIN", func(o *Overrides) **float64 { return &o.JMin }, func(c *Config) *float64 { return &c.Thresholds.JMin }},
	{"H_MAX", func(o *Overrides) **float64 { return &o.HMax }, func(c *Config) *float64 { return &c.Thresholds.HMax }},
	{"C_MIN", func(o *Overrides) **float64 { return &o.CMin }, func(c *Config) *float64 { return &c.Thresholds.CMin }},
	{"C_MAX", func(o *Overrides) **float64 { return &o.CMax }, func(c *Config) *float64 { return &c.Thresholds.CMax }},
	{"J_CRITICAL", func(o *Overrides) **float64 { return &o.JCritical }, func(c *Config) *float64 { return &c.Critical.JCritical }},
	{"H_CRITICAL", func(o *Overrides) **float64 { return &o.HCritical }, func(c *Config) *float64 { return &c.Critical.HCritical }},
	{"CONFIDENCE_ESCALATION_FORCE", func(o *Overrides) **float64 { return &o.ForceEscalation }, func(c *Config) *float64 { return &c.Confidence.Force }},
	{"CONFIDENCE_ESCALATION_SUGGEST", func(o *Overrides) **float64 { return &o.SuggestEscalation }, func(c *Config) *float64 { return &c.Confidence.Suggest }},
	{"SEVERITY_SOFT_MAX", func(o *Overrides) **float64 { return &o.SeveritySoftMax }, func(c *Config) *float64 { return &c.Envelope.SeverityMax }},
	{"INTERVENTION_SOFT_MAX", func(o *Overrides) **float64 { return &o.InterventionSoftMax }, func(c *Config) *float64 { return &c.Envelope.InterventionMax }},
	{"DELAY_SOFT_MIN", func(o *Overrides) **float64 { return &o.DelaySoftMin }, func(c *Config) *float64 { return &c.Envelope.DelayMin }},
	{"AS_SOFT_THRESHOLD", func(o *Overrides) **float64 { return &o.ASSoftThreshold }, func(c *Config) *float64 { return &c.Escalation.ASSoftThreshold }},
	{"DIVERGENCE_HARD_THRESHOLD", func(o *Overrides) **float64 { return &o.DivergenceHard }, func(c *Config) *float64 { return &c.Escalation.DivergenceHardThreshold }},
	{"ESCALATION_HYSTERESIS", func(o *Overrides) **float64 { return &o.Hysteresis }, func(c *Config) *float64 { return &c.Escalation.Hysteresis }},
	{"SOFT_CLAMP_ALPHA", func(o *Overrides) **float64 { return &o.SoftClampAlpha }, func(c *Config) *float64 { return &c.SoftClamp.Alpha }},
	{"SOFT_CLAMP_BETA", func(o *Overrides) **float64 { return &o.SoftClampBeta }, func(c *Config) *float64 { return &c.SoftClamp.Beta }},
	{"SOFT_CLAMP_GAMMA", func(o *Overrides) **float64 { return &o.SoftClampGamma }, func(c *Config) *float64 { return &c.SoftClamp.Gamma }},
	{"DELTA_CUS_THRESHOLD", func(o *Overrides) **float64 { return &o.DeltaCUSThreshold }, func(c *Config) *float64 { return &c.Drift.DeltaThreshold }},
	{"CUS_MEAN_WINDOW", func(o *Overrides) **float64 { return &o.CUSMeanWindow }, nil},
	{"CUS_MEAN_THRESHOLD", func(o *Overrides) **float64 { return &o.CUSMeanThreshold }, func(c *Config) *float64 { return &c.Drift.MeanThreshold }},
	{"UNCERTAINTY_MARGIN_K", func(o *Overrides) **float64 { return &o.UncertaintyMarginK }, func(c *Config) *float64 { return &c.Uncertainty.MarginK }},
	{"UNCERTAINTY_AS_LAMBDA", func(o *Overrides) **float64 { return &o.UncertaintyASLambda }, func(c *Config) *float64 { return &c.Uncertainty.ASLambda }},
	{"CONFIDENCE_MARGIN_K", func(o *Overrides) **float64 { return &o.ConfidenceMarginK }, func(c *Config) *float64 { return &c.Confidence.MarginK }},
	{"SIGMA_MAX", func(o *Overrides) **float64 { return &o.SigmaMax }, func(c *Config) *float64 { return &c.Confidence.SigmaMax }},
	{"CONFIDENCE_MARGIN_CLAMP", func(o *Overrides) **float64 { return &o.MarginClamp }, func(c *Config) *float64 { return &c.Confidence.MarginClamp }},
}

func lookup(name string) (key, bool) {
	for _, k := range keys {
		if k.name == name {
			return k, true
		}
	}
	return key{}, false
}

// Keys returns every accepted override name, sorted.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.name)
	}
	sort.Strings(out)
	return out
}

// Get reads a contract-named value from cfg.
func (c *Config) Get(name string) (float64, bool) {
	k, ok := lookup(name)
	if !ok {
		return 0, false
	}
	if k.cfg == nil {
		return float64(c.Drift.Window), true
	}
	return *k.cfg(c), true
}

func set(cfg *Config, k key, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("override %s: value must be finite", k.name)
	}
	if k.cfg == nil {
		if v < 1 || v != math.Trunc(v) {
			return fmt.Errorf("override %s: window must be a positive integer, got %v", k.name, v)
		}
		cfg.Drift.Window = int(v)
		return nil
	}
	*k.cfg(cfg) = v
	return nil
}

// ApplyOverrides writes contract-named values onto cfg. Unknown names are
// an error so typos do not silently fall back to defaults.
func ApplyOverrides(cfg *Config, values map[string]float64) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		k, ok := lookup(name)
		if !ok {
			return fmt.Errorf("unknown override key %q", name)
		}
		if err := set(cfg, k, values[name]); err != nil {
			return err
		}
	}
	return nil
}

// ParseOverrides converts a contract-named map into Overrides.
func ParseOverrides(values map[string]float64) (Overrides, error) {
	var o Overrides
	for name, v := range values {
		k, ok := lookup(name)
		if !ok {
			return Overrides{}, fmt.Errorf("unknown override key %q", name)
		}
		val := v
		*k.ov(&o) = &val
	}
	return o, nil
}

// Values returns the set fields keyed by contract name.
func (o Overrides) Values() map[string]float64 {
	out := make(map[string]float64)
	for _, k := range keys {
		if p := *k.ov(&o); p != nil {
			out[k.name] = *p
		}
	}
	return out
}

// IsZero reports whether no field is set.
func (o Overrides) IsZero() bool {
	return len(o.Values()) == 0
}

// Apply returns a copy of cfg with the set fields written over it.
func (o Overrides) Apply(cfg *Config) (*Config, error) {
	out := cfg.Clone()
	if err := ApplyOverrides(out, o.Values()); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config after overrides: %w", err)
	}
	return out, nil
}
