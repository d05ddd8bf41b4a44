package scenario

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/policy"
	"github.com/ppiankov/amiengine/internal/profile"
)

// Engine builds the engine a scenario runs on: base with the scenario
// profile and then its overrides applied.
func Engine(s *Scenario, base *policy.Config) (*engine.Engine, error) {
	cfg, err := profile.Resolve(s.Profile, base)
	if err != nil {
		return nil, err
	}
	if len(s.Overrides) > 0 {
		if err := policy.ApplyOverrides(cfg, s.Overrides); err != nil {
			return nil, err
		}
	}
	return engine.New(cfg)
}

// Run evaluates all cases in a scenario on top of base.
// Cases are independent unless the scenario is a stream.
func Run(s *Scenario, base *policy.Config) (*RunResult, error) {
	eng, err := Engine(s, base)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}

	result := &RunResult{
		Name:    s.Name,
		Profile: s.Profile,
		Total:   len(s.Cases),
	}

	var h *engine.History
	if s.Stream {
		h = &engine.History{Hysteresis: true}
	}

	for i, c := range s.Cases {
		cr, err := RunCase(eng, i+1, c, h)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		if cr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result, nil
}

// RunCase decides one case on eng and checks its expectations.
func RunCase(eng *engine.Engine, index int, c Case, h *engine.History) (CaseResult, error) {
	res, err := eng.Decide(c.State, h)
	if err != nil {
		return CaseResult{}, fmt.Errorf("case %d: %w", index, err)
	}
	failures := Check(res, c.Expect)
	return CaseResult{
		Index:    index,
		Name:     c.Name,
		Passed:   len(failures) == 0,
		Expected: describeExpected(c.Expect),
		Actual:   describeActual(res, c.Expect),
		Failures: failures,
		Reason:   res.Reason,
		Level:    res.Escalation,
		Action:   res.Action,
	}, nil
}

// Check compares res against exp and returns one message per failed check.
func Check(res *engine.Result, exp Expect) []string {
	var out []string
	if exp.Reason != nil && res.Reason != *exp.Reason {
		out = append(out, fmt.Sprintf("reason: expected %s, got %s", *exp.Reason, res.Reason))
	}
	if exp.Level != nil && res.Escalation != *exp.Level {
		out = append(out, fmt.Sprintf("level: expected %d, got %d", *exp.Level, res.Escalation))
	}
	if exp.MinLevel != nil && res.Escalation < *exp.MinLevel {
		out = append(out, fmt.Sprintf("level: expected at least %d, got %d", *exp.MinLevel, res.Escalation))
	}
	if exp.HumanEscalation != nil && res.HumanEscalation != *exp.HumanEscalation {
		out = append(out, fmt.Sprintf("human_escalation: expected %t, got %t", *exp.HumanEscalation, res.HumanEscalation))
	}
	if exp.NeedsHuman != nil && res.NeedsHuman() != *exp.NeedsHuman {
		out = append(out, fmt.Sprintf("needs_human: expected %t, got %t", *exp.NeedsHuman, res.NeedsHuman()))
	}
	if exp.SoftClamp != nil && res.SoftSafeApplied != *exp.SoftClamp {
		out = append(out, fmt.Sprintf("soft_clamp: expected %t, got %t", *exp.SoftClamp, res.SoftSafeApplied))
	}
	if exp.Action != nil {
		tol := exp.Tolerance
		if tol == 0 {
			tol = DefaultActionTolerance
		}
		for i, want := range exp.Action {
			if math.Abs(res.Action[i]-want) > tol {
				out = append(out, fmt.Sprintf("action: expected %v, got %v", exp.Action, res.Action[:]))
				break
			}
		}
	}
	return out
}

func describeExpected(exp Expect) string {
	var parts []string
	if exp.Reason != nil {
		parts = append(parts, "reason="+string(*exp.Reason))
	}
	if exp.Level != nil {
		parts = append(parts, fmt.Sprintf("level=%d", *exp.Level))
	}
	if exp.MinLevel != nil {
		parts = append(parts, fmt.Sprintf("level>=%d", *exp.MinLevel))
	}
	if exp.HumanEscalation != nil {
		parts = append(parts, fmt.Sprintf("human=%t", *exp.HumanEscalation))
	}
	if exp.NeedsHuman != nil {
		parts = append(parts, fmt.Sprintf("needs_human=%t", *exp.NeedsHuman))
	}
	if exp.SoftClamp != nil {
		parts = append(parts, fmt.Sprintf("clamp=%t", *exp.SoftClamp))
	}
	if exp.Action != nil {
		parts = append(parts, fmt.Sprintf("action=%v", exp.Action))
	}
	return strings.Join(parts, " ")
}

// describeActual renders the fields exp checks, in the same order.
func describeActual(res *engine.Result, exp Expect) string {
	var parts []string
	if exp.Reason != nil {
		parts = append(parts, "reason="+string(res.Reason))
	}
	if exp.Level != nil || exp.MinLevel != nil {
		parts = append(parts, fmt.Sprintf("level=%d", res.Escalation))
	}
	if exp.HumanEscalation != nil {
		parts = append(parts, fmt.Sprintf("human=%t", res.HumanEscalation))
	}
	if exp.NeedsHuman != nil {
		parts = append(parts, fmt.Sprintf("needs_human=%t", res.NeedsHuman()))
	}
	if exp.SoftClamp != nil {
		parts = append(parts, fmt.Sprintf("clamp=%t", res.SoftSafeApplied))
	}
	if exp.Action != nil {
		parts = append(parts, fmt.Sprintf("action=%v", res.Action[:]))
	}
	return strings.Join(parts, " ")
}

// Parse decodes and validates a scenario document. Unknown fields are
// rejected so misspelled expectations do not pass silently.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the structural rules of a scenario.
func Validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	for i, c := range s.Cases {
		if err := validateExpect(c.Expect); err != nil {
			return fmt.Errorf("case %d: %w", i+1, err)
		}
	}
	return nil
}

func validateExpect(exp Expect) error {
	if exp.Action != nil && len(exp.Action) != len(model.Action{}) {
		return fmt.Errorf("expected action must have %d components, got %d", len(model.Action{}), len(exp.Action))
	}
	if exp.Level != nil && !exp.Level.Valid() {
		return fmt.Errorf("invalid level %d", *exp.Level)
	}
	if exp.MinLevel != nil && !exp.MinLevel.Valid() {
		return fmt.Errorf("invalid min_level %d", *exp.MinLevel)
	}
	if exp.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative")
	}
	return nil
}

// Load reads a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return s, nil
}

// LoadAndRun loads a scenario YAML file and the engine config, and runs.
func LoadAndRun(path, configPath string) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}

	cfg, err := policy.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	result, err := Run(s, cfg)
	if err != nil {
		return nil, err
	}
	result.File = path

	return result, nil
}
