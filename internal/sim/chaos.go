package sim

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/amiengine/internal/action"
	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/policy"
)

// Invariant rule names reported in Violation.Rule.
const (
	RuleFailSafeAction = "fail_safe_action"
	RuleSelectedValid  = "selected_valid"
	RuleLowConfidence  = "low_confidence_escalates"
	RuleUnitCube       = "action_in_unit_cube"
	RuleSoftClampLevel = "soft_clamp_level"
)

// Grid maps override keys to the values each key takes. Every
// combination is one chaos configuration.
type Grid map[string][]float64

// DefaultChaosGrid varies the constraint and critical thresholds around
// their defaults: 64 configurations.
func DefaultChaosGrid() Grid {
	return Grid{
		"J_MIN":      {0.75, 0.85},
		"H_MAX":      {0.25, 0.30},
		"C_MIN":      {0.30, 0.35},
		"C_MAX":      {0.70, 0.75},
		"J_CRITICAL": {0.65, 0.70},
		"H_CRITICAL": {0.55, 0.60},
	}
}

// Configs expands the grid into override sets. Keys are iterated in sorted
// order with the last key varying fastest. An empty grid yields one empty set.
func (g Grid) Configs() []map[string]float64 {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []map[string]float64{{}}
	for _, k := range keys {
		next := make([]map[string]float64, 0, len(out)*len(g[k]))
		for _, base := range out {
			for _, v := range g[k] {
				combo := make(map[string]float64, len(base)+1)
				for bk, bv := range base {
					combo[bk] = bv
				}
				combo[k] = v
				next = append(next, combo)
			}
		}
		out = next
	}
	return out
}

// Violation is one broken invariant.
type Violation struct {
	Index  int    `json:"index"`
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// ChaosRun is the outcome of one grid configuration.
type ChaosRun struct {
	Overrides    map[string]float64 `json:"overrides"`
	N            int                `json:"n"`
	FailSafe     int                `json:"fail_safe"`
	FailSafeRate float64            `json:"fail_safe_rate"`
	SoftClamps   int                `json:"soft_clamps"`
	// InEnvelope counts soft-clamped actions inside the configured envelope.
	InEnvelope int         `json:"in_envelope"`
	Violations []Violation `json:"violations,omitempty"`
}

// ChaosReport holds every run in grid order.
type ChaosReport struct {
	Runs       []ChaosRun `json:"runs"`
	Violations int        `json:"violations"`
}

// OK reports whether every invariant held in every run.
func (r *ChaosReport) OK() bool {
	return r.Violations == 0
}

// ChaosOptions tune Chaos.
type ChaosOptions struct {
	// Base is the configuration the grid overrides are applied to.
	// Nil means the defaults.
	Base    *policy.Config
	Workers int // <= 0 uses GOMAXPROCS
}

// Chaos decides every state under every grid configuration and checks the
// decision invariants. Configurations run in parallel; the report keeps
// grid order. An invalid configuration is an error.
func Chaos(ctx context.Context, grid Grid, states []model.RawState, opts ChaosOptions) (*ChaosReport, error) {
	base := opts.Base
	if base == nil {
		base = policy.DefaultConfig()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	configs := grid.Configs()
	runs := make([]ChaosRun, len(configs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, overrides := range configs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cfg := base.Clone()
			if err := policy.ApplyOverrides(cfg, overrides); err != nil {
				return fmt.Errorf("sim: chaos config %s: %w", formatChaosOverrides(overrides), err)
			}
			eng, err := engine.New(cfg)
			if err != nil {
				return fmt.Errorf("sim: chaos config %s: %w", formatChaosOverrides(overrides), err)
			}
			run, err := chaosRun(eng, states)
			if err != nil {
				return err
			}
			run.Overrides = overrides
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &ChaosReport{Runs: runs}
	for _, r := range runs {
		report.Violations += len(r.Violations)
	}
	return report, nil
}

func chaosRun(eng *engine.Engine, states []model.RawState) (ChaosRun, error) {
	cfg := eng.Config()
	env := action.Envelope{
		SeverityMax:     cfg.Envelope.SeverityMax,
		InterventionMax: cfg.Envelope.InterventionMax,
		DelayMin:        cfg.Envelope.DelayMin,
	}

	run := ChaosRun{N: len(states)}
	for i, raw := range states {
		res, err := eng.Decide(raw, nil)
		if err != nil {
			return ChaosRun{}, fmt.Errorf("sim: chaos decide state %d: %w", i, err)
		}
		if res.Reason == model.ReasonFailSafe {
			run.FailSafe++
		}
		if res.SoftSafeApplied {
			run.SoftClamps++
			if env.Contains(res.Action) {
				run.InEnvelope++
			}
		}
		for _, v := range CheckInvariants(res, cfg) {
			v.Index = i
			run.Violations = append(run.Violations, v)
		}
	}
	if run.N > 0 {
		run.FailSafeRate = float64(run.FailSafe) / float64(run.N)
	}
	return run, nil
}

// CheckInvariants returns the invariants a stateless decision under cfg
// breaks. Index is left zero.
func CheckInvariants(res *engine.Result, cfg *policy.Config) []Violation {
	var out []Violation
	add := func(rule, format string, args ...any) {
		out = append(out, Violation{Rule: rule, Detail: fmt.Sprintf(format, args...)})
	}

	if res.Reason == model.ReasonFailSafe {
		if res.Action != model.SafeAction {
			add(RuleFailSafeAction, "fail-safe returned %s", res.Action)
		}
		if !res.HumanEscalation {
			add(RuleFailSafeAction, "fail-safe without human escalation")
		}
	}
	if res.Reason == model.ReasonMaxScore && !res.SoftSafeApplied {
		if res.Scores.J < cfg.Thresholds.JMin {
			add(RuleSelectedValid, "J %.4f < J_MIN %.4f", res.Scores.J, cfg.Thresholds.JMin)
		}
		if res.Scores.H > cfg.Thresholds.HMax {
			add(RuleSelectedValid, "H %.4f > H_MAX %.4f", res.Scores.H, cfg.Thresholds.HMax)
		}
	}
	if res.Confidence < cfg.Confidence.Force && !res.HumanEscalation && !res.SoftSafeApplied {
		add(RuleLowConfidence, "confidence %.4f < %.4f without human escalation", res.Confidence, cfg.Confidence.Force)
	}
	if !res.Action.InUnitCube() {
		add(RuleUnitCube, "action %s outside [0,1]^4", res.Action)
	}
	if res.SoftSafeApplied && res.Escalation != model.LevelSoftSafe {
		add(RuleSoftClampLevel, "soft clamp at level %d", res.Escalation)
	}
	return out
}

func formatChaosOverrides(o map[string]float64) string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, o[k])
	}
	return "{" + strings.Join(parts, " ") + "}"
}
