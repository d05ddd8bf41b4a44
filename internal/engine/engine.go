// Package engine runs the full decision pipeline: encode, generate,
// score, validate, fail-safe, select, estimate, escalate, clamp, and
// records every stage in a hashed trace.
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/amiengine/internal/action"
	"github.com/ppiankov/amiengine/internal/confidence"
	"github.com/ppiankov/amiengine/internal/constraint"
	"github.com/ppiankov/amiengine/internal/drift"
	"github.com/ppiankov/amiengine/internal/escalation"
	"github.com/ppiankov/amiengine/internal/failsafe"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/moral"
	"github.com/ppiankov/amiengine/internal/policy"
	"github.com/ppiankov/amiengine/internal/selector"
	"github.com/ppiankov/amiengine/internal/state"
	"github.com/ppiankov/amiengine/internal/trace"
	"github.com/ppiankov/amiengine/internal/uncertainty"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine is immutable after New and safe for concurrent use. Mutable
// state lives only in the caller-held History.
type Engine struct {
	cfg *policy.Config
	log *zap.Logger
}

// New validates cfg and returns an engine holding its own copy.
// A nil cfg means policy.DefaultConfig().
func New(cfg *policy.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = policy.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}
	e := &Engine{cfg: cfg.Clone(), log: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *policy.Config {
	return e.cfg.Clone()
}

// Decide runs one decision. h may be nil; when set, its CUS window is
// advanced and, if h.Hysteresis is true, its previous level is used and
// then replaced by this decision's level. The trace records h as it was
// before the decision.
func (e *Engine) Decide(raw model.RawState, h *History) (*Result, error) {
	cfg := e.cfg
	var tl trace.Logger
	prior := h.record()

	tl.Log(trace.StepRawState, trace.EventRawState, state.Snapshot(raw))

	s := state.EncodeWith(raw, cfg.DefaultUnknown)
	tl.Log(trace.StepStateEncoded, trace.EventStateEncoded, s)

	candidates := action.Generate(s, cfg.Grid)
	tl.Log(trace.StepActionsGenerated, trace.EventActionsGenerated, ActionsGenerated{
		Count:   len(candidates),
		Actions: candidates,
	})

	scores := moral.EvaluateAll(s, candidates, cfg.Compassion)
	scored := make([]ScoredAction, len(candidates))
	for i, a := range candidates {
		scored[i] = ScoredAction{A: a, Scores: scores[i]}
	}
	tl.Log(trace.StepMoralScores, trace.EventMoralScores, scored)

	var valid []selector.Candidate
	for i, a := range candidates {
		cv := constraint.Validate(scores[i], cfg.Thresholds)
		if cv.Valid {
			valid = append(valid, selector.Candidate{Action: a, Scores: scores[i]})
		}
		tl.Log(trace.StepConstraint, trace.EventConstraint, ConstraintEvent{
			A:          a,
			Valid:      cv.Valid,
			Violations: cv.Violations,
		})
	}

	fs := failsafe.Evaluate(scores, cfg.Critical)
	tl.Log(trace.StepFailSafe, trace.EventFailSafe, fs)

	composites := moral.CompositeAll(scores, cfg.Weights)
	sel := selector.Select(valid, fs, cfg.Weights)

	var selected model.Scores
	if sel.Index >= 0 {
		selected = valid[sel.Index].Scores
	} else {
		selected = moral.Evaluate(s, sel.Action, cfg.Compassion)
	}

	conf := confidence.Compute(selected, cfg.Thresholds, cfg.Confidence)
	unc := uncertainty.Compute(conf.Confidence, conf.ConstraintMargin, composites, cfg.Uncertainty)
	humanEscalation := fs.HumanEscalation || conf.ForceEscalation

	var prev *model.Level
	if h != nil && h.Hysteresis {
		prev = h.PreviousLevel
	}
	asNorm, divergence := unc.ASNorm, unc.Divergence
	level := escalation.Compute(escalation.Input{
		Confidence:       conf.Confidence,
		ConstraintMargin: conf.ConstraintMargin,
		WorstH:           fs.WorstH,
		HCritical:        cfg.Critical.HCritical,
		ASNorm:           &asNorm,
		Divergence:       &divergence,
	}, escalation.ThresholdsFrom(cfg), prev)

	var td *drift.Result
	if h != nil {
		r := h.CUS.Observe(unc.CUS, cfg.Drift)
		td = &r
		if r.PreemptiveEscalation {
			level = level.AtLeast(model.LevelSoftSafe)
		}
	}

	final := sel.Action
	selection := Selection{
		Action:      sel.Action,
		Reason:      sel.Reason,
		Score:       sel.Score,
		Override:    fs.Override,
		Scores:      selected,
		Result:      conf,
		Uncertainty: unc,
	}

	var selfReg *SelfRegulation
	softApplied := false
	if level == model.LevelSoftSafe && !fs.Override {
		before := conf.Confidence
		final = action.SoftClamp(sel.Action, unc.CUS, action.Coefficients{
			Alpha: cfg.SoftClamp.Alpha,
			Beta:  cfg.SoftClamp.Beta,
			Gamma: cfg.SoftClamp.Gamma,
		})
		selected = moral.Evaluate(s, final, cfg.Compassion)
		conf = confidence.Compute(selected, cfg.Thresholds, cfg.Confidence)
		unc = uncertainty.Compute(conf.Confidence, conf.ConstraintMargin, composites, cfg.Uncertainty)
		humanEscalation = false
		selfReg = &SelfRegulation{DeltaConfidence: conf.Confidence - before}
		selection = Selection{
			Action:         final,
			Reason:         sel.Reason,
			Score:          sel.Score,
			Override:       false,
			Scores:         selected,
			Result:         conf,
			Uncertainty:    unc,
			SelfRegulation: selfReg,
		}
		softApplied = true
	}

	selection.Escalation = level
	selection.SoftSafeApplied = softApplied
	selection.TemporalDrift = td
	tl.Log(trace.StepSelection, trace.EventSelection, selection)

	tr := tl.Trace()
	tr.History = prior
	hash, err := trace.Hash(tr)
	if err != nil {
		return nil, fmt.Errorf("engine: hash trace: %w", err)
	}

	if h != nil && h.Hysteresis {
		l := level
		h.PreviousLevel = &l
	}

	e.log.Debug("decision",
		zap.String("reason", string(sel.Reason)),
		zap.String("level", model.LevelLabel(level)),
		zap.Bool("soft_clamp", softApplied),
		zap.String("trace_hash", hash),
		zap.Int("candidates", len(candidates)),
	)

	return &Result{
		Action:           final,
		RawAction:        sel.Action,
		HumanEscalation:  humanEscalation,
		Reason:           sel.Reason,
		Confidence:       conf.Confidence,
		ConstraintMargin: conf.ConstraintMargin,
		Gradient:         conf.Gradient,
		Uncertainty:      unc,
		Escalation:       level,
		SoftSafeApplied:  softApplied,
		TemporalDrift:    td,
		SelfRegulation:   selfReg,
		J:                selected.J,
		H:                selected.H,
		Scores:           selected,
		FailSafe:         fs,
		Candidates:       len(candidates),
		ValidCandidates:  len(valid),
		Trace:            tr,
		TraceHash:        hash,
	}, nil
}
