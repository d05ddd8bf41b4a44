package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/trace"
)

// FloatTolerance bounds per-field float differences in ethics checks.
const FloatTolerance = 1e-9

var (
	// ErrMissingRawState means the trace has no step 0 raw_state record.
	ErrMissingRawState = errors.New("engine: trace has no raw_state at step 0")

	// ErrReplayMismatch is matched by every *ReplayError.
	ErrReplayMismatch = errors.New("engine: replay mismatch")
)

// ReplayError describes the first replay check that failed.
type ReplayError struct {
	Check string // action, hash or ethics
	Field string
	Diff  string
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("engine: replay %s check failed on %s:\n%s", e.Check, e.Field, e.Diff)
}

// Unwrap lets errors.Is match ErrReplayMismatch.
func (e *ReplayError) Unwrap() error {
	return ErrReplayMismatch
}

// ReplayOptions selects replay strictness.
type ReplayOptions struct {
	ValidateAction bool
	VerifyHash     bool
	ValidateEthics bool

	// History overrides the pre-decision history recorded in the trace.
	// It is cloned, never mutated. Nil uses the trace's own record.
	History *History
}

// DefaultReplayOptions checks only the selected action.
func DefaultReplayOptions() ReplayOptions {
	return ReplayOptions{ValidateAction: true}
}

// StrictReplayOptions enables every check.
func StrictReplayOptions() ReplayOptions {
	return ReplayOptions{ValidateAction: true, VerifyHash: true, ValidateEthics: true}
}

// Replay re-runs the decision recorded in t and checks the fresh result
// against it. The fresh result is returned alongside any mismatch.
func (e *Engine) Replay(t *trace.Trace, opts ReplayOptions) (*Result, error) {
	raw, ok := trace.ExtractRawState(t)
	if !ok {
		return nil, ErrMissingRawState
	}

	h := opts.History.Clone()
	if h == nil {
		h = historyFromTrace(t.History)
	}
	res, err := e.Decide(model.RawState(raw), h)
	if err != nil {
		return nil, err
	}

	if opts.ValidateAction {
		if orig, ok := trace.ExtractAction(t); ok && orig != res.Action {
			return res, &ReplayError{Check: "action", Field: "action", Diff: cmp.Diff(orig, res.Action)}
		}
	}

	if opts.VerifyHash {
		orig, err := trace.Hash(t)
		if err != nil {
			return res, fmt.Errorf("engine: hash original trace: %w", err)
		}
		if orig != res.TraceHash {
			return res, &ReplayError{Check: "hash", Field: "trace_hash", Diff: cmp.Diff(orig, res.TraceHash)}
		}
	}

	if opts.ValidateEthics {
		if err := compareEthics(t, res.Trace); err != nil {
			return res, err
		}
	}

	e.log.Debug("replay ok")
	return res, nil
}

// ReplayDocument validates data against the trace schema, parses it and
// replays it.
func (e *Engine) ReplayDocument(data []byte, opts ReplayOptions) (*Result, error) {
	if err := trace.ValidateSchema(data); err != nil {
		return nil, err
	}
	t, err := trace.Parse(data)
	if err != nil {
		return nil, err
	}
	return e.Replay(t, opts)
}

var selectionChecks = []string{
	"action",
	"override",
	"scores",
	"confidence",
	"constraint_margin",
	"confidence_gradient",
	"uncertainty",
	"escalation",
	"soft_safe_applied",
}

// compareEthics compares the selection and fail-safe records of two
// traces. Fields missing from either side are skipped.
func compareEthics(orig, fresh *trace.Trace) error {
	approx := cmpopts.EquateApprox(0, FloatTolerance)

	origSel, ok1 := trace.ExtractSelection(orig)
	freshSel, ok2 := trace.ExtractSelection(fresh)
	if ok1 && ok2 {
		for _, key := range selectionChecks {
			ov, inOrig := origSel[key]
			nv, inFresh := freshSel[key]
			if !inOrig || !inFresh {
				continue
			}
			if d := cmp.Diff(normalize(ov), normalize(nv), approx); d != "" {
				return &ReplayError{Check: "ethics", Field: "selection." + key, Diff: d}
			}
		}
	}

	of, ok1 := trace.ExtractFailSafe(orig)
	nf, ok2 := trace.ExtractFailSafe(fresh)
	if ok1 && ok2 {
		if d := cmp.Diff(normalize(of["override"]), normalize(nf["override"])); d != "" {
			return &ReplayError{Check: "ethics", Field: "fail_safe.override", Diff: d}
		}
	}
	return nil
}

// normalize turns json.Number into float64 so tolerant comparison applies.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return string(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = normalize(x[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalize(val)
		}
		return out
	default:
		return v
	}
}
