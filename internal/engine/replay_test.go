package engine

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/amiengine/internal/drift"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/policy"
	"github.com/ppiankov/amiengine/internal/profile"
	"github.com/ppiankov/amiengine/internal/trace"
)

// roundTrip serializes and re-parses a trace the way a stored trace is read.
func roundTrip(t *testing.T, tr *trace.Trace) *trace.Trace {
	t.Helper()
	data, err := json.Marshal(tr)
	require.NoError(t, err)
	parsed, err := trace.Parse(data)
	require.NoError(t, err)
	return parsed
}

func selectionData(t *testing.T, tr *trace.Trace) map[string]any {
	t.Helper()
	for _, s := range tr.Steps {
		if s.EventType == trace.EventSelection {
			m, ok := s.Data.(map[string]any)
			require.True(t, ok)
			return m
		}
	}
	t.Fatal("no selection step")
	return nil
}

func TestReplayRoundTrip(t *testing.T) {
	for _, name := range []string{"", "scenario_test", "production_safe"} {
		t.Run(name, func(t *testing.T) {
			e := newEngine(t, name)
			orig, err := e.Decide(fairState(), nil)
			require.NoError(t, err)

			res, err := e.Replay(roundTrip(t, orig.Trace), StrictReplayOptions())
			require.NoError(t, err)
			assert.Equal(t, orig.Action, res.Action)
			assert.Equal(t, orig.TraceHash, res.TraceHash)
		})
	}
}

func TestReplayStreamDecision(t *testing.T) {
	e := newEngine(t, "scenario_test")
	h := &History{Hysteresis: true}
	var results []*Result
	for i := 0; i < 3; i++ {
		res, err := e.Decide(fairState(), h)
		require.NoError(t, err)
		results = append(results, res)
	}

	first := results[0].Trace.History
	require.NotNil(t, first)
	assert.Empty(t, first.CUSHistory)
	assert.Nil(t, first.PreviousLevel)

	last := results[2]
	require.NotNil(t, last.Trace.History)
	assert.Len(t, last.Trace.History.CUSHistory, 2)
	assert.True(t, last.Trace.History.Hysteresis)
	require.NotNil(t, last.Trace.History.PreviousLevel)
	assert.Equal(t, results[1].Escalation, *last.Trace.History.PreviousLevel)

	res, err := e.Replay(roundTrip(t, last.Trace), StrictReplayOptions())
	require.NoError(t, err)
	assert.Equal(t, last.Action, res.Action)
	assert.Equal(t, last.TraceHash, res.TraceHash)
	assert.Equal(t, 3, h.CUS.Len(), "replay must not advance the caller's stream")

	data, err := json.Marshal(last.Trace)
	require.NoError(t, err)
	res, err = e.ReplayDocument(data, StrictReplayOptions())
	require.NoError(t, err)
	assert.Equal(t, last.TraceHash, res.TraceHash)
}

func TestReplayDriftEscalatedDecision(t *testing.T) {
	cfg, err := profile.Resolve("scenario_test", policy.DefaultConfig())
	require.NoError(t, err)
	cfg.Escalation.ASSoftThreshold = 0
	cfg.Drift.MeanThreshold = 0
	e, err := New(cfg)
	require.NoError(t, err)

	orig, err := e.Decide(fairState(), &History{})
	require.NoError(t, err)
	require.True(t, orig.SoftSafeApplied)

	for _, opts := range []ReplayOptions{DefaultReplayOptions(), StrictReplayOptions()} {
		res, err := e.Replay(roundTrip(t, orig.Trace), opts)
		require.NoError(t, err)
		assert.Equal(t, orig.Action, res.Action)
	}

	// An explicit history replaces the recorded one: the same state decided
	// outside a stream replays into the drift escalation and mismatches.
	single, err := e.Decide(fairState(), nil)
	require.NoError(t, err)
	require.False(t, single.SoftSafeApplied)
	opts := DefaultReplayOptions()
	opts.History = &History{CUS: drift.Window{Values: []float64{}}}
	res, err := e.Replay(roundTrip(t, single.Trace), opts)
	assert.ErrorIs(t, err, ErrReplayMismatch)
	require.NotNil(t, res)
	assert.True(t, res.SoftSafeApplied)
}

func TestReplaySingleDecisionHasNoHistory(t *testing.T) {
	orig, err := newEngine(t, "").Decide(highRisk(), nil)
	require.NoError(t, err)
	assert.Nil(t, orig.Trace.History)
	assert.Nil(t, roundTrip(t, orig.Trace).History)
}

func TestReplayInMemoryTrace(t *testing.T) {
	e := newEngine(t, "")
	orig, err := e.Decide(highRisk(), nil)
	require.NoError(t, err)
	res, err := e.Replay(orig.Trace, StrictReplayOptions())
	require.NoError(t, err)
	assert.Equal(t, orig.TraceHash, res.TraceHash)
}

func TestReplayDocument(t *testing.T) {
	e := newEngine(t, "scenario_test")
	orig, err := e.Decide(fairState(), nil)
	require.NoError(t, err)
	data, err := json.MarshalIndent(orig.Trace, "", "  ")
	require.NoError(t, err)

	res, err := e.ReplayDocument(data, StrictReplayOptions())
	require.NoError(t, err)
	assert.Equal(t, orig.TraceHash, res.TraceHash)

	_, err = e.ReplayDocument([]byte(`{"version":"1.0"}`), DefaultReplayOptions())
	assert.Error(t, err)
}

func TestReplayMissingRawState(t *testing.T) {
	e := newEngine(t, "")
	orig, err := e.Decide(highRisk(), nil)
	require.NoError(t, err)

	tr := roundTrip(t, orig.Trace)
	tr.Steps = tr.Steps[1:]
	_, err = e.Replay(tr, DefaultReplayOptions())
	assert.ErrorIs(t, err, ErrMissingRawState)
}

func TestReplayDetectsActionTamper(t *testing.T) {
	e := newEngine(t, "scenario_test")
	orig, err := e.Decide(fairState(), nil)
	require.NoError(t, err)

	tr := roundTrip(t, orig.Trace)
	selectionData(t, tr)["action"] = []any{json.Number("1"), json.Number("0"), json.Number("1"), json.Number("0")}

	_, err = e.Replay(tr, DefaultReplayOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReplayMismatch)
	var re *ReplayError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "action", re.Check)
	assert.NotEmpty(t, re.Diff)
}

func TestReplayDetectsHashTamper(t *testing.T) {
	e := newEngine(t, "")
	orig, err := e.Decide(highRisk(), nil)
	require.NoError(t, err)

	tr := roundTrip(t, orig.Trace)
	// Tamper with a field the action check does not look at.
	tr.Steps[1].Data = map[string]any{"x_ext": []any{}, "x_moral": []any{}}

	_, err = e.Replay(tr, DefaultReplayOptions())
	require.NoError(t, err)

	res, err := e.Replay(tr, ReplayOptions{VerifyHash: true})
	var re *ReplayError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "hash", re.Check)
	require.NotNil(t, res, "the fresh result is returned with the mismatch")
	assert.Equal(t, orig.TraceHash, res.TraceHash)
}

func TestReplayEthicsTolerance(t *testing.T) {
	e := newEngine(t, "scenario_test")
	orig, err := e.Decide(fairState(), nil)
	require.NoError(t, err)
	conf := orig.Confidence

	tr := roundTrip(t, orig.Trace)
	sel := selectionData(t, tr)
	sel["confidence"] = conf + 1e-12
	_, err = e.Replay(tr, ReplayOptions{ValidateEthics: true})
	require.NoError(t, err, "differences within tolerance pass")

	sel["confidence"] = conf + 1e-6
	_, err = e.Replay(tr, ReplayOptions{ValidateEthics: true})
	var re *ReplayError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "ethics", re.Check)
	assert.Equal(t, "selection.confidence", re.Field)
}

func TestReplayEthicsUncertaintyAndFlags(t *testing.T) {
	e := newEngine(t, "scenario_test")
	orig, err := e.Decide(fairState(), nil)
	require.NoError(t, err)

	cases := []struct {
		field  string
		mutate func(sel map[string]any, tr *trace.Trace)
	}{
		{"selection.uncertainty", func(sel map[string]any, _ *trace.Trace) {
			u := sel["uncertainty"].(map[string]any)
			u["cus"] = json.Number("0.5")
		}},
		{"selection.escalation", func(sel map[string]any, _ *trace.Trace) {
			sel["escalation"] = json.Number("2")
		}},
		{"selection.soft_safe_applied", func(sel map[string]any, _ *trace.Trace) {
			sel["soft_safe_applied"] = false
		}},
		{"fail_safe.override", func(_ map[string]any, tr *trace.Trace) {
			s, _ := tr.Find(trace.StepFailSafe, trace.EventFailSafe)
			s.Data.(map[string]any)["override"] = true
		}},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			tr := roundTrip(t, orig.Trace)
			tc.mutate(selectionData(t, tr), tr)
			_, err := e.Replay(tr, ReplayOptions{ValidateEthics: true})
			var re *ReplayError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tc.field, re.Field)
		})
	}
}

func TestReplayLegacyTrace(t *testing.T) {
	e := newEngine(t, "")
	orig, err := e.Decide(highRisk(), nil)
	require.NoError(t, err)

	legacy := &trace.Trace{Steps: orig.Trace.Steps, Legacy: true}
	tr := roundTrip(t, legacy)
	require.True(t, tr.Legacy)

	res, err := e.Replay(tr, ReplayOptions{ValidateAction: true, ValidateEthics: true})
	require.NoError(t, err)
	assert.Equal(t, model.SafeAction, res.Action)

	_, err = e.Replay(tr, ReplayOptions{VerifyHash: true})
	assert.ErrorIs(t, err, ErrReplayMismatch, "a legacy trace hashes as a bare array")
}

func TestReplayWithHistorySnapshot(t *testing.T) {
	e := newEngine(t, "scenario_test")
	h := &History{}
	_, err := e.Decide(highRisk(), h)
	require.NoError(t, err)

	before := h.Clone()
	orig, err := e.Decide(fairState(), h)
	require.NoError(t, err)

	opts := StrictReplayOptions()
	opts.History = before
	res, err := e.Replay(roundTrip(t, orig.Trace), opts)
	require.NoError(t, err)
	assert.Equal(t, orig.TraceHash, res.TraceHash)
	assert.Equal(t, 1, before.CUS.Len(), "replay must not mutate the supplied history")

	// Without the snapshot the drift record differs.
	_, err = e.Replay(roundTrip(t, orig.Trace), StrictReplayOptions())
	assert.ErrorIs(t, err, ErrReplayMismatch)
}

func TestHistoryClone(t *testing.T) {
	assert.Nil(t, (*History)(nil).Clone())

	lvl := model.LevelSoftSafe
	h := &History{Hysteresis: true, PreviousLevel: &lvl}
	h.CUS.Values = []float64{0.1, 0.2}
	c := h.Clone()
	c.CUS.Values[0] = 0.9
	*c.PreviousLevel = model.LevelNormal
	assert.Equal(t, 0.1, h.CUS.Values[0])
	assert.Equal(t, model.LevelSoftSafe, *h.PreviousLevel)
	assert.True(t, c.Hysteresis)
}
