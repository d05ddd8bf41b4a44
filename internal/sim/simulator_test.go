package sim

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ppiankov/amiengine/internal/audit"
	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/policy"
	"github.com/ppiankov/amiengine/internal/profile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fairState() model.RawState {
	return model.RawState{
		"physical": 0.5, "social": 0.5, "context": 0.5, "risk": 0.5,
		"compassion": 0.5, "justice": 0.9, "harm_sens": 0.5, "responsibility": 0.5, "empathy": 0.5,
	}
}

func highRisk() model.RawState {
	return model.RawState{
		"physical": 0.95, "social": 0.9, "context": 0.8, "risk": 0.95,
		"compassion": 0.2, "justice": 0.5, "harm_sens": 0.9, "responsibility": 0.3, "empathy": 0.2,
	}
}

func resolve(t testing.TB, name string) *policy.Config {
	t.Helper()
	cfg, err := profile.Resolve(name, policy.DefaultConfig())
	require.NoError(t, err)
	return cfg
}

type logged struct {
	runID string
	raw   model.RawState
}

// writeDecisionLog decides every state under cfg and records it.
func writeDecisionLog(t *testing.T, cfg *policy.Config, entries []logged) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	l, err := audit.Open(path)
	require.NoError(t, err)
	defer l.Close()

	eng, err := engine.New(cfg)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 14, 0, 12, 0, time.UTC)
	for i, e := range entries {
		res, err := eng.Decide(e.raw, nil)
		require.NoError(t, err)
		rec := audit.NewRecord(res, e.raw, audit.RecordOptions{
			RunID: e.runID,
			Now:   now.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, l.Record(rec))
	}
	return path
}

func TestSimulateIdenticalConfigZeroChanges(t *testing.T) {
	cfg := policy.DefaultConfig()
	path := writeDecisionLog(t, cfg, []logged{
		{"run-1", fairState()},
		{"run-1", highRisk()},
	})

	result, err := Simulate(path, cfg, Options{Label: "defaults"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalDecisions)
	assert.Equal(t, 0, result.ChangedDecisions)
	assert.Empty(t, result.Changes)
	assert.Equal(t, "defaults", result.Label)
}

func TestSimulateLooserConfigRelaxes(t *testing.T) {
	// Default thresholds fail-safe everything; scenario_test soft-clamps
	// the fair state instead.
	path := writeDecisionLog(t, policy.DefaultConfig(), []logged{{"run-1", fairState()}})

	result, err := Simulate(path, resolve(t, "scenario_test"), Options{})
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, 1, result.ChangedDecisions)
	assert.Equal(t, 1, result.NewlyRelaxed)
	assert.Equal(t, 0, result.NewlyEscalated)

	d := result.Changes[0]
	assert.Equal(t, "2026-03-01T14:00:12.000Z", d.Timestamp)
	assert.Equal(t, "run-1", d.RunID)
	assert.Equal(t, model.LevelHardFailSafe, d.OldLevel)
	assert.Equal(t, model.LevelSoftSafe, d.NewLevel)
	assert.Equal(t, model.ReasonFailSafe, d.OldReason)
	assert.Equal(t, model.ReasonMaxScore, d.NewReason)
	assert.Equal(t, model.SafeAction, d.OldAction)
	assert.InDelta(t, 0.28860035122584865, d.NewAction[model.Intervention], 1e-9)
	assert.True(t, d.OldHuman)
	assert.False(t, d.NewHuman)
}

func TestSimulateStricterConfigEscalates(t *testing.T) {
	path := writeDecisionLog(t, resolve(t, "scenario_test"), []logged{{"run-1", fairState()}})

	result, err := Simulate(path, policy.DefaultConfig(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewlyEscalated)
	assert.Equal(t, 0, result.NewlyRelaxed)
}

func TestSimulateSkipsRecordsWithoutRawState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	l, err := audit.Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(audit.DecisionRecord{
		Timestamp:   "2026-03-01T14:00:12.000Z",
		RunID:       "run-1",
		FinalAction: model.SafeAction,
		Reason:      model.ReasonFailSafe,
	}))
	require.NoError(t, l.Close())

	result, err := Simulate(path, policy.DefaultConfig(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalDecisions)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.ChangedDecisions)
}

func TestSimulateWithHistoryMatchesStatelessOnFailSafe(t *testing.T) {
	cfg := policy.DefaultConfig()
	path := writeDecisionLog(t, cfg, []logged{
		{"run-1", fairState()},
		{"run-2", highRisk()},
		{"run-1", highRisk()},
	})

	result, err := Simulate(path, cfg, Options{WithHistory: true})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalDecisions)
	// Every default decision is a fail-safe at level 2; drift cannot raise it.
	assert.Equal(t, 0, result.ChangedDecisions)
}

func TestReadAndGroupKeepsFirstAppearanceOrder(t *testing.T) {
	cfg := policy.DefaultConfig()
	path := writeDecisionLog(t, cfg, []logged{
		{"run-b", fairState()},
		{"run-a", fairState()},
		{"run-b", highRisk()},
	})

	order, groups, err := readAndGroup(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-b", "run-a"}, order)
	assert.Len(t, groups["run-b"], 2)
	assert.Len(t, groups["run-a"], 1)
}

func TestSimulateEmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	result, err := Simulate(path, policy.DefaultConfig(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalDecisions)
	assert.Contains(t, FormatText(result), "No changes detected.")
}

func TestSimulateErrors(t *testing.T) {
	_, err := Simulate(filepath.Join(t.TempDir(), "missing.jsonl"), policy.DefaultConfig(), Options{})
	assert.Error(t, err)

	bad := policy.DefaultConfig()
	bad.Grid = nil
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	_, err = Simulate(path, bad, Options{})
	assert.Error(t, err)
}

func TestFormatTextListsChanges(t *testing.T) {
	path := writeDecisionLog(t, policy.DefaultConfig(), []logged{{"run-1", fairState()}})
	result, err := Simulate(path, resolve(t, "scenario_test"), Options{Label: "scenario_test"})
	require.NoError(t, err)

	out := FormatText(result)
	assert.Contains(t, out, "Simulating scenario_test against 1 recorded decisions")
	assert.Contains(t, out, "CHANGED  14:00:12")
	assert.Contains(t, out, "human true → false")
	assert.Contains(t, out, "1 of 1 decisions changed. 0 newly escalated, 1 newly relaxed.")

	js, err := FormatJSON(result)
	require.NoError(t, err)
	assert.True(t, strings.Contains(js, `"new_reason": "max_score"`))
}
