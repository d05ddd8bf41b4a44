package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fairStateJSON = `{"physical":0.5,"social":0.5,"context":0.5,"risk":0.5,"compassion":0.5,` +
	`"justice":0.9,"harm_sens":0.5,"responsibility":0.5,"empathy":0.5}`

// execute runs the root command with args and returns combined output.
// Package-level flag variables keep their values between cobra runs, so
// every flag a test may set is reset first.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	flagConfig, flagProfile, flagVerbose = "", "", false
	decideFormat, decideAudit, decideStore, decideRunID, decideStream, decideTraceOut = "json", "", "", "", false, ""
	replayStrict, replayFormat = false, "text"
	simFormat, simWithHistory = "text", false
	mcFormat, mcMetricsOut, mcWorkers = "text", "", 0
	chaosFormat, chaosGrid, chaosWorkers = "text", "", 0
	certifySuite, certifyFormat = "safety", "text"
	testFormat, diffFormat = "text", "text"
	historyDB, verifyHash = "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "amiengine"`)
	assert.Contains(t, out, `"version": "`+version+`"`)
}

func TestDecideDefaultConfigFailsSafe(t *testing.T) {
	out, err := execute(t, fairStateJSON, "decide")
	require.NoError(t, err)
	assert.Contains(t, out, `"reason": "fail_safe"`)
	assert.Contains(t, out, `"escalation": 2`)
	assert.Contains(t, out, `"human_escalation": true`)
}

func TestDecideTextWithProfile(t *testing.T) {
	out, err := execute(t, fairStateJSON, "decide", "--profile", "scenario_test", "-f", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "reason      max_score")
	assert.Contains(t, out, "level       1 (soft-safe)")
	assert.Contains(t, out, "human       false")
	assert.Contains(t, out, "raw action")
}

func TestDecideUnknownProfile(t *testing.T) {
	_, err := execute(t, fairStateJSON, "decide", "--profile", "nope")
	assert.Error(t, err)
}

func TestDecideRejectsBadJSON(t *testing.T) {
	_, err := execute(t, "{not json", "decide")
	assert.ErrorContains(t, err, "parse state")
}

func TestDecideStream(t *testing.T) {
	input := fairStateJSON + "\n\n" + fairStateJSON + "\n" + fairStateJSON + "\n"
	out, err := execute(t, input, "decide", "--stream", "-f", "text")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "trace       sha256:"))

	_, err = execute(t, fairStateJSON+"\n{bad\n", "decide", "--stream")
	assert.ErrorContains(t, err, "line 2")
}

func TestDecideAuditAndStore(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "decisions.jsonl")
	dbPath := filepath.Join(dir, "decisions.db")

	input := fairStateJSON + "\n" + fairStateJSON + "\n"
	_, err := execute(t, input, "decide", "--stream", "--audit", logPath, "--store", dbPath, "--run-id", "run-7")
	require.NoError(t, err)

	out, err := execute(t, "", "audit", "verify", logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: 2 entries verified")

	out, err = execute(t, "", "audit", "show", logPath, "-f", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "run-7")

	out, err = execute(t, "", "history", "list", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "hard-fail-safe")
	assert.Equal(t, 3, strings.Count(out, "\n"), out)

	out, err = execute(t, "", "simulate", "--log", logPath, "--profile", "scenario_test")
	require.NoError(t, err)
	assert.Contains(t, out, "Simulating scenario_test against 2 recorded decisions")
	assert.Contains(t, out, "2 of 2 decisions changed.")
}

func TestDecideTraceOutReplays(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "trace.json")
	_, err := execute(t, fairStateJSON, "decide", "--profile", "scenario_test", "--trace-out", tracePath)
	require.NoError(t, err)

	out, err := execute(t, "", "replay", tracePath, "--profile", "scenario_test", "--strict")
	require.NoError(t, err)
	assert.Contains(t, out, "OK: replay reproduced")

	out, err = execute(t, "", "verify", tracePath)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: 88 steps, sha256:")

	_, err = execute(t, "", "verify", tracePath, "--hash", "sha256:00")
	assert.ErrorContains(t, err, "trace hash mismatch")

	// Under the default thresholds the same state fails safe instead.
	out, err = execute(t, "", "replay", tracePath)
	assert.Error(t, err)
	assert.Contains(t, out, "MISMATCH")
}

func TestDecideStreamTraceReplays(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "trace.json")
	input := strings.Repeat(fairStateJSON+"\n", 3)
	_, err := execute(t, input, "decide", "--stream", "--profile", "scenario_test", "--trace-out", tracePath)
	require.NoError(t, err)

	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cus_history":[`)
	assert.Contains(t, string(data), `"previous_level":`)

	out, err := execute(t, "", "replay", tracePath, "--profile", "scenario_test", "--strict")
	require.NoError(t, err, out)
	assert.Contains(t, out, "OK: replay reproduced")
}

func TestReplayRejectsInvalidDocument(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "trace.json")
	require.NoError(t, os.WriteFile(tracePath,
		[]byte(`{"version":"1.0","steps":[{"step":0,"event_type":"unknown","data":{}}]}`), 0o644))

	_, err := execute(t, "", "replay", tracePath)
	assert.ErrorContains(t, err, "schema")
}

func TestCertifyMinimal(t *testing.T) {
	out, err := execute(t, "", "certify", "--suite", "minimal")
	require.NoError(t, err)
	assert.Contains(t, out, "Result: PASS (10/10)")

	_, err = execute(t, "", "certify", "--suite", "nope")
	assert.Error(t, err)
}

func TestCertifyFailureReturnsError(t *testing.T) {
	out, err := execute(t, "", "certify", "--profile", "scenario_test")
	assert.Error(t, err)
	assert.Contains(t, out, "Result: FAIL")
}

func TestScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
name: default fail-safe
cases:
  - name: fair
    state: {physical: 0.5, social: 0.5, context: 0.5, risk: 0.5, compassion: 0.5, justice: 0.9, harm_sens: 0.5, responsibility: 0.5, empathy: 0.5}
    expect:
      reason: fail_safe
      level: 2
`), 0o644))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
name: wrong
cases:
  - state: {}
    expect:
      level: 0
`), 0o644))

	out, err := execute(t, "", "test", good)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS  default fail-safe (1/1)")

	out, err = execute(t, "", "test", good, bad)
	assert.ErrorContains(t, err, "1 of 2 scenarios failed")
	assert.Contains(t, out, "FAIL  wrong (0/1)")
}

func TestDiffProfiles(t *testing.T) {
	out, err := execute(t, "", "diff", "base", "scenario_test")
	require.NoError(t, err)
	assert.Contains(t, out, "Config diff: base → scenario_test")
	assert.Contains(t, out, "7 changes: 0 stricter, 7 looser.")

	out, err = execute(t, "", "profile", "diff", "base", "production_safe", "-f", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"old": "base"`)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("thresholds:\n  j_min: 0.9\n"), 0o644))
	out, err = execute(t, "", "diff", "base", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 changes: 1 stricter, 0 looser.")
}

func TestProfileCommands(t *testing.T) {
	out, err := execute(t, "", "profile", "list")
	require.NoError(t, err)
	for _, name := range []string{"base", "production_safe", "scenario_test"} {
		assert.Contains(t, out, name)
	}

	out, err = execute(t, "", "profile", "keys")
	require.NoError(t, err)
	assert.Contains(t, out, "J_MIN")
	assert.Contains(t, out, "0.85")

	out, err = execute(t, "", "profile", "show", "scenario_test")
	require.NoError(t, err)
	assert.Contains(t, out, "0.85 → 0.55")

	out, err = execute(t, "", "profile", "check", "production_safe")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	_, err = execute(t, "", "profile", "init", "../evil")
	assert.Error(t, err)
}

func TestMonteCarloWritesMetrics(t *testing.T) {
	metricsPath := filepath.Join(t.TempDir(), "metrics.prom")
	out, err := execute(t, "", "montecarlo", "-n", "25", "--seed", "3", "--metrics-out", metricsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Monte Carlo: 25 random states, seed 3")
	assert.Contains(t, out, "fail-safe          25 (100.0%)")

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "amiengine_decisions_total")
}

func TestChaosDefaultGridHolds(t *testing.T) {
	out, err := execute(t, "", "chaos", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Chaos: 64 configurations")
	assert.Contains(t, out, "All invariants held.")

	grid := filepath.Join(t.TempDir(), "grid.yaml")
	require.NoError(t, os.WriteFile(grid, []byte("J_MNI: [0.5]\n"), 0o644))
	_, err = execute(t, "", "chaos", "-n", "5", "--grid", grid)
	assert.ErrorContains(t, err, "J_MNI")
}

func TestReviewEmpty(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "", "review", "list",
		"--outbox", filepath.Join(dir, "outbox"), "--state", filepath.Join(dir, "state"))
	require.NoError(t, err)
	assert.Contains(t, out, "No decisions awaiting review.")

	_, err = execute(t, "", "review", "approve", "missing",
		"--outbox", filepath.Join(dir, "outbox"), "--state", filepath.Join(dir, "state"))
	assert.Error(t, err)
}
