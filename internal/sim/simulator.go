package sim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ppiankov/amiengine/internal/audit"
	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/policy"
)

// actionTolerance is the per-component tolerance when comparing actions.
const actionTolerance = 1e-9

// Options tune Simulate.
type Options struct {
	// Label names the alternate configuration in the output.
	Label string
	// WithHistory re-runs each run ID as one decision stream so temporal
	// drift accumulates the way it did when the log was written.
	WithHistory bool
}

// Simulate re-runs the raw states recorded in a decision log under cfg and
// returns the decisions that changed. Records are grouped by run ID and
// replayed in log order. Records without a raw state are counted as skipped.
func Simulate(logPath string, cfg *policy.Config, opts Options) (*SimResult, error) {
	eng, err := engine.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}

	runOrder, runRecords, err := readAndGroup(logPath)
	if err != nil {
		return nil, err
	}

	result := &SimResult{Label: opts.Label}

	for _, runID := range runOrder {
		var h *engine.History
		if opts.WithHistory {
			h = &engine.History{}
		}

		for _, rec := range runRecords[runID] {
			result.TotalDecisions++
			if rec.RawState == nil {
				result.Skipped++
				continue
			}

			res, err := eng.Decide(model.RawState(rec.RawState), h)
			if err != nil {
				return nil, fmt.Errorf("sim: decide %s: %w", rec.TraceHash, err)
			}

			if !changed(rec, res) {
				continue
			}
			diff := DiffEntry{
				Timestamp: rec.Timestamp,
				RunID:     rec.RunID,
				OldLevel:  rec.Level,
				NewLevel:  res.Escalation,
				OldReason: rec.Reason,
				NewReason: res.Reason,
				OldAction: rec.FinalAction,
				NewAction: res.Action,
				OldHuman:  rec.HumanEscalation,
				NewHuman:  res.HumanEscalation,
			}
			result.Changes = append(result.Changes, diff)
			result.ChangedDecisions++

			if diff.escalated() {
				result.NewlyEscalated++
			}
			if diff.relaxed() {
				result.NewlyRelaxed++
			}
		}
	}

	return result, nil
}

func changed(rec audit.DecisionRecord, res *engine.Result) bool {
	if rec.Level != res.Escalation || rec.Reason != res.Reason || rec.HumanEscalation != res.HumanEscalation {
		return true
	}
	return !sameAction(rec.FinalAction, res.Action)
}

func sameAction(a, b model.Action) bool {
	for i := range a {
		d := a[i] - b[i]
		if d > actionTolerance || d < -actionTolerance {
			return false
		}
	}
	return true
}

// readAndGroup reads the decision log and groups records by run ID.
// Returns run IDs in order of first appearance and the records per run.
func readAndGroup(logPath string) ([]string, map[string][]audit.DecisionRecord, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open decision log: %w", err)
	}
	defer f.Close()

	var runOrder []string
	runRecords := make(map[string][]audit.DecisionRecord)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var rec audit.DecisionRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}

		if _, seen := runRecords[rec.RunID]; !seen {
			runOrder = append(runOrder, rec.RunID)
		}
		runRecords[rec.RunID] = append(runRecords[rec.RunID], rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read decision log: %w", err)
	}

	return runOrder, runRecords, nil
}
