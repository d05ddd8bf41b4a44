// Package drift tracks the combined uncertainty score across a sequence
// of decisions that share a caller-held history.
package drift

import (
	"github.com/ppiankov/amiengine/internal/numeric"
	"github.com/ppiankov/amiengine/internal/policy"
)

// Result of a drift check. DeltaCUS is nil until the history holds two values.
type Result struct {
	DeltaCUS             *float64 `json:"delta_cus"`
	CUSMean              float64  `json:"cus_mean"`
	PreemptiveEscalation bool     `json:"preemptive_escalation"`
}

// Update appends cus and keeps at most window most recent values.
// The input slice is not modified. window < 1 keeps everything.
func Update(history []float64, cus float64, window int) []float64 {
	out := make([]float64, 0, len(history)+1)
	out = append(out, history...)
	out = append(out, cus)
	if window > 0 && len(out) > window {
		out = append([]float64(nil), out[len(out)-window:]...)
	}
	return out
}

// Compute evaluates drift over a history that already includes cus.
func Compute(cus float64, history []float64, p policy.Drift) Result {
	mean := cus
	if len(history) > 0 {
		mean = numeric.Mean(history)
	}
	r := Result{CUSMean: mean}
	if len(history) >= 2 {
		d := cus - history[len(history)-2]
		r.DeltaCUS = &d
	}
	if r.DeltaCUS != nil && *r.DeltaCUS > p.DeltaThreshold {
		r.PreemptiveEscalation = true
	}
	if mean > p.MeanThreshold {
		r.PreemptiveEscalation = true
	}
	return r
}

// Window is a caller-owned rolling CUS history. It is not safe for
// concurrent use; one Window belongs to one decision stream.
type Window struct {
	Values []float64 `json:"cus_history"`
}

// Observe appends cus, truncates to the configured window and returns
// the drift result.
func (w *Window) Observe(cus float64, p policy.Drift) Result {
	w.Values = Update(w.Values, cus, p.Window)
	return Compute(cus, w.Values, p)
}

// Snapshot returns a copy of the current values.
func (w *Window) Snapshot() []float64 {
	return append([]float64(nil), w.Values...)
}

// Len returns the number of values held.
func (w *Window) Len() int {
	return len(w.Values)
}
