package engine

import (
	"github.com/ppiankov/amiengine/internal/drift"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/trace"
)

// History is the caller-held state shared by a stream of decisions.
// The engine never keeps a reference to it. A History is not safe for
// concurrent use; give each decision stream its own.
type History struct {
	CUS drift.Window `json:"cus"`

	// Hysteresis enables escalation damping against PreviousLevel.
	Hysteresis    bool         `json:"hysteresis"`
	PreviousLevel *model.Level `json:"previous_level,omitempty"`
}

// Clone returns a deep copy. Clone of nil is nil.
func (h *History) Clone() *History {
	if h == nil {
		return nil
	}
	c := &History{
		CUS:        drift.Window{Values: h.CUS.Snapshot()},
		Hysteresis: h.Hysteresis,
	}
	if h.PreviousLevel != nil {
		l := *h.PreviousLevel
		c.PreviousLevel = &l
	}
	return c
}

// record returns the snapshot a trace carries so the decision can be
// replayed without the caller's history. Record of nil is nil.
func (h *History) record() *trace.History {
	if h == nil {
		return nil
	}
	c := h.Clone()
	values := c.CUS.Values
	if values == nil {
		values = []float64{}
	}
	return &trace.History{
		CUSHistory:    values,
		Hysteresis:    c.Hysteresis,
		PreviousLevel: c.PreviousLevel,
	}
}

// historyFromTrace rebuilds the history a recorded decision started from.
func historyFromTrace(th *trace.History) *History {
	if th == nil {
		return nil
	}
	h := &History{
		CUS:        drift.Window{Values: append([]float64(nil), th.CUSHistory...)},
		Hysteresis: th.Hysteresis,
	}
	if th.PreviousLevel != nil {
		l := *th.PreviousLevel
		h.PreviousLevel = &l
	}
	return h
}
