package action

import "github.com/ppiankov/amiengine/internal/model"

// Envelope is the soft-safe region of the action space.
type Envelope struct {
	SeverityMax     float64
	InterventionMax float64
	DelayMin        float64
}

// Contains reports whether a lies inside the envelope.
func (e Envelope) Contains(a model.Action) bool {
	return a[model.Severity] <= e.SeverityMax &&
		a[model.Intervention] <= e.InterventionMax &&
		a[model.Delay] >= e.DelayMin
}

// Restrict keeps the candidates inside the envelope, preserving order.
func Restrict(candidates []model.Action, e Envelope) []model.Action {
	out := make([]model.Action, 0, len(candidates))
	for _, a := range candidates {
		if e.Contains(a) {
			out = append(out, a)
		}
	}
	return out
}
