// Package policydiff compares two engine configurations field by field.
package policydiff

import (
	"slices"
	"strconv"

	"github.com/ppiankov/amiengine/internal/policy"
)

// Direction labels how a change moves the engine.
const (
	Stricter = "stricter"
	Looser   = "looser"
)

// Change represents a scalar field change.
type Change struct {
	Section string `json:"section"`
	Field   string `json:"field"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Comment string `json:"comment,omitempty"`
}

// DiffResult holds the comparison of two configs.
type DiffResult struct {
	OldLabel   string   `json:"old"`
	NewLabel   string   `json:"new"`
	Changes    []Change `json:"changes"`
	HasChanges bool     `json:"has_changes"`
}

// Counts returns the number of stricter and looser changes.
func (r *DiffResult) Counts() (stricter, looser int) {
	for _, c := range r.Changes {
		switch c.Comment {
		case Stricter:
			stricter++
		case Looser:
			looser++
		}
	}
	return stricter, looser
}

// tracked is one contract-named parameter. dir is +1 when a higher value
// escalates more often, -1 when a lower one does, 0 when neither.
type tracked struct {
	section string
	name    string
	dir     int
}

// Sections in display order.
var sections = []string{
	"thresholds", "critical", "confidence", "escalation",
	"envelope", "soft_clamp", "drift", "uncertainty",
	"weights", "compassion", "grid",
}

var trackedKeys = []tracked{
	{"thresholds", "J_MIN", +1},
	{"thresholds", "H_MAX", -1},
	{"thresholds", "C_MIN", +1},
	{"thresholds", "C_MAX", -1},
	{"critical", "J_CRITICAL", +1},
	{"critical", "H_CRITICAL", -1},
	{"confidence", "CONFIDENCE_ESCALATION_FORCE", +1},
	{"confidence", "CONFIDENCE_ESCALATION_SUGGEST", +1},
	{"confidence", "SIGMA_MAX", 0},
	{"confidence", "CONFIDENCE_MARGIN_K", 0},
	{"confidence", "CONFIDENCE_MARGIN_CLAMP", 0},
	{"escalation", "AS_SOFT_THRESHOLD", +1},
	{"escalation", "DIVERGENCE_HARD_THRESHOLD", -1},
	{"escalation", "ESCALATION_HYSTERESIS", +1},
	{"envelope", "SEVERITY_SOFT_MAX", -1},
	{"envelope", "INTERVENTION_SOFT_MAX", -1},
	{"envelope", "DELAY_SOFT_MIN", +1},
	{"soft_clamp", "SOFT_CLAMP_ALPHA", 0},
	{"soft_clamp", "SOFT_CLAMP_BETA", 0},
	{"soft_clamp", "SOFT_CLAMP_GAMMA", 0},
	{"drift", "DELTA_CUS_THRESHOLD", -1},
	{"drift", "CUS_MEAN_WINDOW", 0},
	{"drift", "CUS_MEAN_THRESHOLD", -1},
	{"uncertainty", "UNCERTAINTY_MARGIN_K", 0},
	{"uncertainty", "UNCERTAINTY_AS_LAMBDA", 0},
}

// Diff compares two configs and returns the differences, grouped by
// section in display order.
func Diff(old, new *policy.Config) *DiffResult {
	r := &DiffResult{}

	for _, k := range trackedKeys {
		o, _ := old.Get(k.name)
		n, _ := new.Get(k.name)
		diffFloat(r, k.section, k.name, o, n, k.dir)
	}

	diffFloat(r, "uncertainty", "cus_weights.hi", old.Uncertainty.CUSWeights.HI, new.Uncertainty.CUSWeights.HI, 0)
	diffFloat(r, "uncertainty", "cus_weights.de", old.Uncertainty.CUSWeights.DE, new.Uncertainty.CUSWeights.DE, 0)
	diffFloat(r, "uncertainty", "cus_weights.as", old.Uncertainty.CUSWeights.AS, new.Uncertainty.CUSWeights.AS, 0)

	diffFloat(r, "weights", "alpha", old.Weights.Alpha, new.Weights.Alpha, 0)
	diffFloat(r, "weights", "beta", old.Weights.Beta, new.Weights.Beta, 0)
	diffFloat(r, "weights", "gamma", old.Weights.Gamma, new.Weights.Gamma, 0)
	diffFloat(r, "weights", "delta", old.Weights.Delta, new.Weights.Delta, 0)

	diffFloat(r, "compassion", "empathy", old.Compassion.Empathy, new.Compassion.Empathy, 0)
	diffFloat(r, "compassion", "physical", old.Compassion.Physical, new.Compassion.Physical, 0)
	diffFloat(r, "compassion", "responsibility", old.Compassion.Responsibility, new.Compassion.Responsibility, 0)

	if !slices.Equal(old.Grid, new.Grid) {
		r.Changes = append(r.Changes, Change{
			Section: "grid",
			Field:   "grid",
			Old:     formatGrid(old.Grid),
			New:     formatGrid(new.Grid),
		})
	}
	diffFloat(r, "grid", "default_unknown", old.DefaultUnknown, new.DefaultUnknown, 0)

	slices.SortStableFunc(r.Changes, func(a, b Change) int {
		return slices.Index(sections, a.Section) - slices.Index(sections, b.Section)
	})

	r.HasChanges = len(r.Changes) > 0
	return r
}

func diffFloat(r *DiffResult, section, field string, old, new float64, dir int) {
	if old == new {
		return
	}
	r.Changes = append(r.Changes, Change{
		Section: section,
		Field:   field,
		Old:     formatFloat(old),
		New:     formatFloat(new),
		Comment: comment(old, new, dir),
	})
}

func comment(old, new float64, dir int) string {
	switch {
	case dir == 0:
		return ""
	case (new > old) == (dir > 0):
		return Stricter
	default:
		return Looser
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatGrid(g []float64) string {
	s := "["
	for i, v := range g {
		if i > 0 {
			s += " "
		}
		s += formatFloat(v)
	}
	return s + "]"
}
