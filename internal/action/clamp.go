package action

import (
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/numeric"
)

// Coefficients of the soft clamp.
type Coefficients struct {
	Alpha float64 // severity shrink
	Beta  float64 // intervention shrink
	Gamma float64 // delay growth
}

// SoftClamp shapes a toward the safe region in proportion to cus.
// Compassion is left unchanged. CUS is bounded to [0,1] first and every
// reshaped component is bounded to [0,1]. With cus == 0
// an in-range action is returned unchanged.
func SoftClamp(a model.Action, cus float64, k Coefficients) model.Action {
	cus = numeric.Clamp01(cus)
	return model.Action{
		numeric.Clamp01(a[model.Severity] * (1 - k.Alpha*cus)),
		a[model.Compassion],
		numeric.Clamp01(a[model.Intervention] * (1 - k.Beta*cus)),
		numeric.Clamp01(a[model.Delay] + k.Gamma*cus),
	}
}

// Distortion is the L1 distance between the raw and the clamped action.
func Distortion(raw, clamped model.Action) float64 {
	var d float64
	for i := range raw {
		x := raw[i] - clamped[i]
		if x < 0 {
			x = -x
		}
		d += x
	}
	return d
}
