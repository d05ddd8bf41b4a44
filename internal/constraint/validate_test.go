package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/policy"
)

func TestValidatePasses(t *testing.T) {
	th := policy.DefaultConfig().Thresholds
	r := Validate(model.Scores{W: 0.9, J: 0.9, H: 0.1, C: 0.5}, th)
	assert.True(t, r.Valid)
	assert.NotNil(t, r.Violations)
	assert.Empty(t, r.Violations)
}

func TestValidateBoundariesInclusive(t *testing.T) {
	th := policy.DefaultConfig().Thresholds
	r := Validate(model.Scores{J: th.JMin, H: th.HMax, C: th.CMin}, th)
	assert.True(t, r.Valid, "thresholds are inclusive: %v", r.Violations)
	r = Validate(model.Scores{J: th.JMin, H: th.HMax, C: th.CMax}, th)
	assert.True(t, r.Valid)
}

func TestValidateReportsAllViolations(t *testing.T) {
	th := policy.DefaultConfig().Thresholds
	r := Validate(model.Scores{J: 0.5, H: 0.9, C: 0.9}, th)
	assert.False(t, r.Valid)
	assert.Equal(t, []model.Violation{
		model.ViolationJBelowMin,
		model.ViolationHAboveMax,
		model.ViolationCOutOfBand,
	}, r.Violations)
}

func TestValidateSingleViolation(t *testing.T) {
	th := policy.DefaultConfig().Thresholds
	r := Validate(model.Scores{J: 0.9, H: 0.1, C: 0.2}, th)
	assert.False(t, r.Valid)
	assert.Equal(t, []model.Violation{model.ViolationCOutOfBand}, r.Violations)
}

func TestMargin(t *testing.T) {
	th := policy.DefaultConfig().Thresholds
	// J-JMin = -0.25 dominates
	assert.InDelta(t, -0.25, Margin(model.Scores{W: 0.739, J: 0.6, H: 0, C: 0.28495789429901025}, th), 1e-12)
	// C band: min(0.5-0.35, 0.75-0.5) = 0.15; J: 0.05; H: 0.2
	assert.InDelta(t, 0.05, Margin(model.Scores{J: 0.9, H: 0.1, C: 0.5}, th), 1e-12)
}
