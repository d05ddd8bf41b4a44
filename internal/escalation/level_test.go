package escalation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/policy"
)

func ptr[T any](v T) *T { return &v }

func defaults() Thresholds {
	return ThresholdsFrom(policy.DefaultConfig())
}

func TestComputeBaseLevels(t *testing.T) {
	th := defaults()
	cases := []struct {
		name string
		in   Input
		want model.Level
	}{
		{"low confidence", Input{Confidence: 0.1, ConstraintMargin: 0.2, HCritical: 0.6}, model.LevelHardFailSafe},
		{"critical harm", Input{Confidence: 0.9, ConstraintMargin: 0.2, WorstH: 0.7, HCritical: 0.6}, model.LevelHardFailSafe},
		{"divergence", Input{Confidence: 0.9, ConstraintMargin: 0.2, HCritical: 0.6, Divergence: ptr(0.51)}, model.LevelHardFailSafe},
		{"divergence at threshold", Input{Confidence: 0.9, ConstraintMargin: 0.2, HCritical: 0.6, Divergence: ptr(0.5)}, model.LevelNormal},
		{"negative margin", Input{Confidence: 0.9, ConstraintMargin: -0.01, HCritical: 0.6}, model.LevelSoftSafe},
		{"narrow spread", Input{Confidence: 0.9, ConstraintMargin: 0.2, HCritical: 0.6, ASNorm: ptr(0.1)}, model.LevelSoftSafe},
		{"normal", Input{Confidence: 0.9, ConstraintMargin: 0.2, HCritical: 0.6, ASNorm: ptr(0.5), Divergence: ptr(0.1)}, model.LevelNormal},
		{"optional signals absent", Input{Confidence: 0.5, ConstraintMargin: 0, HCritical: 0.6}, model.LevelNormal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Compute(tc.in, th, nil))
		})
	}
}

func TestHysteresisHardToSoft(t *testing.T) {
	th := defaults()
	prev := ptr(model.LevelHardFailSafe)

	// confidence just above force but inside the hysteresis band
	in := Input{Confidence: 0.21, ConstraintMargin: -0.1, HCritical: 0.6}
	assert.Equal(t, model.LevelHardFailSafe, Compute(in, th, prev))

	// 0.2+0.02 is not exactly 0.22 in float64
	in.Confidence = 0.23
	assert.Equal(t, model.LevelSoftSafe, Compute(in, th, prev))
}

func TestHysteresisHardToNormal(t *testing.T) {
	th := defaults()
	prev := ptr(model.LevelHardFailSafe)

	// recovered confidence but margin inside the band -> soft
	in := Input{Confidence: 0.9, ConstraintMargin: 0.01, HCritical: 0.6}
	assert.Equal(t, model.LevelSoftSafe, Compute(in, th, prev))

	// confidence in band -> soft, not hard, since it is above force
	in = Input{Confidence: 0.21, ConstraintMargin: 0.5, HCritical: 0.6}
	assert.Equal(t, model.LevelSoftSafe, Compute(in, th, prev))

	in = Input{Confidence: 0.9, ConstraintMargin: 0.05, HCritical: 0.6}
	assert.Equal(t, model.LevelNormal, Compute(in, th, prev))
}

func TestHysteresisSoftToNormal(t *testing.T) {
	th := defaults()
	prev := ptr(model.LevelSoftSafe)

	in := Input{Confidence: 0.9, ConstraintMargin: 0.01, HCritical: 0.6}
	assert.Equal(t, model.LevelSoftSafe, Compute(in, th, prev))

	in.ConstraintMargin = 0.02
	assert.Equal(t, model.LevelNormal, Compute(in, th, prev))
}

func TestHysteresisNeverBlocksUpgrade(t *testing.T) {
	th := defaults()
	in := Input{Confidence: 0.1, ConstraintMargin: 0.2, HCritical: 0.6}
	assert.Equal(t, model.LevelHardFailSafe, Compute(in, th, ptr(model.LevelNormal)))
}

func TestNilPreviousIsMemoryless(t *testing.T) {
	th := defaults()
	in := Input{Confidence: 0.9, ConstraintMargin: 0.01, HCritical: 0.6}
	assert.Equal(t, model.LevelNormal, Compute(in, th, nil))
}
