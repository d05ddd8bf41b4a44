package policy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOverridesKnownKeys(t *testing.T) {
	cfg := DefaultConfig()
	err := ApplyOverrides(cfg, map[string]float64{
		"J_MIN":                       0.65,
		"H_CRITICAL":                  0.7,
		"CONFIDENCE_ESCALATION_FORCE": 0.12,
		"SOFT_CLAMP_GAMMA":            0.4,
		"CUS_MEAN_WINDOW":             5,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.65, cfg.Thresholds.JMin)
	assert.Equal(t, 0.7, cfg.Critical.HCritical)
	assert.Equal(t, 0.12, cfg.Confidence.Force)
	assert.Equal(t, 0.4, cfg.SoftClamp.Gamma)
	assert.Equal(t, 5, cfg.Drift.Window)
	// untouched keys keep defaults
	assert.Equal(t, 0.30, cfg.Thresholds.HMax)
}

func TestApplyOverridesUnknownKey(t *testing.T) {
	cfg := DefaultConfig()
	err := ApplyOverrides(cfg, map[string]float64{"J_MNI": 0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "J_MNI")
}

func TestApplyOverridesRejectsBadWindow(t *testing.T) {
	for _, v := range []float64{0, 2.5, math.NaN()} {
		err := ApplyOverrides(DefaultConfig(), map[string]float64{"CUS_MEAN_WINDOW": v})
		assert.Error(t, err, "window %v", v)
	}
}

func TestOverridesRoundTrip(t *testing.T) {
	in := map[string]float64{"J_MIN": 0.55, "H_MAX": 0.55, "CUS_MEAN_WINDOW": 3}
	o, err := ParseOverrides(in)
	require.NoError(t, err)
	require.NotNil(t, o.JMin)
	assert.Equal(t, 0.55, *o.JMin)
	assert.Equal(t, in, o.Values())
	assert.False(t, o.IsZero())
	assert.True(t, Overrides{}.IsZero())

	cfg, err := o.Apply(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 0.55, cfg.Thresholds.JMin)
	assert.Equal(t, 3, cfg.Drift.Window)
}

func TestOverridesApplyDoesNotMutateBase(t *testing.T) {
	base := DefaultConfig()
	v := 0.1
	_, err := Overrides{JMin: &v}.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, 0.85, base.Thresholds.JMin)
}

func TestOverridesApplyValidates(t *testing.T) {
	lo, hi := 0.9, 0.2
	_, err := Overrides{CMin: &lo, CMax: &hi}.Apply(DefaultConfig())
	require.Error(t, err)
}

func TestConfigGet(t *testing.T) {
	cfg := DefaultConfig()
	for _, name := range Keys() {
		_, ok := cfg.Get(name)
		assert.True(t, ok, name)
	}
	v, ok := cfg.Get("CUS_MEAN_WINDOW")
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)
	_, ok = cfg.Get("NOPE")
	assert.False(t, ok)
}

func TestKeysSorted(t *testing.T) {
	k := Keys()
	require.Len(t, k, 25)
	for i := 1; i < len(k); i++ {
		assert.Less(t, k[i-1], k[i])
	}
}
