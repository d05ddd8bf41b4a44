package numeric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 0.0, Clamp01(math.Inf(-1)))
	assert.Equal(t, 1.0, Clamp01(math.Inf(1)))
	assert.Equal(t, 0.3, Clamp01(0.3))
	assert.Equal(t, -1.0, Clamp(-4, -1, 1))
	assert.Equal(t, 1.0, Clamp(4, -1, 1))
}

func TestSigmoid(t *testing.T) {
	assert.Equal(t, 0.5, Sigmoid(0))
	assert.InDelta(t, 0.11920292202211755, Sigmoid(-2), 1e-15)
	assert.Equal(t, 0.0, Sigmoid(-1000))
	assert.Equal(t, 1.0, Sigmoid(1000))
}

func TestMeanAndPopStd(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, PopStd(nil))
	assert.InDelta(t, 2.5, Mean([]float64{1, 2, 3, 4}), 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), PopStd([]float64{1, 2, 3, 4}), 1e-12)
	assert.Equal(t, 0.0, PopStd([]float64{0.4, 0.4, 0.4}))
}
