// Package uncertainty combines hesitation, decision entropy and action
// spread into a single bounded uncertainty score.
package uncertainty

import (
	"math"
	"sort"

	"github.com/ppiankov/amiengine/internal/numeric"
	"github.com/ppiankov/amiengine/internal/policy"
)

// Result bundles every uncertainty signal. JSON keys are trace keys.
type Result struct {
	HI         float64 `json:"hi"`
	DE         float64 `json:"de"`
	DENorm     float64 `json:"de_norm"`
	AS         float64 `json:"as_"`
	ASNorm     float64 `json:"as_norm"`
	CUS        float64 `json:"cus"`
	Divergence float64 `json:"divergence"`
}

// HesitationIndex is (1-conf)·(1+sigmoid(-k·margin))/2, in [0,1].
func HesitationIndex(confidence, margin, k float64) float64 {
	base := 1 - numeric.Clamp01(confidence)
	return base * (1 + numeric.Sigmoid(-k*margin)) / 2
}

// DecisionEntropy returns the Shannon entropy of softmax(scores/temperature)
// and its normalization by ln(N). Fewer than two scores yield (0, 0).
func DecisionEntropy(scores []float64, temperature float64) (de, deNorm float64) {
	if len(scores) < 2 {
		return 0, 0
	}
	t := max(temperature, 1e-12)
	m := math.Inf(-1)
	for _, s := range scores {
		m = max(m, s/t)
	}
	exps := make([]float64, len(scores))
	var z float64
	for i, s := range scores {
		exps[i] = math.Exp(s/t - m)
		z += exps[i]
	}
	if !(z > 0) {
		return 0, 0
	}
	for _, e := range exps {
		if p := e / z; p > 0 {
			de -= p * math.Log(p)
		}
	}
	deNorm = numeric.Clamp01(de / math.Log(float64(len(scores))))
	return de, deNorm
}

// ActionSpread returns best minus second-best score and 1-exp(-λ·spread).
// Fewer than two scores yield (0, 0).
func ActionSpread(scores []float64, lambda float64) (spread, norm float64) {
	if len(scores) < 2 {
		return 0, 0
	}
	sorted := append([]float64(nil), scores...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	spread = max(0, sorted[0]-sorted[1])
	return spread, numeric.Clamp01(1 - math.Exp(-lambda*spread))
}

// Combined is the weighted CUS blend, clamped to [0,1].
func Combined(hi, deNorm, asNorm float64, w policy.CUSWeights) float64 {
	return numeric.Clamp01(w.HI*hi + w.DE*deNorm + w.AS*(1-asNorm))
}

// Divergence is |confidence - (1 - deNorm)|.
func Divergence(confidence, deNorm float64) float64 {
	return math.Abs(confidence - (1 - deNorm))
}

// Compute evaluates every signal. scores are the composite scores of all
// generated candidates, in generation order.
func Compute(confidence, margin float64, scores []float64, p policy.Uncertainty) Result {
	hi := HesitationIndex(confidence, margin, p.MarginK)
	de, deNorm := DecisionEntropy(scores, 1)
	as, asNorm := ActionSpread(scores, p.ASLambda)
	return Result{
		HI:         hi,
		DE:         de,
		DENorm:     deNorm,
		AS:         as,
		ASNorm:     asNorm,
		CUS:        Combined(hi, deNorm, asNorm, p.CUSWeights),
		Divergence: Divergence(confidence, deNorm),
	}
}
