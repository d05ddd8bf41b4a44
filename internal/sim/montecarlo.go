package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/amiengine/internal/action"
	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/metrics"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/numeric"
)

// HistogramBins is the bin count of unit-interval histograms.
const HistogramBins = 10

// MonteCarloConfig controls a random-state batch.
type MonteCarloConfig struct {
	N       int
	Seed    uint64
	Workers int // <= 0 uses GOMAXPROCS

	// Metrics, when set, observes every decision.
	Metrics *metrics.DecisionMetrics
}

// Stat is a mean and population standard deviation over Count values.
type Stat struct {
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Count int     `json:"count"`
}

func newStat(xs []float64) Stat {
	return Stat{Mean: numeric.Mean(xs), Std: numeric.PopStd(xs), Count: len(xs)}
}

// MonteCarloReport aggregates a batch of stateless decisions.
type MonteCarloReport struct {
	N                   int                `json:"n"`
	Seed                uint64             `json:"seed"`
	FailSafe            int                `json:"fail_safe"`
	FailSafeRate        float64            `json:"fail_safe_rate"`
	NoValidFallback     int                `json:"no_valid_fallback"`
	Levels              [3]int             `json:"levels"`
	SoftClamps          int                `json:"soft_clamps"`
	HumanEscalations    int                `json:"human_escalations"`
	W                   Stat               `json:"W"`
	J                   Stat               `json:"J"`
	H                   Stat               `json:"H"`
	C                   Stat               `json:"C"`
	Confidence          Stat               `json:"confidence"`
	CUS                 Stat               `json:"cus"`
	Divergence          Stat               `json:"divergence"`
	ClampDistortion     Stat               `json:"clamp_distortion"`
	DeltaConfidence     Stat               `json:"delta_confidence"`
	ConfidenceHistogram [HistogramBins]int `json:"confidence_histogram"`
	CUSHistogram        [HistogramBins]int `json:"cus_histogram"`
}

// RandomStates returns n raw states with every field drawn from U(0,1).
// The same seed always yields the same states.
func RandomStates(n int, seed uint64) []model.RawState {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	fields := append(model.ExternalFields[:], model.MoralFields[:]...)
	states := make([]model.RawState, n)
	for i := range states {
		raw := make(model.RawState, len(fields))
		for _, f := range fields {
			raw[f] = rng.Float64()
		}
		states[i] = raw
	}
	return states
}

// MonteCarlo decides cfg.N random states on eng and aggregates the outcomes.
// States are generated up front so the report does not depend on Workers.
func MonteCarlo(ctx context.Context, eng *engine.Engine, cfg MonteCarloConfig) (*MonteCarloReport, error) {
	if cfg.N < 0 {
		return nil, fmt.Errorf("sim: negative sample count %d", cfg.N)
	}
	results, err := decideAll(ctx, eng, RandomStates(cfg.N, cfg.Seed), cfg.Workers)
	if err != nil {
		return nil, err
	}
	if cfg.Metrics != nil {
		for _, res := range results {
			cfg.Metrics.Observe(res)
		}
	}
	r := Aggregate(results)
	r.Seed = cfg.Seed
	return r, nil
}

// decideAll runs stateless decisions with at most workers in flight and
// returns results in input order.
func decideAll(ctx context.Context, eng *engine.Engine, states []model.RawState, workers int) ([]*engine.Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]*engine.Result, len(states))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, raw := range states {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := eng.Decide(raw, nil)
			if err != nil {
				return fmt.Errorf("sim: decide state %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Aggregate summarizes decision results.
func Aggregate(results []*engine.Result) *MonteCarloReport {
	r := &MonteCarloReport{N: len(results)}
	var w, j, h, c, conf, cus, div, distortion, deltaConf []float64

	for _, res := range results {
		switch res.Reason {
		case model.ReasonFailSafe:
			r.FailSafe++
		case model.ReasonNoValidFallback:
			r.NoValidFallback++
		}
		if res.Escalation.Valid() {
			r.Levels[res.Escalation]++
		}
		if res.HumanEscalation {
			r.HumanEscalations++
		}
		if res.SoftSafeApplied {
			r.SoftClamps++
			distortion = append(distortion, action.Distortion(res.RawAction, res.Action))
		}
		if res.SelfRegulation != nil {
			deltaConf = append(deltaConf, res.SelfRegulation.DeltaConfidence)
		}
		w = append(w, res.Scores.W)
		j = append(j, res.Scores.J)
		h = append(h, res.Scores.H)
		c = append(c, res.Scores.C)
		conf = append(conf, res.Confidence)
		cus = append(cus, res.Uncertainty.CUS)
		div = append(div, res.Uncertainty.Divergence)
		r.ConfidenceHistogram[bin(res.Confidence)]++
		r.CUSHistogram[bin(res.Uncertainty.CUS)]++
	}

	if r.N > 0 {
		r.FailSafeRate = float64(r.FailSafe) / float64(r.N)
	}
	r.W, r.J, r.H, r.C = newStat(w), newStat(j), newStat(h), newStat(c)
	r.Confidence = newStat(conf)
	r.CUS = newStat(cus)
	r.Divergence = newStat(div)
	r.ClampDistortion = newStat(distortion)
	r.DeltaConfidence = newStat(deltaConf)
	return r
}

// bin maps a unit-interval value to a histogram bin; 1 falls in the last.
func bin(v float64) int {
	i := int(numeric.Clamp01(v) * HistogramBins)
	if i >= HistogramBins {
		i = HistogramBins - 1
	}
	return i
}
