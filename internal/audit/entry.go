package audit

import (
	"time"

	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/state"
)

// TimestampFormat is the layout used in record timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// DecisionRecord is one line in the hash-chained JSONL decision log.
// Optional values are pointers so absence is distinguishable from zero.
type DecisionRecord struct {
	Timestamp       string         `json:"ts"`
	RunID           string         `json:"run_id"`
	CUS             float64        `json:"cus"`
	DeltaCUS        *float64       `json:"delta_cus"`
	CUSMean         float64        `json:"cus_mean"`
	RawAction       model.Action   `json:"raw_action"`
	FinalAction     model.Action   `json:"final_action"`
	SoftClamp       bool           `json:"soft_clamp"`
	DeltaConfidence *float64       `json:"delta_confidence"`
	Level           model.Level    `json:"level"`
	Reason          model.Reason   `json:"reason"`
	Confidence      float64        `json:"confidence"`
	HumanEscalation bool           `json:"human_escalation"`
	J               float64        `json:"J"`
	H               float64        `json:"H"`
	LatencyMS       *float64       `json:"latency_ms,omitempty"`
	Profile         string         `json:"profile,omitempty"`
	TraceHash       string         `json:"trace_hash"`
	ConfigHash      string         `json:"config_hash"`
	RawState        map[string]any `json:"raw_state,omitempty"`
	PrevHash        string         `json:"prev_hash"`
}

// RecordOptions carries the context a decision result does not know.
type RecordOptions struct {
	RunID      string
	ConfigHash string
	Profile    string
	Latency    time.Duration
	Now        time.Time
}

// NewRecord flattens an engine result into a DecisionRecord. raw is
// stored as its trace snapshot so Simulate can re-run it later.
func NewRecord(res *engine.Result, raw model.RawState, opts RecordOptions) DecisionRecord {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	rec := DecisionRecord{
		Timestamp:       now.UTC().Format(TimestampFormat),
		RunID:           opts.RunID,
		CUS:             res.Uncertainty.CUS,
		CUSMean:         res.Uncertainty.CUS,
		RawAction:       res.RawAction,
		FinalAction:     res.Action,
		SoftClamp:       res.SoftSafeApplied,
		Level:           res.Escalation,
		Reason:          res.Reason,
		Confidence:      res.Confidence,
		HumanEscalation: res.HumanEscalation,
		J:               res.J,
		H:               res.H,
		Profile:         opts.Profile,
		TraceHash:       res.TraceHash,
		ConfigHash:      opts.ConfigHash,
	}
	if td := res.TemporalDrift; td != nil {
		rec.DeltaCUS = td.DeltaCUS
		rec.CUSMean = td.CUSMean
	}
	if sr := res.SelfRegulation; sr != nil {
		d := sr.DeltaConfidence
		rec.DeltaConfidence = &d
	}
	if opts.Latency > 0 {
		ms := float64(opts.Latency.Microseconds()) / 1000
		rec.LatencyMS = &ms
	}
	if raw != nil {
		rec.RawState = state.Snapshot(raw)
	}
	return rec
}
