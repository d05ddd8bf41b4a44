package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/amiengine/internal/model"
)

// Filter holds selection criteria for reading a decision log.
type Filter struct {
	RunID    string       // empty = any run
	MinLevel *model.Level // nil = any level
	From     time.Time    // zero value = no lower bound
	To       time.Time    // zero value = no upper bound
}

// Summary aggregates a set of records.
type Summary struct {
	Total            int     `json:"total"`
	Normal           int     `json:"normal"`
	SoftSafe         int     `json:"soft_safe"`
	HardFailSafe     int     `json:"hard_fail_safe"`
	FailSafe         int     `json:"fail_safe"`
	SoftClamps       int     `json:"soft_clamps"`
	HumanEscalations int     `json:"human_escalations"`
	MeanCUS          float64 `json:"mean_cus"`
	MeanConfidence   float64 `json:"mean_confidence"`
	FirstTimestamp   string  `json:"first_timestamp"`
	LastTimestamp    string  `json:"last_timestamp"`
	MaxLevel         int     `json:"max_level"`
}

// Report holds filtered records and their summary.
type Report struct {
	RunID   string           `json:"run_id,omitempty"`
	Records []DecisionRecord `json:"records"`
	Summary Summary          `json:"summary"`
}

// Read reads the decision log at path and returns records matching f.
// Malformed lines are skipped; use Verify for integrity.
func Read(path string, f Filter) (*Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open decision log: %w", err)
	}
	defer file.Close()

	var records []DecisionRecord
	scanner := newScanner(file)
	for scanner.Scan() {
		var rec DecisionRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if f.Match(rec) {
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read decision log: %w", err)
	}

	return &Report{RunID: f.RunID, Records: records, Summary: Summarize(records)}, nil
}

// Match reports whether rec passes the filter.
func (f Filter) Match(rec DecisionRecord) bool {
	if f.RunID != "" && rec.RunID != f.RunID {
		return false
	}
	if f.MinLevel != nil && rec.Level < *f.MinLevel {
		return false
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		ts, err := time.Parse(TimestampFormat, rec.Timestamp)
		if err != nil {
			return false
		}
		if !f.From.IsZero() && ts.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && ts.After(f.To) {
			return false
		}
	}
	return true
}

// Summarize aggregates records.
func Summarize(records []DecisionRecord) Summary {
	var s Summary
	var cusSum, confSum float64
	for _, r := range records {
		s.Total++
		switch r.Level {
		case model.LevelNormal:
			s.Normal++
		case model.LevelSoftSafe:
			s.SoftSafe++
		case model.LevelHardFailSafe:
			s.HardFailSafe++
		}
		if r.Reason == model.ReasonFailSafe {
			s.FailSafe++
		}
		if r.SoftClamp {
			s.SoftClamps++
		}
		if r.HumanEscalation {
			s.HumanEscalations++
		}
		if int(r.Level) > s.MaxLevel {
			s.MaxLevel = int(r.Level)
		}
		cusSum += r.CUS
		confSum += r.Confidence
		if s.FirstTimestamp == "" {
			s.FirstTimestamp = r.Timestamp
		}
		s.LastTimestamp = r.Timestamp
	}
	if s.Total > 0 {
		s.MeanCUS = cusSum / float64(s.Total)
		s.MeanConfidence = confSum / float64(s.Total)
	}
	return s
}
