// Package daemon implements the watch-mode decision service.
// Jobs arrive as JSON files in the inbox directory, each carrying one raw
// state or one recorded trace. Decisions are written to the outbox
// directory; decisions that need a human wait there for review.
package daemon

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/model"
)

// JobStatus represents the lifecycle state of an inbox job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

// Valid job types that the daemon can process.
const (
	JobTypeDecide = "decide"
	JobTypeReplay = "replay"
)

// validJobTypes is the set of accepted job type values.
var validJobTypes = map[string]bool{
	JobTypeDecide: true,
	JobTypeReplay: true,
}

// validID matches alphanumeric characters, dashes, and underscores only.
var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Job is a unit of work dropped into the inbox. Decide jobs carry State,
// replay jobs carry a trace document.
type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	State     model.RawState  `json:"state,omitempty"`
	Trace     json.RawMessage `json:"trace,omitempty"`
	Source    string          `json:"source,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Decision is the outcome summary written to the outbox.
type Decision struct {
	Action          model.Action `json:"action"`
	RawAction       model.Action `json:"raw_action"`
	Reason          model.Reason `json:"reason"`
	Level           model.Level  `json:"level"`
	LevelLabel      string       `json:"level_label"`
	HumanEscalation bool         `json:"human_escalation"`
	SoftClamp       bool         `json:"soft_clamp"`
	Confidence      float64      `json:"confidence"`
	CUS             float64      `json:"cus"`
	TraceHash       string       `json:"trace_hash"`
}

// newDecision summarizes an engine result.
func newDecision(res *engine.Result) *Decision {
	return &Decision{
		Action:          res.Action,
		RawAction:       res.RawAction,
		Reason:          res.Reason,
		Level:           res.Escalation,
		LevelLabel:      model.LevelLabel(res.Escalation),
		HumanEscalation: res.HumanEscalation,
		SoftClamp:       res.SoftSafeApplied,
		Confidence:      res.Confidence,
		CUS:             res.Uncertainty.CUS,
		TraceHash:       res.TraceHash,
	}
}

// Result is written to the outbox after processing a job.
type Result struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id,omitempty"`
	Type        string    `json:"type,omitempty"`
	Status      string    `json:"status"`
	Decision    *Decision `json:"decision,omitempty"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
	// Trace is the full decision trace of a decide job, replayable as the
	// trace of a replay job.
	Trace json.RawMessage `json:"trace,omitempty"`
}

// Result status values.
const (
	ResultDone          = "done"
	ResultFailed        = "failed"
	ResultPendingReview = "pending_review"
	ResultRejected      = "rejected"
)

// ValidateJob checks that a job has all required fields and safe values.
func ValidateJob(j *Job) error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if strings.Contains(j.ID, "..") {
		return fmt.Errorf("job ID must not contain '..'")
	}
	if !validID.MatchString(j.ID) {
		return fmt.Errorf("job ID contains invalid characters: only alphanumeric, dash, and underscore allowed")
	}
	if j.Type == "" {
		return fmt.Errorf("job type is required")
	}
	if !validJobTypes[j.Type] {
		return fmt.Errorf("invalid job type %q: must be one of: decide, replay", j.Type)
	}
	switch j.Type {
	case JobTypeDecide:
		// An empty state is a valid input; a missing one is not.
		if j.State == nil {
			return fmt.Errorf("decide job requires a state")
		}
	case JobTypeReplay:
		if len(j.Trace) == 0 {
			return fmt.Errorf("replay job requires a trace")
		}
	}
	return nil
}
