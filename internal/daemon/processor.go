package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/amiengine/internal/audit"
	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/metrics"
	"github.com/ppiankov/amiengine/internal/store"
	"github.com/ppiankov/amiengine/internal/trace"
)

// ProcessorConfig holds runtime configuration for job processing.
// Audit, Store and Metrics are optional.
type ProcessorConfig struct {
	Dirs       DirConfig
	Engine     *engine.Engine
	Audit      *audit.Log
	Store      *store.Store
	Metrics    *metrics.DecisionMetrics
	Logger     *zap.Logger
	Profile    string
	ConfigHash string
}

// Processor handles job lifecycle transitions. Decide jobs form one
// decision stream: they share a history with hysteresis enabled and are
// decided one at a time.
type Processor struct {
	cfg ProcessorConfig
	log *zap.Logger

	mu      sync.Mutex
	history *engine.History
}

// NewProcessor creates a processor with the given configuration.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Engine == nil {
		eng, err := engine.New(nil)
		if err != nil {
			return nil, err
		}
		cfg.Engine = eng
	}
	if cfg.ConfigHash == "" {
		cfg.ConfigHash = cfg.Engine.Config().Hash()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		cfg:     cfg,
		log:     log,
		history: &engine.History{Hysteresis: true},
	}, nil
}

// History returns a snapshot of the shared decision stream history.
func (p *Processor) History() *engine.History {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.Clone()
}

// Process handles a single job file through its full lifecycle:
// read → validate → move to processing → execute → write result to outbox.
func (p *Processor) Process(ctx context.Context, jobPath string) error {
	// Reject symlinks before reading so inbox entries cannot point at
	// arbitrary files.
	fi, err := os.Lstat(jobPath)
	if err != nil {
		return fmt.Errorf("stat job file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("rejected symlink: %s", filepath.Base(jobPath))
	}

	data, err := os.ReadFile(jobPath)
	if err != nil {
		return fmt.Errorf("read job file: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		p.quarantine(jobPath)
		return p.writeFailedResult(jobID(jobPath), fmt.Sprintf("invalid JSON: %v", err))
	}

	if err := ValidateJob(&job); err != nil {
		p.quarantine(jobPath)
		id := job.ID
		if !validID.MatchString(id) {
			id = jobID(jobPath)
		}
		return p.writeFailedResult(id, fmt.Sprintf("validation failed: %v", err))
	}

	// Move to processing state. moveFile handles cross-device bind mounts.
	processingPath := filepath.Join(p.cfg.Dirs.ProcessingDir(), job.ID+".json")
	if err := moveFile(jobPath, processingPath); err != nil {
		return fmt.Errorf("move to processing: %w", err)
	}

	p.log.Debug("job started", zap.String("file", filepath.Base(jobPath)), zap.String("type", job.Type))

	result, err := p.execute(ctx, &job)
	if err != nil {
		p.log.Warn("job failed", zap.String("id", job.ID), zap.Error(err))
		result = &Result{
			ID:          job.ID,
			Type:        job.Type,
			Status:      ResultFailed,
			Error:       err.Error(),
			CompletedAt: time.Now().UTC(),
		}
	}

	if err := p.writeResult(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	p.log.Info("job completed",
		zap.String("id", job.ID),
		zap.String("status", result.Status),
		zap.String("run_id", result.RunID),
	)

	_ = os.Remove(processingPath)
	return nil
}

// execute dispatches the job to the appropriate handler.
func (p *Processor) execute(ctx context.Context, job *Job) (*Result, error) {
	switch job.Type {
	case JobTypeDecide:
		return p.decide(ctx, job)
	case JobTypeReplay:
		return p.replay(job)
	default:
		return nil, fmt.Errorf("unsupported job type: %s", job.Type)
	}
}

// decide runs one decision on the shared stream and records it.
func (p *Processor) decide(ctx context.Context, job *Job) (*Result, error) {
	p.mu.Lock()
	start := time.Now()
	res, err := p.cfg.Engine.Decide(job.State, p.history)
	latency := time.Since(start)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("decide: %w", err)
	}

	if p.cfg.Metrics != nil {
		p.cfg.Metrics.Observe(res)
		p.cfg.Metrics.ObserveDuration(latency)
	}

	runID := uuid.NewString()
	if p.cfg.Store != nil {
		id, err := p.cfg.Store.Save(ctx, res, store.SaveOptions{
			Profile:    p.cfg.Profile,
			ConfigHash: p.cfg.ConfigHash,
		})
		if err != nil {
			return nil, err
		}
		runID = id
	}

	if p.cfg.Audit != nil {
		rec := audit.NewRecord(res, job.State, audit.RecordOptions{
			RunID:      runID,
			ConfigHash: p.cfg.ConfigHash,
			Profile:    p.cfg.Profile,
			Latency:    latency,
		})
		if err := p.cfg.Audit.Record(rec); err != nil {
			return nil, fmt.Errorf("audit: %w", err)
		}
	}

	doc, err := trace.Canonical(res.Trace)
	if err != nil {
		return nil, fmt.Errorf("encode trace: %w", err)
	}

	status := ResultDone
	if res.NeedsHuman() {
		status = ResultPendingReview
	}
	return &Result{
		ID:          job.ID,
		RunID:       runID,
		Type:        job.Type,
		Status:      status,
		Decision:    newDecision(res),
		CompletedAt: time.Now().UTC(),
		Trace:       doc,
	}, nil
}

// replay verifies a recorded trace against the engine. It does not touch
// the shared stream.
func (p *Processor) replay(job *Job) (*Result, error) {
	res, err := p.cfg.Engine.ReplayDocument(job.Trace, engine.StrictReplayOptions())
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	return &Result{
		ID:          job.ID,
		Type:        job.Type,
		Status:      ResultDone,
		Decision:    newDecision(res),
		CompletedAt: time.Now().UTC(),
	}, nil
}

// quarantine moves an unusable job file to state/failed.
func (p *Processor) quarantine(jobPath string) {
	dst := filepath.Join(p.cfg.Dirs.FailedDir(), filepath.Base(jobPath))
	if err := moveFile(jobPath, dst); err != nil {
		p.log.Warn("quarantine job", zap.String("file", filepath.Base(jobPath)), zap.Error(err))
	}
}

// writeResult writes a result to the outbox directory atomically.
func (p *Processor) writeResult(r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	filename := r.ID + ".json"
	tmpPath := filepath.Join(p.cfg.Dirs.Outbox, filename+".tmp")
	finalPath := filepath.Join(p.cfg.Dirs.Outbox, filename)

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	return os.Rename(tmpPath, finalPath)
}

// writeFailedResult writes a minimal failed result when the job can't be parsed.
func (p *Processor) writeFailedResult(id string, errMsg string) error {
	if id == "" {
		id = fmt.Sprintf("unknown-%d", time.Now().UnixNano())
	}
	p.log.Warn("job rejected", zap.String("id", id), zap.String("error", errMsg))
	r := &Result{
		ID:          id,
		Status:      ResultFailed,
		Error:       errMsg,
		CompletedAt: time.Now().UTC(),
	}
	return p.writeResult(r)
}

// jobID derives a result ID from a job file name, or "" when the name is
// not a safe ID.
func jobID(path string) string {
	id := filepath.Base(path)
	id = id[:len(id)-len(filepath.Ext(id))]
	if !validID.MatchString(id) {
		return ""
	}
	return id
}
