package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/amiengine/internal/audit"
	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/metrics"
	"github.com/ppiankov/amiengine/internal/store"
)

// Config holds full daemon configuration.
type Config struct {
	Dirs         DirConfig
	Engine       *engine.Engine
	Audit        *audit.Log
	Store        *store.Store
	Metrics      *metrics.DecisionMetrics
	Logger       *zap.Logger
	Profile      string
	ConfigHash   string
	PollMode     bool
	PollInterval time.Duration
	ReviewTTL    time.Duration
	// Workers bounds concurrent jobs. Zero means one, which keeps the
	// decision stream in inbox order.
	Workers int
}

// Daemon watches the inbox directory and processes jobs.
type Daemon struct {
	cfg       Config
	log       *zap.Logger
	processor *Processor
}

// New creates a daemon with validated configuration.
func New(cfg Config) (*Daemon, error) {
	if cfg.Dirs.Inbox == "" || cfg.Dirs.Outbox == "" || cfg.Dirs.State == "" {
		return nil, fmt.Errorf("inbox, outbox, and state directories are required")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = pollDefault
	}
	if cfg.ReviewTTL == 0 {
		cfg.ReviewTTL = defaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	processor, err := NewProcessor(ProcessorConfig{
		Dirs:       cfg.Dirs,
		Engine:     cfg.Engine,
		Audit:      cfg.Audit,
		Store:      cfg.Store,
		Metrics:    cfg.Metrics,
		Logger:     cfg.Logger,
		Profile:    cfg.Profile,
		ConfigHash: cfg.ConfigHash,
	})
	if err != nil {
		return nil, err
	}

	return &Daemon{
		cfg:       cfg,
		log:       cfg.Logger,
		processor: processor,
	}, nil
}

// Processor returns the daemon's job processor.
func (d *Daemon) Processor() *Processor {
	return d.processor
}

// Run starts the daemon. Blocks until ctx is cancelled.
// On startup, processes any existing inbox files and orphaned processing files.
func (d *Daemon) Run(ctx context.Context) error {
	if err := EnsureDirs(d.cfg.Dirs); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	if err := ValidateSameFilesystem(d.cfg.Dirs); err != nil {
		d.log.Warn("job moves will not be atomic", zap.Error(err))
	}

	// Acquire PID file lock to prevent duplicate instances.
	pidPath := filepath.Join(d.cfg.Dirs.State, "daemon.pid")
	if err := acquirePIDLock(pidPath); err != nil {
		return fmt.Errorf("acquire PID lock: %w", err)
	}
	defer func() { _ = os.Remove(pidPath) }()

	if err := d.recoverOrphans(); err != nil {
		return fmt.Errorf("recover orphans: %w", err)
	}

	handler := func(path string) {
		if err := d.processor.Process(ctx, path); err != nil {
			d.log.Error("process job", zap.String("file", filepath.Base(path)), zap.Error(err))
		}
	}

	if err := ScanExisting(d.cfg.Dirs.Inbox, handler); err != nil {
		return fmt.Errorf("scan existing: %w", err)
	}

	// The sweeper stops before Run returns.
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gateway := NewGateway(d.cfg.Dirs.Outbox, d.cfg.Dirs.State, d.cfg.ReviewTTL)
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.runExpirationSweeper(ctx, gateway)
	}()

	if d.cfg.PollMode {
		pw := NewPollWatcher(d.cfg.Dirs.Inbox, handler, d.cfg.PollInterval)
		return pw.Run(ctx)
	}

	w := NewInboxWatcher(d.cfg.Dirs.Inbox, handler, WatchOptions{
		Workers: d.cfg.Workers,
		Logger:  d.log,
	})
	return w.Run(ctx)
}

// expirationInterval is how often the sweeper checks for expired reviews.
const expirationInterval = 5 * time.Minute

// runExpirationSweeper periodically rejects decisions whose review expired.
func (d *Daemon) runExpirationSweeper(ctx context.Context, gateway *Gateway) {
	ticker := time.NewTicker(expirationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := gateway.CheckExpired()
			if err != nil {
				d.log.Error("expiration sweep", zap.Error(err))
			} else if n > 0 {
				d.log.Info("expired pending reviews", zap.Int("count", n))
			}
		}
	}
}

// recoverOrphans moves files left in state/processing/ to failed results.
// These are jobs that were interrupted by a crash or restart. Their
// decisions never reached the shared history.
func (d *Daemon) recoverOrphans() error {
	procDir := d.cfg.Dirs.ProcessingDir()
	entries, err := os.ReadDir(procDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !isJobFile(e.Name()) {
			continue
		}
		id := e.Name()[:len(e.Name())-5] // strip .json
		result := &Result{
			ID:          id,
			Status:      ResultFailed,
			Error:       "interrupted: job was processing when daemon stopped",
			CompletedAt: time.Now().UTC(),
		}
		if err := d.processor.writeResult(result); err != nil {
			d.log.Error("recover orphan", zap.String("id", id), zap.Error(err))
		}
		_ = os.Remove(filepath.Join(procDir, e.Name()))
	}
	return nil
}

// acquirePIDLock writes the current PID to the file and checks for stale locks.
func acquirePIDLock(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		pid, err := strconv.Atoi(string(data))
		if err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("another daemon is running (PID %d)", pid)
				}
			}
		}
		// Stale PID file.
		_ = os.Remove(path)
	}

	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600)
}
