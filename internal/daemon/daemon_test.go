package daemon

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testDaemonConfig(t *testing.T) Config {
	t.Helper()
	root := t.TempDir()
	return Config{
		Dirs: DirConfig{
			Inbox:  filepath.Join(root, "inbox"),
			Outbox: filepath.Join(root, "outbox"),
			State:  filepath.Join(root, "state"),
		},
		PollMode:     true,
		PollInterval: 50 * time.Millisecond,
	}
}

func TestNewDaemonValidation(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestNewDaemonValid(t *testing.T) {
	cfg := testDaemonConfig(t)
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Processor() == nil {
		t.Error("processor should not be nil")
	}
	if d.cfg.ReviewTTL != defaultTTL {
		t.Errorf("review TTL = %v, want default", d.cfg.ReviewTTL)
	}
}

func TestDaemonProcessesExistingFiles(t *testing.T) {
	cfg := testDaemonConfig(t)
	if err := EnsureDirs(cfg.Dirs); err != nil {
		t.Fatal(err)
	}

	// Pre-create a job in inbox.
	job := validJob()
	job.ID = "existing-001"
	writeJobFile(t, cfg.Dirs.Inbox, job)

	d, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_ = d.Run(ctx)

	r := readResult(t, cfg.Dirs, "existing-001")
	if r.Status != ResultPendingReview {
		t.Errorf("status = %q, want %q", r.Status, ResultPendingReview)
	}

	// The PID file is released on shutdown.
	if _, err := os.Stat(filepath.Join(cfg.Dirs.State, "daemon.pid")); !os.IsNotExist(err) {
		t.Error("PID file should be removed after Run returns")
	}
}

func TestDaemonWatchesInbox(t *testing.T) {
	cfg := testDaemonConfig(t)
	cfg.PollMode = false
	cfg.Engine = scenarioEngine(t)
	cfg.Logger = zaptest.NewLogger(t)

	d, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Wait for the inbox to exist and the watcher to start.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(filepath.Join(cfg.Dirs.State, "daemon.pid")); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("daemon did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	// Write the job atomically.
	job := validJob()
	job.ID = "watched-001"
	data, _ := json.Marshal(job)
	tmp := filepath.Join(cfg.Dirs.Inbox, "watched-001.json.tmp")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, filepath.Join(cfg.Dirs.Inbox, "watched-001.json")); err != nil {
		t.Fatal(err)
	}

	resultPath := filepath.Join(cfg.Dirs.Outbox, "watched-001.json")
	deadline = time.Now().Add(3 * time.Second)
	for {
		if _, err := os.Stat(resultPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected result for watched job")
		}
		time.Sleep(20 * time.Millisecond)
	}

	r := readResult(t, cfg.Dirs, "watched-001")
	if r.Status != ResultDone || r.Decision == nil || !r.Decision.SoftClamp {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestDaemonRecoverOrphans(t *testing.T) {
	cfg := testDaemonConfig(t)
	if err := EnsureDirs(cfg.Dirs); err != nil {
		t.Fatal(err)
	}

	// Simulate an orphaned file in processing.
	orphanPath := filepath.Join(cfg.Dirs.ProcessingDir(), "orphan-001.json")
	if err := os.WriteFile(orphanPath, []byte(`{"id":"orphan-001"}`), 0600); err != nil {
		t.Fatal(err)
	}

	d, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_ = d.Run(ctx)

	// Orphan should be cleaned from processing.
	if _, err := os.Stat(orphanPath); !os.IsNotExist(err) {
		t.Error("orphan should be removed from processing")
	}

	// Failed result should be in outbox.
	resultPath := filepath.Join(cfg.Dirs.Outbox, "orphan-001.json")
	data, err := os.ReadFile(resultPath)
	if err != nil {
		t.Fatal("expected failed result in outbox")
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if result.Status != ResultFailed {
		t.Errorf("orphan result status = %q, want %q", result.Status, ResultFailed)
	}
}

func TestDaemonGracefulShutdown(t *testing.T) {
	cfg := testDaemonConfig(t)
	d, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil on graceful shutdown, got: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not stop after context cancellation")
	}
}

func TestDaemonPIDLock(t *testing.T) {
	cfg := testDaemonConfig(t)
	if err := EnsureDirs(cfg.Dirs); err != nil {
		t.Fatal(err)
	}

	pidPath := filepath.Join(cfg.Dirs.State, "daemon.pid")

	// First lock should succeed.
	if err := acquirePIDLock(pidPath); err != nil {
		t.Fatalf("first lock: %v", err)
	}

	// Second lock should fail (our process is still running).
	if err := acquirePIDLock(pidPath); err == nil {
		t.Error("expected error for duplicate PID lock")
	}

	// Clean up.
	_ = os.Remove(pidPath)
}

func TestDaemonPIDLockStaleCleanup(t *testing.T) {
	cfg := testDaemonConfig(t)
	if err := EnsureDirs(cfg.Dirs); err != nil {
		t.Fatal(err)
	}

	pidPath := filepath.Join(cfg.Dirs.State, "daemon.pid")

	// Write a stale PID (very high PID unlikely to be running).
	if err := os.WriteFile(pidPath, []byte("9999999"), 0600); err != nil {
		t.Fatal(err)
	}

	// Lock should succeed after cleaning stale PID.
	if err := acquirePIDLock(pidPath); err != nil {
		t.Fatalf("stale PID cleanup failed: %v", err)
	}

	_ = os.Remove(pidPath)
}
