package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	debounceDefault = 200 * time.Millisecond
	pollDefault     = 5 * time.Second
	queueSize       = 200
)

// JobHandler processes one job file from the inbox.
type JobHandler func(path string)

// WatchOptions tunes how inbox files are fed to the handler.
type WatchOptions struct {
	// Debounce batches bursts of arrivals; each batch is handled in file
	// name order.
	Debounce time.Duration
	// Workers is the number of concurrent handlers. The default of one
	// keeps decisions on the shared stream in arrival order.
	Workers int
	Logger  *zap.Logger
}

func (o WatchOptions) withDefaults() WatchOptions {
	if o.Debounce <= 0 {
		o.Debounce = debounceDefault
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// InboxWatcher feeds new job files to a handler using fsnotify.
type InboxWatcher struct {
	inbox  string
	handle JobHandler
	opts   WatchOptions
}

// NewInboxWatcher creates an fsnotify watcher for the inbox directory.
func NewInboxWatcher(inbox string, handle JobHandler, opts WatchOptions) *InboxWatcher {
	return &InboxWatcher{inbox: inbox, handle: handle, opts: opts.withDefaults()}
}

// Run blocks until ctx is cancelled. Queued jobs are drained before it
// returns.
func (w *InboxWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()
	if err := fw.Add(w.inbox); err != nil {
		return err
	}

	queue := make(chan string, queueSize)
	var wg sync.WaitGroup
	for i := 0; i < w.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range queue {
				w.safeHandle(path)
			}
		}()
	}

	arrived := make(map[string]struct{})
	flush := func() {
		batch := make([]string, 0, len(arrived))
		for p := range arrived {
			batch = append(batch, p)
		}
		clear(arrived)
		sort.Strings(batch)
		for _, p := range batch {
			select {
			case queue <- p:
			case <-ctx.Done():
				return
			}
		}
	}

	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	defer func() {
		timer.Stop()
		close(queue)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			flush()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) || !isJobFile(ev.Name) {
				continue
			}
			arrived[ev.Name] = struct{}{}
			timer.Reset(w.opts.Debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn("inbox watcher error", zap.Error(err))
		}
	}
}

func (w *InboxWatcher) safeHandle(path string) {
	defer func() {
		if r := recover(); r != nil {
			w.opts.Logger.Error("job handler panic", zap.String("file", filepath.Base(path)), zap.Any("panic", r))
		}
	}()
	w.handle(path)
}

// PollWatcher feeds new job files to a handler by listing the inbox on an
// interval. Used where fsnotify does not work, such as NFS mounts.
type PollWatcher struct {
	inbox    string
	handle   JobHandler
	interval time.Duration
	seen     map[string]struct{}
}

// NewPollWatcher creates a polling watcher.
func NewPollWatcher(inbox string, handle JobHandler, interval time.Duration) *PollWatcher {
	if interval <= 0 {
		interval = pollDefault
	}
	return &PollWatcher{
		inbox:    inbox,
		handle:   handle,
		interval: interval,
		seen:     make(map[string]struct{}),
	}
}

// Run blocks until ctx is cancelled.
func (w *PollWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.scan()
		}
	}
}

// scan handles unseen files in name order and forgets files that have left
// the inbox, so a reused job name is picked up again.
func (w *PollWatcher) scan() {
	paths, err := listJobs(w.inbox)
	if err != nil {
		return
	}
	present := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		present[p] = struct{}{}
		if _, ok := w.seen[p]; ok {
			continue
		}
		w.seen[p] = struct{}{}
		w.handle(p)
	}
	for p := range w.seen {
		if _, ok := present[p]; !ok {
			delete(w.seen, p)
		}
	}
}

// ScanExisting handles job files already in the inbox, in name order. Run
// at startup for jobs that arrived while the daemon was down.
func ScanExisting(inbox string, handle JobHandler) error {
	paths, err := listJobs(inbox)
	if err != nil {
		return err
	}
	for _, p := range paths {
		handle(p)
	}
	return nil
}

// listJobs returns the job files in dir sorted by name. A missing dir has
// no jobs.
func listJobs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isJobFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// isJobFile reports whether path names a complete job: a visible .json
// file. Partial writes end in .tmp and editor swap files start with a dot.
func isJobFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}
