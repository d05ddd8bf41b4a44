package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/amiengine/internal/audit"
	"github.com/ppiankov/amiengine/internal/daemon"
	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/metrics"
	"github.com/ppiankov/amiengine/internal/store"
)

var (
	watchInbox       string
	watchOutbox      string
	watchState       string
	watchPoll        bool
	watchAudit       string
	watchStore       string
	watchMetricsAddr string
	watchReviewTTL   time.Duration
	watchWorkers     int
)

func init() {
	defaults := daemon.DefaultDirConfig()
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchInbox, "inbox", defaults.Inbox, "Inbox directory for job files")
	watchCmd.Flags().StringVar(&watchOutbox, "outbox", defaults.Outbox, "Outbox directory for results")
	watchCmd.Flags().StringVar(&watchState, "state", defaults.State, "State directory for processing")
	watchCmd.Flags().BoolVar(&watchPoll, "poll", false, "Use polling instead of inotify")
	watchCmd.Flags().StringVar(&watchAudit, "audit", "", "Append every decision to this hash-chained log")
	watchCmd.Flags().StringVar(&watchStore, "store", "", "Save every decision to this SQLite database")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	watchCmd.Flags().DurationVar(&watchReviewTTL, "review-ttl", 24*time.Hour, "Time an escalated decision waits for review before expiring")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 1, "Concurrent jobs (more than one gives up inbox ordering)")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Decide job files dropped into an inbox directory",
	Long: "Runs the decision service: every job file in the inbox is decided as part\n" +
		"of one stream sharing drift history, and the result is written to the\n" +
		"outbox. Decisions that need a human are held as pending_review until\n" +
		"approved or rejected with \"amiengine review\".",
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := engine.New(cfg, engine.WithLogger(logger))
	if err != nil {
		return err
	}

	dcfg := daemon.Config{
		Dirs: daemon.DirConfig{
			Inbox:  watchInbox,
			Outbox: watchOutbox,
			State:  watchState,
		},
		Engine:     eng,
		Logger:     logger,
		Profile:    flagProfile,
		ConfigHash: cfg.Hash(),
		PollMode:   watchPoll,
		ReviewTTL:  watchReviewTTL,
		Workers:    watchWorkers,
	}

	if watchAudit != "" {
		l, err := audit.Open(watchAudit)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer l.Close()
		dcfg.Audit = l
	}
	if watchStore != "" {
		st, err := store.Open(watchStore)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		dcfg.Store = st
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if watchMetricsAddr != "" {
		reg := prometheus.NewRegistry()
		dcfg.Metrics = metrics.NewDecisionMetrics(reg)
		srv := &http.Server{
			Addr:              watchMetricsAddr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	d, err := daemon.New(dcfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== AMIENGINE WATCH ===")
	fmt.Fprintf(out, "Inbox:   %s\n", watchInbox)
	fmt.Fprintf(out, "Outbox:  %s\n", watchOutbox)
	fmt.Fprintf(out, "State:   %s\n", watchState)
	if flagProfile != "" {
		fmt.Fprintf(out, "Profile: %s\n", flagProfile)
	}
	if watchPoll {
		fmt.Fprintln(out, "Watcher: polling")
	} else {
		fmt.Fprintln(out, "Watcher: fsnotify")
	}
	if watchMetricsAddr != "" {
		fmt.Fprintf(out, "Metrics: http://%s/metrics\n", watchMetricsAddr)
	}
	fmt.Fprintln(out, "\nWatching for jobs...")

	return d.Run(ctx)
}

func metricsMux(g prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}
