package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/amiengine/internal/audit"
	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/store"
	"github.com/ppiankov/amiengine/internal/trace"
)

var (
	decideFormat   string
	decideAudit    string
	decideStore    string
	decideRunID    string
	decideStream   bool
	decideTraceOut string
)

func init() {
	rootCmd.AddCommand(decideCmd)
	decideCmd.Flags().StringVarP(&decideFormat, "format", "f", "json", "Output format (json|text)")
	decideCmd.Flags().StringVar(&decideAudit, "audit", "", "Append each decision to this hash-chained log")
	decideCmd.Flags().StringVar(&decideStore, "store", "", "Save each decision to this SQLite database")
	decideCmd.Flags().StringVar(&decideRunID, "run-id", "", "Run ID for audit records (default: random)")
	decideCmd.Flags().BoolVar(&decideStream, "stream", false, "Read one state per line and share drift history")
	decideCmd.Flags().StringVar(&decideTraceOut, "trace-out", "", "Write the canonical trace of the last decision to this file")
}

var decideCmd = &cobra.Command{
	Use:   "decide [state.json]",
	Short: "Decide on a raw state",
	Long: "Reads a raw state JSON object from a file or stdin and prints the decision.\n" +
		"With --stream the input is JSON lines, decided in order as one stream with\n" +
		"temporal drift and hysteresis.",
	Args: cobra.MaximumNArgs(1),
	RunE: runDecide,
}

func runDecide(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	eng, err := newEngine(logger)
	if err != nil {
		return err
	}

	var path string
	if len(args) == 1 {
		path = args[0]
	}
	data, err := readInput(cmd, path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	states, err := parseStates(data, decideStream)
	if err != nil {
		return err
	}

	sink, err := openSink(decideAudit, decideStore, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	var h *engine.History
	if decideStream {
		h = &engine.History{Hysteresis: true}
	}

	runID := decideRunID
	if runID == "" {
		runID = uuid.New().String()
	}
	configHash := eng.Config().Hash()

	var last *engine.Result
	for _, raw := range states {
		start := time.Now()
		res, err := eng.Decide(raw, h)
		if err != nil {
			return err
		}
		if err := sink.Record(cmd.Context(), res, raw, audit.RecordOptions{
			RunID:      runID,
			ConfigHash: configHash,
			Profile:    flagProfile,
			Latency:    time.Since(start),
		}); err != nil {
			return err
		}
		if err := printDecision(cmd.OutOrStdout(), res, decideFormat); err != nil {
			return err
		}
		last = res
	}

	if decideTraceOut != "" && last != nil {
		doc, err := trace.Canonical(last.Trace)
		if err != nil {
			return err
		}
		if err := os.WriteFile(decideTraceOut, doc, 0o644); err != nil {
			return fmt.Errorf("write trace: %w", err)
		}
	}
	return nil
}

// parseStates decodes one state, or one state per non-empty line in
// stream mode.
func parseStates(data []byte, stream bool) ([]model.RawState, error) {
	if !stream {
		var raw model.RawState
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse state: %w", err)
		}
		return []model.RawState{raw}, nil
	}

	var states []model.RawState
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var raw model.RawState
		if err := json.Unmarshal(text, &raw); err != nil {
			return nil, fmt.Errorf("parse state on line %d: %w", line, err)
		}
		states = append(states, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read states: %w", err)
	}
	return states, nil
}

// decisionSink fans a decision out to the optional audit log and store.
type decisionSink struct {
	log   *audit.Log
	store *store.Store
	zl    *zap.Logger
}

func openSink(auditPath, storePath string, logger *zap.Logger) (*decisionSink, error) {
	s := &decisionSink{zl: logger}
	if auditPath != "" {
		l, err := audit.Open(auditPath)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		s.log = l
	}
	if storePath != "" {
		st, err := store.Open(storePath)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		s.store = st
	}
	return s, nil
}

func (s *decisionSink) Record(ctx context.Context, res *engine.Result, raw model.RawState, opts audit.RecordOptions) error {
	if s.store != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		id, err := s.store.Save(ctx, res, store.SaveOptions{Profile: opts.Profile, ConfigHash: opts.ConfigHash})
		if err != nil {
			return fmt.Errorf("save decision: %w", err)
		}
		s.zl.Debug("decision stored", zap.String("id", id))
	}
	if s.log != nil {
		if err := s.log.Record(audit.NewRecord(res, raw, opts)); err != nil {
			return fmt.Errorf("record decision: %w", err)
		}
	}
	return nil
}

func (s *decisionSink) Close() {
	if s.log != nil {
		_ = s.log.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

func printDecision(w io.Writer, res *engine.Result, format string) error {
	if format != "text" {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "action      %s\n", res.Action)
	if res.SoftSafeApplied {
		fmt.Fprintf(w, "raw action  %s\n", res.RawAction)
	}
	fmt.Fprintf(w, "reason      %s\n", res.Reason)
	fmt.Fprintf(w, "level       %d (%s)\n", res.Escalation, model.LevelLabel(res.Escalation))
	fmt.Fprintf(w, "human       %t\n", res.HumanEscalation)
	fmt.Fprintf(w, "confidence  %.4f\n", res.Confidence)
	fmt.Fprintf(w, "CUS         %.4f\n", res.Uncertainty.CUS)
	fmt.Fprintf(w, "J / H       %.4f / %.4f\n", res.J, res.H)
	fmt.Fprintf(w, "trace       %s\n\n", res.TraceHash)
	return nil
}
