package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amiengine/internal/engine"
)

var (
	replayStrict bool
	replayFormat string
)

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayStrict, "strict", false, "Also require matching trace hash and ethics values")
	replayCmd.Flags().StringVarP(&replayFormat, "format", "f", "text", "Output format (text|json)")
}

var replayCmd = &cobra.Command{
	Use:   "replay <trace.json>",
	Short: "Re-run a recorded decision trace and check it reproduces",
	Long: "Validates a trace document against the trace schema, restores the raw\n" +
		"state and, for stream decisions, the recorded drift and escalation history,\n" +
		"re-decides under the current config and compares the final action. With\n" +
		"--strict the trace hash, J, H and uncertainty must match too. Exits 1 on\n" +
		"mismatch.",
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	data, err := readInput(cmd, args[0])
	if err != nil {
		return fmt.Errorf("read trace: %w", err)
	}
	eng, err := newEngine(logger)
	if err != nil {
		return err
	}

	opts := engine.DefaultReplayOptions()
	if replayStrict {
		opts = engine.StrictReplayOptions()
	}

	res, err := eng.ReplayDocument(data, opts)
	var mismatch *engine.ReplayError
	if errors.As(err, &mismatch) {
		fmt.Fprintf(cmd.OutOrStdout(), "MISMATCH: %v\n", mismatch)
		return err
	}
	if err != nil {
		return err
	}

	if replayFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OK: replay reproduced %s\n", res.Action)
	fmt.Fprintf(cmd.OutOrStdout(), "  trace %s\n", res.TraceHash)
	return nil
}
