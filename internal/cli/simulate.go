package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amiengine/internal/sim"
)

var (
	simLog         string
	simWithHistory bool
	simFormat      string
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simLog, "log", "", "Path to decision log (required)")
	simulateCmd.Flags().BoolVar(&simWithHistory, "with-history", false, "Re-run each run ID as one stream with drift and hysteresis")
	simulateCmd.Flags().StringVarP(&simFormat, "format", "f", "text", "Output format (text|json)")
	simulateCmd.MarkFlagRequired("log")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Re-decide a decision log under another config and show what changes",
	Long: "Reads a recorded decision log, re-decides every recorded raw state under\n" +
		"--config and --profile, and lists decisions whose level, reason or human\n" +
		"escalation changed.\n\n" +
		"Use this to preview threshold changes before deploying them.",
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	label := flagProfile
	if label == "" && flagConfig != "" {
		label = flagConfig
	}
	result, err := sim.Simulate(simLog, cfg, sim.Options{Label: label, WithHistory: simWithHistory})
	if err != nil {
		return err
	}

	switch simFormat {
	case "json":
		out, err := sim.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), sim.FormatText(result))
	}

	return nil
}
