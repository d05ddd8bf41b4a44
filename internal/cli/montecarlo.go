package cli

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/amiengine/internal/metrics"
	"github.com/ppiankov/amiengine/internal/sim"
)

var (
	mcN          int
	mcSeed       uint64
	mcWorkers    int
	mcFormat     string
	mcMetricsOut string
)

func init() {
	rootCmd.AddCommand(monteCarloCmd)
	monteCarloCmd.Flags().IntVarP(&mcN, "count", "n", 1000, "Number of random states")
	monteCarloCmd.Flags().Uint64Var(&mcSeed, "seed", 42, "Random seed")
	monteCarloCmd.Flags().IntVar(&mcWorkers, "workers", 0, "Concurrent deciders (default GOMAXPROCS)")
	monteCarloCmd.Flags().StringVarP(&mcFormat, "format", "f", "text", "Output format (text|json)")
	monteCarloCmd.Flags().StringVar(&mcMetricsOut, "metrics-out", "", "Write Prometheus text metrics for the batch to this file")
}

var monteCarloCmd = &cobra.Command{
	Use:   "montecarlo",
	Short: "Decide a batch of seeded random states and summarize the outcomes",
	Long: "Draws N raw states uniformly from the unit cube with a fixed seed, decides\n" +
		"each one independently and reports fail-safe rate, escalation levels and\n" +
		"score distributions. The report does not depend on --workers.",
	RunE: runMonteCarlo,
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	eng, err := newEngine(logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	mc := sim.MonteCarloConfig{N: mcN, Seed: mcSeed, Workers: mcWorkers}
	if mcMetricsOut != "" {
		mc.Metrics = metrics.NewDecisionMetrics(reg)
	}

	report, err := sim.MonteCarlo(cmd.Context(), eng, mc)
	if err != nil {
		return err
	}

	if mcMetricsOut != "" {
		f, err := os.Create(mcMetricsOut)
		if err != nil {
			return fmt.Errorf("create metrics file: %w", err)
		}
		if err := metrics.WriteText(f, reg); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	switch mcFormat {
	case "json":
		out, err := sim.FormatReportJSON(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), sim.FormatMonteCarloText(report))
	}
	return nil
}
