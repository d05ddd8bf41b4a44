package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amiengine/internal/scenario"
)

var testFormat string

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.Flags().StringVarP(&testFormat, "format", "f", "text", "Output format (text|json)")
}

var testCmd = &cobra.Command{
	Use:   "test <scenario.yaml>...",
	Short: "Run scenario files and check decision expectations",
	Long: "Each scenario file lists raw states with expected reason, level, human\n" +
		"escalation, soft clamp or action. Cases run on --config with the scenario's\n" +
		"own profile and overrides. Exits 1 if any expectation fails.",
	Args: cobra.MinimumNArgs(1),
	RunE: runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	var results []*scenario.RunResult
	failed := 0
	for _, path := range args {
		r, err := scenario.LoadAndRun(path, flagConfig)
		if err != nil {
			return err
		}
		if r.Failed > 0 {
			failed++
		}
		results = append(results, r)
	}

	switch testFormat {
	case "json":
		out, err := scenario.FormatJSON(results)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), scenario.FormatText(results))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}
