package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amiengine/internal/policy"
	"github.com/ppiankov/amiengine/internal/policydiff"
	"github.com/ppiankov/amiengine/internal/profile"
)

var diffFormat string

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text", "Output format (text|json)")
}

var diffCmd = &cobra.Command{
	Use:   "diff <old> <new>",
	Short: "Compare two configs or profiles and show changes",
	Long: "Each argument is a config YAML file or a profile name layered over --config.\n" +
		"Shows changed thresholds, weights and grid values, and marks each threshold\n" +
		"change as stricter or looser.",
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	oldCfg, err := resolveConfigArg(args[0])
	if err != nil {
		return fmt.Errorf("load old config: %w", err)
	}

	newCfg, err := resolveConfigArg(args[1])
	if err != nil {
		return fmt.Errorf("load new config: %w", err)
	}

	result := policydiff.Diff(oldCfg, newCfg)
	result.OldLabel = args[0]
	result.NewLabel = args[1]

	switch diffFormat {
	case "json":
		out, err := policydiff.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), policydiff.FormatText(result))
	}

	return nil
}

// resolveConfigArg loads arg as a config file when it exists on disk,
// otherwise as a profile over --config.
func resolveConfigArg(arg string) (*policy.Config, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return policy.LoadConfig(arg)
	}
	base, err := policy.LoadConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	return profile.Resolve(arg, base)
}
