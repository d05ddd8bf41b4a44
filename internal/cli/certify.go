package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amiengine/internal/certify"
)

var (
	certifySuite  string
	certifyFormat string
)

func init() {
	rootCmd.AddCommand(certifyCmd)
	certifyCmd.Flags().StringVar(&certifySuite, "suite", "safety", "Certification suite")
	certifyCmd.Flags().StringVarP(&certifyFormat, "format", "f", "text", "Output format (text|json)")
}

var certifyCmd = &cobra.Command{
	Use:   "certify",
	Short: "Verify a config and profile pass a safety certification suite",
	Long: "Runs a curated set of decision cases against --config and --profile and\n" +
		"reports pass/fail per category. Exit code 0 if all cases pass, 1 if any fail.\n\n" +
		"Available suites: " + fmt.Sprintf("%v", certify.ListSuites()),
	RunE: runCertify,
}

func runCertify(cmd *cobra.Command, args []string) error {
	suite, err := certify.LoadSuite(certifySuite)
	if err != nil {
		return err
	}

	result, err := certify.Run(suite, flagProfile, flagConfig)
	if err != nil {
		return err
	}

	switch certifyFormat {
	case "json":
		out, err := certify.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), certify.FormatText(result))
	}

	if !result.Certified() {
		return fmt.Errorf("suite %s: %d of %d cases failed", suite.Name, result.Failed, result.Total)
	}
	return nil
}
