package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amiengine/internal/audit"
	"github.com/ppiankov/amiengine/internal/model"
)

var (
	auditRun      string
	auditMinLevel int
	auditFrom     string
	auditTo       string
	auditFormat   string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditShowCmd)
	auditShowCmd.Flags().StringVar(&auditRun, "run", "", "Only records of this run ID")
	auditShowCmd.Flags().IntVar(&auditMinLevel, "min-level", 0, "Only records at or above this escalation level")
	auditShowCmd.Flags().StringVar(&auditFrom, "from", "", "Start time filter (RFC3339)")
	auditShowCmd.Flags().StringVar(&auditTo, "to", "", "End time filter (RFC3339)")
	auditShowCmd.Flags().StringVarP(&auditFormat, "format", "f", "text", "Output format (text|json|csv)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Decision log operations",
	Long:  "Commands for verifying and inspecting the hash-chained decision log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify hash chain integrity of a decision log",
	Long:  "Walks the JSONL decision log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

var auditShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Show a filtered timeline of recorded decisions",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditShow,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(args[0])
	if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	os.Exit(1)
	return nil
}

func runAuditShow(cmd *cobra.Command, args []string) error {
	filter := audit.Filter{RunID: auditRun}
	if cmd.Flags().Changed("min-level") {
		lvl := model.Level(auditMinLevel)
		if !lvl.Valid() {
			return fmt.Errorf("invalid --min-level %d", auditMinLevel)
		}
		filter.MinLevel = &lvl
	}

	if auditFrom != "" {
		from, err := time.Parse(time.RFC3339, auditFrom)
		if err != nil {
			return fmt.Errorf("invalid --from time %q: %w", auditFrom, err)
		}
		filter.From = from
	}

	if auditTo != "" {
		to, err := time.Parse(time.RFC3339, auditTo)
		if err != nil {
			return fmt.Errorf("invalid --to time %q: %w", auditTo, err)
		}
		filter.To = to
	}

	report, err := audit.Read(args[0], filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch auditFormat {
	case "json":
		js, err := audit.FormatJSON(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, js)
	case "csv":
		return audit.WriteCSV(out, report.Records)
	default:
		fmt.Fprint(out, audit.FormatTimeline(report))
	}
	return nil
}
