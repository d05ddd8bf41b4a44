package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amiengine/internal/trace"
)

var verifyHash string

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyHash, "hash", "", "Expected trace hash (sha256:<hex>)")
}

var verifyCmd = &cobra.Command{
	Use:   "verify <trace.json>",
	Short: "Validate a trace document and print its canonical hash",
	Long: "Checks the trace document against the trace JSON schema and computes the\n" +
		"SHA-256 of its canonical form. With --hash, exits 1 unless they match.",
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args[0])
	if err != nil {
		return fmt.Errorf("read trace: %w", err)
	}
	if err := trace.ValidateSchema(data); err != nil {
		return fmt.Errorf("invalid trace document: %w", err)
	}
	t, err := trace.Parse(data)
	if err != nil {
		return err
	}
	hash, err := trace.Hash(t)
	if err != nil {
		return err
	}

	if verifyHash != "" && verifyHash != hash {
		return fmt.Errorf("trace hash mismatch: expected %s, got %s", verifyHash, hash)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %d steps, %s\n", len(t.Steps), hash)
	return nil
}
