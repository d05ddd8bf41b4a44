package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/store"
)

var (
	historyDB    string
	historyLimit int
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.PersistentFlags().StringVar(&historyDB, "db", "", "Decision database (default ~/.amiengine/decisions.db)")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyVerifyCmd)
	historyListCmd.Flags().IntVarP(&historyLimit, "lines", "n", 20, "Number of recent decisions to show")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect decisions saved with --store",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent stored decisions",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the trace of a stored decision",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyVerifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Check a stored trace still hashes to its recorded hash",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryVerify,
}

func openStore() (*store.Store, error) {
	path := historyDB
	if path == "" {
		path = store.DefaultPath()
	}
	return store.Open(path)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No stored decisions.")
		return nil
	}
	fmt.Fprintf(out, "%-36s %-19s %-14s %-16s %-6s %s\n", "ID", "CREATED", "REASON", "LEVEL", "HUMAN", "CUS")
	for _, e := range entries {
		fmt.Fprintf(out, "%-36s %-19s %-14s %-16s %-6t %.3f\n",
			e.ID,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Reason,
			model.LevelLabel(e.Level),
			e.HumanEscalation,
			e.CUS,
		)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	t, err := st.Trace(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), t)
}

func runHistoryVerify(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Verify(cmd.Context(), args[0]); err != nil {
		return err
	}
	e, err := st.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s %s\n", e.ID, e.TraceHash)
	return nil
}
