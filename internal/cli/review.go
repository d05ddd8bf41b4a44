package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amiengine/internal/daemon"
	"github.com/ppiankov/amiengine/internal/model"
)

var (
	reviewOutbox string
	reviewState  string
	reviewTTL    time.Duration
	rejectReason string
)

func init() {
	defaults := daemon.DefaultDirConfig()
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.PersistentFlags().StringVar(&reviewOutbox, "outbox", defaults.Outbox, "Outbox directory")
	reviewCmd.PersistentFlags().StringVar(&reviewState, "state", defaults.State, "State directory")
	reviewCmd.PersistentFlags().DurationVar(&reviewTTL, "review-ttl", 24*time.Hour, "Review window used by watch")
	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewRejectCmd)
	reviewRejectCmd.Flags().StringVar(&rejectReason, "reason", "", "Rejection reason")
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review decisions held for a human",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List decisions awaiting review",
	RunE:  runReviewList,
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve an escalated decision",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewApprove,
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject an escalated decision",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewReject,
}

func gateway() *daemon.Gateway {
	return daemon.NewGateway(reviewOutbox, reviewState, reviewTTL)
}

func runReviewList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	pending, err := gateway().Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(out, "No decisions awaiting review.")
		return nil
	}
	fmt.Fprintln(out, "Pending review:")
	for _, p := range pending {
		ttl := time.Until(p.ExpiresAt).Round(time.Minute)
		fmt.Fprintf(out, "  %-24s %-16s %-14s human=%-5t %s (expires in %s)\n",
			p.ID, model.LevelLabel(p.Level), p.Reason, p.HumanEscalation, p.Action, ttl)
	}
	return nil
}

func runReviewApprove(cmd *cobra.Command, args []string) error {
	if err := gateway().Approve(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Approved %s → moved to state/approved/\n", args[0])
	return nil
}

func runReviewReject(cmd *cobra.Command, args []string) error {
	reason := rejectReason
	if reason == "" {
		reason = "rejected by reviewer"
	}
	if err := gateway().Reject(args[0], reason); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rejected %s → moved to state/rejected/\n", args[0])
	return nil
}
