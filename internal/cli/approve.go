package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/askiguard/internal/client"
)

var (
	approveDuration time.Duration
	approveBy       string
	approveServer   string
)

func init() {
	rootCmd.AddCommand(approveCmd)
	approveCmd.Flags().DurationVar(&approveDuration, "duration", 0, "Validity period (e.g., 5m, 1h). Default: one-time use")
	approveCmd.Flags().StringVar(&approveBy, "by", "cli", "Who grants the approval")
	approveCmd.Flags().StringVar(&approveServer, "server", "", "Approve via gRPC server address")
}

var approveCmd = &cobra.Command{
	Use:   "approve <command-id>",
	Short: "Confirm a command that requires approval",
	Long: "Approves a pending approval request. Without --duration, approval is one-time\n" +
		"(consumed when the command runs). With --duration, approval expires after the period.",
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

func runApprove(cmd *cobra.Command, args []string) error {
	id := args[0]

	if approveServer != "" {
		c, err := client.New(approveServer)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Approve(cmd.Context(), id, approveBy, approveDuration); err != nil {
			return err
		}
	} else {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer closeService(svc)
		if err := svc.Approvals().Approve(id, approveBy, approveDuration); err != nil {
			return err
		}
	}

	if approveDuration > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Approved %q for %s\n", id, approveDuration)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Approved %q (one-time use)\n", id)
	}
	return nil
}
