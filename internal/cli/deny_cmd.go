package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/askiguard/internal/client"
)

var (
	denyBy     string
	denyServer string
)

func init() {
	rootCmd.AddCommand(denyCmd)
	denyCmd.Flags().StringVar(&denyBy, "by", "cli", "Who denies the request")
	denyCmd.Flags().StringVar(&denyServer, "server", "", "Deny via gRPC server address")
}

var denyCmd = &cobra.Command{
	Use:   "deny <command-id>",
	Short: "Reject a command that requires approval",
	Long:  "Denies a pending approval request. The command must not be executed.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeny,
}

func runDeny(cmd *cobra.Command, args []string) error {
	id := args[0]

	if denyServer != "" {
		c, err := client.New(denyServer)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Deny(cmd.Context(), id, denyBy); err != nil {
			return err
		}
	} else {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer closeService(svc)
		if err := svc.Approvals().Deny(id, denyBy); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Denied %q\n", id)
	return nil
}
