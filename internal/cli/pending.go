package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/askiguard/internal/approval"
	"github.com/ppiankov/askiguard/internal/client"
)

var (
	pendingAll    bool
	pendingServer string
)

func init() {
	rootCmd.AddCommand(pendingCmd)
	pendingCmd.Flags().BoolVar(&pendingAll, "all", false, "Include approved, denied, consumed and expired requests")
	pendingCmd.Flags().StringVar(&pendingServer, "server", "", "List via gRPC server address")
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List approval requests",
	Long:  "Shows approval requests filed for commands that need confirmation.",
	RunE:  runPending,
}

type pendingRow struct {
	id, status, verifier, title string
	risk                        int
	created                     time.Time
}

func runPending(cmd *cobra.Command, args []string) error {
	var rows []pendingRow
	if pendingServer != "" {
		c, err := client.New(pendingServer)
		if err != nil {
			return err
		}
		defer c.Close()
		list, err := c.ListPending(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list approvals: %w", err)
		}
		for _, a := range list {
			created, _ := time.Parse(time.RFC3339, a.CreatedAt)
			rows = append(rows, pendingRow{a.CommandID, string(approval.StatusPending), a.Verifier, a.Title, a.RiskScore, created})
		}
	} else {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer closeService(svc)

		status := approval.StatusPending
		if pendingAll {
			status = ""
		}
		list, err := svc.Approvals().List(status)
		if err != nil {
			return fmt.Errorf("failed to list approvals: %w", err)
		}
		for _, a := range list {
			rows = append(rows, pendingRow{a.CommandID, string(a.Status), a.Verifier, a.Title, a.RiskScore, a.CreatedAt})
		}
	}

	w := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(w, "No pending approvals.")
		return nil
	}

	fmt.Fprintf(w, "%-36s %-10s %-10s %-5s %-40s %s\n", "COMMAND", "STATUS", "VERIFIER", "RISK", "TITLE", "CREATED")
	for _, r := range rows {
		fmt.Fprintf(w, "%-36s %-10s %-10s %-5d %-40s %s\n",
			r.id,
			r.status,
			r.verifier,
			r.risk,
			truncate(r.title, 40),
			r.created.Format("2006-01-02 15:04"),
		)
	}
	return nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
