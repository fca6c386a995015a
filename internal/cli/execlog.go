package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ppiankov/askiguard/internal/client"
	"github.com/ppiankov/askiguard/internal/model"
)

var (
	execlogLines  int
	execlogFormat string
	execlogServer string
)

func init() {
	rootCmd.AddCommand(execlogCmd)
	execlogCmd.AddCommand(execlogClearCmd)
	execlogCmd.Flags().IntVarP(&execlogLines, "lines", "n", 20, "Number of recent entries to show (0 for all)")
	execlogCmd.Flags().StringVarP(&execlogFormat, "format", "f", "text", "Output format (text|json)")
	execlogCmd.Flags().StringVar(&execlogServer, "server", "", "Read the log from gRPC server address")
}

var execlogCmd = &cobra.Command{
	Use:   "execlog",
	Short: "Show recent command validations",
	Long:  "Lists the execution log written by the last validation level, oldest first.",
	RunE:  runExeclog,
}

var execlogClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every execution log entry",
	RunE:  runExeclogClear,
}

func runExeclog(cmd *cobra.Command, args []string) error {
	var entries []model.ExecutionLogEntry
	if execlogServer != "" {
		c, err := client.New(execlogServer)
		if err != nil {
			return err
		}
		defer c.Close()
		if entries, err = c.ExecutionLog(cmd.Context(), execlogLines); err != nil {
			return err
		}
	} else {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer closeService(svc)
		if execlogLines > 0 {
			entries = svc.ExecutionLog().Recent(execlogLines)
		} else {
			entries = svc.ExecutionLog().Entries()
		}
	}

	if execlogFormat == "json" {
		out, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal entries: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}
	printExeclog(cmd.OutOrStdout(), entries)
	return nil
}

func printExeclog(w io.Writer, entries []model.ExecutionLogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Execution log is empty.")
		return
	}
	fmt.Fprintf(w, "%-20s %-12s %-10s %-6s %-8s %s\n", "TIME", "SENSE", "ACTION", "RISK", "APPROVAL", "TITLE")
	for _, e := range entries {
		approval := "-"
		if e.ApprovalRequired {
			approval = "required"
		}
		fmt.Fprintf(w, "%-20s %-12s %-10s %-6s %-8s %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.SenseType,
			e.ActionType,
			fmt.Sprintf("%d/%s", e.RiskScore, e.RiskLevel),
			approval,
			truncate(e.Title, 40),
		)
	}
}

func runExeclogClear(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	n := svc.ExecutionLog().Len()
	svc.ExecutionLog().Clear()
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d execution log entries\n", n)
	return nil
}
