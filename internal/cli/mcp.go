package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	guardmcp "github.com/ppiankov/askiguard/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for assistant integration",
	Long: "Runs askiguard as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes tools: check_output, check_input, validate_command, learn,\n" +
		"approve, deny, pending, stats.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	srv := guardmcp.New(svc, version)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(os.Stderr, "askiguard MCP server running on stdio")
	fmt.Fprintln(os.Stderr)

	err = srv.Run(ctx)

	// Session summary on exit
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Session summary:")
	out, _ := json.MarshalIndent(svc.Summary(), "", "  ")
	fmt.Fprintln(os.Stderr, string(out))

	return err
}
