package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/askiguard/internal/guard"
)

// Server exposes the validation service as MCP tools.
type Server struct {
	mcpServer *mcpsdk.Server
	svc       *guard.Service
}

// New creates an MCP server backed by svc.
func New(svc *guard.Service, version string) *Server {
	if n, err := svc.Approvals().Cleanup(); err != nil {
		slog.Warn("approval cleanup failed", "error", err)
	} else if n > 0 {
		slog.Info("approval cleanup", "removed", n)
	}

	s := &Server{svc: svc}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "askiguard",
			Version: version,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all askiguard tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "askiguard_check_output",
		Description: "Check an assistant response before it is shown. Blocked responses return an error result with the reason and a safe replacement text.",
	}, s.handleCheckOutput)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "askiguard_check_input",
		Description: "Check user input length before it is sent to the model.",
	}, s.handleCheckInput)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "askiguard_validate_command",
		Description: "Validate a reminder/action command through syntax, logic, context, approval and logging levels.",
	}, s.handleValidateCommand)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "askiguard_learn",
		Description: "Add or remove a learned good or bad output pattern.",
	}, s.handleLearn)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "askiguard_approve",
		Description: "Approve a command that returned approval_required. Use the command id.",
	}, s.handleApprove)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "askiguard_deny",
		Description: "Deny a command that returned approval_required.",
	}, s.handleDeny)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "askiguard_pending",
		Description: "List all pending command approvals.",
	}, s.handlePending)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "askiguard_stats",
		Description: "Show output check counters and learned pattern counts.",
	}, s.handleStats)
}
