package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	pb "github.com/ppiankov/askiguard/api/askiguard/v1"
	"github.com/ppiankov/askiguard/internal/command"
	"github.com/ppiankov/askiguard/internal/model"
	"github.com/ppiankov/askiguard/internal/output"
)

const callTimeout = 5 * time.Second

// Client connects to an askiguard gRPC server.
type Client struct {
	conn   *grpc.ClientConn
	client *pb.ValidatorClient
}

// New creates a gRPC client connected to the given address.
// Fail-closed: if the server cannot be reached, validations return blocked.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to validator server: %w", err)
	}
	return &Client{
		conn:   conn,
		client: pb.NewValidatorClient(conn),
	}, nil
}

// ValidateOutput checks an assistant response remotely.
// Fail-closed: any RPC error yields a validator_unavailable block.
func (c *Client) ValidateOutput(ctx context.Context, text string, vctx model.Context) model.ValidationResult {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := c.client.ValidateOutput(ctx, &pb.OutputRequest{Text: text, Context: vctx})
	if err != nil {
		return output.Unavailable(text)
	}
	return *resp
}

// ValidateInput checks user input remotely. Fail-closed.
func (c *Client) ValidateInput(ctx context.Context, text string) model.ValidationResult {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := c.client.ValidateInput(ctx, &pb.InputRequest{Text: text})
	if err != nil {
		return output.Unavailable(text)
	}
	return *resp
}

// ValidateCommand validates a command remotely.
// Fail-closed: any RPC error yields a VALIDATOR_UNAVAILABLE block.
func (c *Client) ValidateCommand(ctx context.Context, cmd model.Command, userRequest string, opts command.Options) *model.CommandValidationResult {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req := &pb.CommandRequest{Command: cmd, UserRequest: userRequest, DryRun: opts.DryRun}
	if !opts.Now.IsZero() {
		req.Now = opts.Now.Format(time.RFC3339)
	}
	resp, err := c.client.ValidateCommand(ctx, req)
	if err != nil {
		return command.Unavailable(time.Now(), err)
	}
	return resp
}

// QuickValidate runs only the syntax and logic levels remotely.
// Fail-closed like ValidateCommand.
func (c *Client) QuickValidate(ctx context.Context, cmd model.Command) *model.CommandValidationResult {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := c.client.ValidateCommand(ctx, &pb.CommandRequest{Command: cmd, Quick: true})
	if err != nil {
		return command.Unavailable(time.Now(), err)
	}
	return resp
}

// Learn adds or removes a learned pattern. kind is "bad" or "good".
func (c *Client) Learn(ctx context.Context, kind, pattern string, remove bool) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := c.client.Learn(ctx, &pb.LearnRequest{Kind: kind, Pattern: pattern, Remove: remove, Source: "client"})
	if err != nil {
		return false, err
	}
	return resp.Changed, nil
}

// Stats returns output check counters.
func (c *Client) Stats(ctx context.Context) (*pb.StatsResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return c.client.Stats(ctx, &pb.StatsRequest{})
}

// Approve grants a pending command approval via the remote server.
func (c *Client) Approve(ctx context.Context, commandID, by string, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req := &pb.ApproveRequest{CommandID: commandID, By: by}
	if duration > 0 {
		req.Duration = duration.String()
	}

	_, err := c.client.Approve(ctx, req)
	return err
}

// Deny rejects a pending command approval via the remote server.
func (c *Client) Deny(ctx context.Context, commandID, by string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := c.client.Deny(ctx, &pb.DenyRequest{CommandID: commandID, By: by})
	return err
}

// ListPending returns all pending approvals from the remote server.
func (c *Client) ListPending(ctx context.Context) ([]pb.PendingApproval, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := c.client.ListPending(ctx, &pb.ListPendingRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Approvals, nil
}

// ExecutionLog returns the last limit execution log entries; zero means all.
func (c *Client) ExecutionLog(ctx context.Context, limit int) ([]model.ExecutionLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := c.client.ExecutionLog(ctx, &pb.ExecutionLogRequest{Limit: limit})
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
