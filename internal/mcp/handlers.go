package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/askiguard/internal/approval"
	"github.com/ppiankov/askiguard/internal/command"
	"github.com/ppiankov/askiguard/internal/guard"
	"github.com/ppiankov/askiguard/internal/model"
)

// --- Input/Output types ---

// CheckOutputInput defines parameters for the askiguard_check_output tool.
type CheckOutputInput struct {
	Text    string   `json:"text" jsonschema:"assistant response to check"`
	History []string `json:"history,omitempty" jsonschema:"recent conversation messages used to verify claims about the past"`
	Feed    []string `json:"feed,omitempty" jsonschema:"recently saved notes and reminders"`
}

// TextCheckOutput contains the decision for a text check.
type TextCheckOutput struct {
	Valid          bool     `json:"valid"`
	Blocked        bool     `json:"blocked"`
	Reason         string   `json:"reason,omitempty"`
	MatchedPattern string   `json:"matched_pattern,omitempty"`
	Sanitized      string   `json:"sanitized"`
	Confidence     float64  `json:"confidence"`
	Warnings       []string `json:"warnings,omitempty"`
}

// CheckInputInput defines parameters for the askiguard_check_input tool.
type CheckInputInput struct {
	Text string `json:"text" jsonschema:"user input to check"`
}

// ValidateCommandInput defines parameters for the askiguard_validate_command tool.
type ValidateCommandInput struct {
	Command     model.Command `json:"command" jsonschema:"command to validate"`
	UserRequest string        `json:"user_request,omitempty" jsonschema:"original user request, used for time and relevance checks"`
	DryRun      bool          `json:"dry_run,omitempty" jsonschema:"validate without writing to the execution log or filing approvals"`
}

// ValidateCommandOutput summarizes a command validation.
type ValidateCommandOutput struct {
	Valid            bool          `json:"valid"`
	Blocked          bool          `json:"blocked"`
	BlockedAtLevel   *int          `json:"blocked_at_level,omitempty"`
	Message          string        `json:"message"`
	Errors           []model.Issue `json:"errors,omitempty"`
	Warnings         []model.Issue `json:"warnings,omitempty"`
	ApprovalRequired bool          `json:"approval_required"`
	ApprovalVerifier string        `json:"approval_verifier,omitempty"`
	RiskScore        int           `json:"risk_score"`
	RiskLevel        string        `json:"risk_level"`
}

// LearnInput defines parameters for the askiguard_learn tool.
type LearnInput struct {
	Kind    string `json:"kind" jsonschema:"bad or good"`
	Pattern string `json:"pattern" jsonschema:"phrase to match, case-insensitive"`
	Remove  bool   `json:"remove,omitempty" jsonschema:"remove instead of add"`
}

// LearnOutput reports whether anything changed.
type LearnOutput struct {
	Changed bool `json:"changed"`
}

// ApproveInput defines parameters for the askiguard_approve tool.
type ApproveInput struct {
	CommandID string `json:"command_id" jsonschema:"id of the command awaiting approval"`
	Duration  string `json:"duration,omitempty" jsonschema:"approval duration (e.g. 1h), omit for one-time approval"`
}

// DenyInput defines parameters for the askiguard_deny tool.
type DenyInput struct {
	CommandID string `json:"command_id" jsonschema:"id of the command awaiting approval"`
}

// ResolveOutput confirms an approval decision.
type ResolveOutput struct {
	CommandID string `json:"command_id"`
	Status    string `json:"status"`
	Duration  string `json:"duration,omitempty"`
}

// PendingInput is empty; no parameters needed.
type PendingInput struct{}

// PendingOutput lists all pending approvals.
type PendingOutput struct {
	Approvals []PendingItem `json:"approvals"`
}

// PendingItem describes a single approval request.
type PendingItem struct {
	CommandID string `json:"command_id"`
	Title     string `json:"title"`
	Reason    string `json:"reason"`
	Verifier  string `json:"verifier"`
	CreatedAt string `json:"created_at"`
}

// StatsInput is empty.
type StatsInput struct{}

// --- Handlers ---

func (s *Server) handleCheckOutput(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckOutputInput) (*mcpsdk.CallToolResult, TextCheckOutput, error) {
	vctx := model.Context{}
	for _, h := range input.History {
		vctx.History = append(vctx.History, model.Turn{Text: h})
	}
	for _, f := range input.Feed {
		vctx.Feed = append(vctx.Feed, model.FeedItem{Text: f})
	}
	return textResult(s.svc.ValidateOutput(input.Text, vctx))
}

func (s *Server) handleCheckInput(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckInputInput) (*mcpsdk.CallToolResult, TextCheckOutput, error) {
	return textResult(s.svc.ValidateInput(input.Text))
}

func textResult(res model.ValidationResult) (*mcpsdk.CallToolResult, TextCheckOutput, error) {
	out := TextCheckOutput{
		Valid:          res.Valid,
		Blocked:        res.Blocked,
		Reason:         string(res.Reason),
		MatchedPattern: res.MatchedPattern,
		Sanitized:      res.Sanitized,
		Confidence:     res.Confidence,
		Warnings:       res.Warnings,
	}
	if res.Blocked {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleValidateCommand(ctx context.Context, req *mcpsdk.CallToolRequest, input ValidateCommandInput) (*mcpsdk.CallToolResult, ValidateCommandOutput, error) {
	res := s.svc.ValidateCommand(input.Command, input.UserRequest, command.Options{DryRun: input.DryRun})
	out := ValidateCommandOutput{
		Valid:            res.Valid,
		Blocked:          res.Blocked,
		BlockedAtLevel:   res.BlockedAtLevel,
		Message:          command.FormatUser(res),
		Errors:           res.Errors,
		Warnings:         res.Warnings,
		ApprovalRequired: res.ApprovalRequired,
		ApprovalVerifier: res.ApprovalVerifier,
		RiskScore:        res.RiskScore,
		RiskLevel:        string(res.RiskLevel),
	}
	if res.Blocked {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleLearn(ctx context.Context, req *mcpsdk.CallToolRequest, input LearnInput) (*mcpsdk.CallToolResult, LearnOutput, error) {
	changed, err := s.svc.Learn(input.Kind, input.Pattern, "mcp", input.Remove)
	if err != nil {
		return nil, LearnOutput{}, err
	}
	return nil, LearnOutput{Changed: changed}, nil
}

func (s *Server) handleApprove(ctx context.Context, req *mcpsdk.CallToolRequest, input ApproveInput) (*mcpsdk.CallToolResult, ResolveOutput, error) {
	if input.CommandID == "" {
		return nil, ResolveOutput{}, fmt.Errorf("command_id is required")
	}

	var duration time.Duration
	if input.Duration != "" {
		var err error
		duration, err = time.ParseDuration(input.Duration)
		if err != nil {
			return nil, ResolveOutput{}, fmt.Errorf("invalid duration %q: %w", input.Duration, err)
		}
	}

	if err := s.svc.Approvals().Approve(input.CommandID, "mcp", duration); err != nil {
		return nil, ResolveOutput{}, err
	}

	out := ResolveOutput{CommandID: input.CommandID, Status: string(approval.StatusApproved)}
	if duration > 0 {
		out.Duration = duration.String()
	}
	return nil, out, nil
}

func (s *Server) handleDeny(ctx context.Context, req *mcpsdk.CallToolRequest, input DenyInput) (*mcpsdk.CallToolResult, ResolveOutput, error) {
	if input.CommandID == "" {
		return nil, ResolveOutput{}, fmt.Errorf("command_id is required")
	}
	if err := s.svc.Approvals().Deny(input.CommandID, "mcp"); err != nil {
		return nil, ResolveOutput{}, err
	}
	return nil, ResolveOutput{CommandID: input.CommandID, Status: string(approval.StatusDenied)}, nil
}

func (s *Server) handlePending(ctx context.Context, req *mcpsdk.CallToolRequest, input PendingInput) (*mcpsdk.CallToolResult, PendingOutput, error) {
	list, err := s.svc.Approvals().List(approval.StatusPending)
	if err != nil {
		return nil, PendingOutput{}, err
	}

	items := make([]PendingItem, len(list))
	for i, a := range list {
		items[i] = PendingItem{
			CommandID: a.CommandID,
			Title:     a.Title,
			Reason:    a.Reason,
			Verifier:  a.Verifier,
			CreatedAt: a.CreatedAt.Format(time.RFC3339),
		}
	}
	return nil, PendingOutput{Approvals: items}, nil
}

func (s *Server) handleStats(ctx context.Context, req *mcpsdk.CallToolRequest, input StatsInput) (*mcpsdk.CallToolResult, guard.Summary, error) {
	return nil, s.svc.Summary(), nil
}
