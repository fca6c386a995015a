package mcp

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/askiguard/internal/config"
	"github.com/ppiankov/askiguard/internal/guard"
	"github.com/ppiankov/askiguard/internal/model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = "memory"
	cfg.Command.Timezone = "UTC"
	svc, err := guard.New(cfg, "sha256:test", guard.WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return New(svc, "test")
}

func assignment(id string) model.Command {
	return model.Command{
		ID:          id,
		Title:       "Забрать посылку",
		ScheduledAt: testNow.Add(2 * time.Hour).Format(time.RFC3339),
		ActionType:  model.ActionPush,
		SenseType:   model.SenseAssignment,
		RuntimeType: model.RuntimeScheduled,
		Acceptor:    "homer",
	}
}

func TestCheckOutputBlocked(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, out, err := s.handleCheckOutput(ctx, &mcpsdk.CallToolRequest{}, CheckOutputInput{
		Text: "Я забронировала столик на восемь",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result for blocked output")
	}
	if !out.Blocked || out.Reason != string(model.ReasonFakeCapability) {
		t.Fatalf("out = %+v", out)
	}
	if strings.Contains(out.Sanitized, "забронировала") {
		t.Errorf("sanitized text echoes blocked text: %q", out.Sanitized)
	}
}

func TestCheckOutputWithHistory(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, out, err := s.handleCheckOutput(ctx, &mcpsdk.CallToolRequest{}, CheckOutputInput{
		Text:    "Ты просила напомнить про посылку",
		History: []string{"напомни про посылку завтра"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatalf("expected verified claim to pass, got %+v", out)
	}
	if !out.Valid {
		t.Errorf("out = %+v", out)
	}
}

func TestCheckInput(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.handleCheckInput(context.Background(), &mcpsdk.CallToolRequest{}, CheckInputInput{
		Text: strings.Repeat("я", 600),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Reason != string(model.ReasonInputTooLong) {
		t.Errorf("reason = %q", out.Reason)
	}
}

func TestValidateCommandAndApprove(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, out, err := s.handleValidateCommand(ctx, &mcpsdk.CallToolRequest{}, ValidateCommandInput{
		Command: assignment("a1"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatalf("expected valid command, got %+v", out)
	}
	if !out.ApprovalRequired || out.ApprovalVerifier != "homer" {
		t.Fatalf("out = %+v", out)
	}
	if !strings.HasPrefix(out.Message, "Нужно подтверждение") {
		t.Errorf("message = %q", out.Message)
	}

	_, pending, err := s.handlePending(ctx, &mcpsdk.CallToolRequest{}, PendingInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending.Approvals) != 1 || pending.Approvals[0].CommandID != "a1" {
		t.Fatalf("pending = %+v", pending.Approvals)
	}

	_, approved, err := s.handleApprove(ctx, &mcpsdk.CallToolRequest{}, ApproveInput{CommandID: "a1", Duration: "30m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approved.Status != "approved" || approved.Duration != "30m0s" {
		t.Errorf("approved = %+v", approved)
	}

	if _, _, err := s.handleDeny(ctx, &mcpsdk.CallToolRequest{}, DenyInput{CommandID: "a1"}); err == nil {
		t.Error("expected error denying an approved command")
	}
}

func TestValidateCommandBlocked(t *testing.T) {
	s := newTestServer(t)

	cmd := assignment("a2")
	cmd.ScheduledAt = "завтра"
	result, out, err := s.handleValidateCommand(context.Background(), &mcpsdk.CallToolRequest{}, ValidateCommandInput{Command: cmd})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result for blocked command")
	}
	if out.BlockedAtLevel == nil || *out.BlockedAtLevel != model.LevelSyntax {
		t.Errorf("blocked at = %v", out.BlockedAtLevel)
	}
	if out.Message != out.Errors[0].Message {
		t.Errorf("message = %q", out.Message)
	}
}

func TestApproveValidation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	if _, _, err := s.handleApprove(ctx, &mcpsdk.CallToolRequest{}, ApproveInput{}); err == nil {
		t.Error("expected error for empty command_id")
	}
	if _, _, err := s.handleApprove(ctx, &mcpsdk.CallToolRequest{}, ApproveInput{CommandID: "x", Duration: "later"}); err == nil {
		t.Error("expected error for bad duration")
	}
	if _, _, err := s.handleApprove(ctx, &mcpsdk.CallToolRequest{}, ApproveInput{CommandID: "missing"}); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestLearnAndStats(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, out, err := s.handleLearn(ctx, &mcpsdk.CallToolRequest{}, LearnInput{Kind: "bad", Pattern: "скидка только сегодня"})
	if err != nil || !out.Changed {
		t.Fatalf("learn: out=%+v err=%v", out, err)
	}
	if _, _, err := s.handleLearn(ctx, &mcpsdk.CallToolRequest{}, LearnInput{Kind: "odd", Pattern: "x"}); err == nil {
		t.Error("expected error for unknown kind")
	}

	_, stats, err := s.handleStats(ctx, &mcpsdk.CallToolRequest{}, StatsInput{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.LearnedBad != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestToolRegistration(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	ss, err := s.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer ss.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer cs.Close()

	res, err := cs.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	for _, want := range []string{
		"askiguard_check_output", "askiguard_check_input", "askiguard_validate_command",
		"askiguard_learn", "askiguard_approve", "askiguard_deny", "askiguard_pending", "askiguard_stats",
	} {
		if !slices.Contains(names, want) {
			t.Errorf("tool %q not registered (have %v)", want, names)
		}
	}
}
