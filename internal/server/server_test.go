package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	pb "github.com/ppiankov/askiguard/api/askiguard/v1"
	"github.com/ppiankov/askiguard/internal/config"
	"github.com/ppiankov/askiguard/internal/guard"
	"github.com/ppiankov/askiguard/internal/model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = "memory"
	cfg.Command.Timezone = "UTC"
	return cfg
}

// testServer spins up an in-process gRPC server on a random port and returns a client.
func testServer(t *testing.T, configPath string) (*pb.ValidatorClient, *Server, *grpc.ClientConn) {
	t.Helper()

	cfg := testConfig()
	if configPath != "" {
		var err error
		cfg, _, err = config.LoadConfigWithHash(configPath)
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
	}
	svc, err := guard.New(cfg, "sha256:test", guard.WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("guard.New: %v", err)
	}

	srv := New(svc, Config{ConfigPath: configPath})

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go srv.ServeOn(lis)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		srv.GracefulStop()
		t.Fatalf("dial: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		srv.GracefulStop()
		svc.Close()
	})
	return pb.NewValidatorClient(conn), srv, conn
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func reminder(id string, sense model.SenseType) model.Command {
	return model.Command{
		ID:          id,
		Title:       "Купить молоко",
		ScheduledAt: testNow.Add(time.Hour).Format(time.RFC3339),
		ActionType:  model.ActionPush,
		SenseType:   sense,
		RuntimeType: model.RuntimeScheduled,
	}
}

func TestValidateOutputBlocksFakeCapability(t *testing.T) {
	client, _, _ := testServer(t, "")

	resp, err := client.ValidateOutput(context.Background(), &pb.OutputRequest{Text: "Я позвоню маме в 18:00"})
	if err != nil {
		t.Fatalf("ValidateOutput: %v", err)
	}
	if !resp.Blocked || resp.Reason != model.ReasonFakeCapability {
		t.Fatalf("expected fake_capability block, got %+v", resp)
	}
	if resp.Sanitized == resp.Original {
		t.Error("sanitized text must replace blocked original")
	}
}

func TestValidateOutputVerifiesAgainstHistory(t *testing.T) {
	client, _, _ := testServer(t, "")

	req := &pb.OutputRequest{
		Text: "Ты говорил про встречу с Олегом",
		Context: model.Context{History: []model.Turn{
			{Role: "user", Text: "договорились про встречу с Олегом"},
		}},
	}
	resp, err := client.ValidateOutput(context.Background(), req)
	if err != nil {
		t.Fatalf("ValidateOutput: %v", err)
	}
	if resp.Blocked {
		t.Errorf("claim backed by history should pass, got %s", resp.Reason)
	}
}

func TestValidateInput(t *testing.T) {
	client, _, _ := testServer(t, "")

	resp, err := client.ValidateInput(context.Background(), &pb.InputRequest{Text: "привет"})
	if err != nil {
		t.Fatalf("ValidateInput: %v", err)
	}
	if !resp.Valid {
		t.Errorf("expected valid input, got %+v", resp)
	}
}

func TestValidateCommandNowOverride(t *testing.T) {
	client, _, _ := testServer(t, "")

	cmd := reminder("c1", model.SenseReminder)
	resp, err := client.ValidateCommand(context.Background(), &pb.CommandRequest{
		Command: cmd,
		Now:     testNow.Add(2 * time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("ValidateCommand: %v", err)
	}
	if !resp.Blocked || resp.BlockedAtLevel == nil || *resp.BlockedAtLevel != model.LevelLogic {
		t.Fatalf("expected block at logic level, got %+v", resp)
	}

	_, err = client.ValidateCommand(context.Background(), &pb.CommandRequest{Command: cmd, Now: "yesterday"})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestQuickValidateSkipsContext(t *testing.T) {
	client, _, _ := testServer(t, "")

	resp, err := client.ValidateCommand(context.Background(), &pb.CommandRequest{
		Command: reminder("", model.SenseReminder),
		Quick:   true,
	})
	if err != nil {
		t.Fatalf("ValidateCommand: %v", err)
	}
	if !resp.Valid {
		t.Fatalf("expected valid, got %+v", resp.Errors)
	}
	for _, lvl := range resp.Metadata.LevelsPassed {
		if lvl > model.LevelLogic {
			t.Errorf("quick validation ran level %d", lvl)
		}
	}
}

func TestApprovalFlow(t *testing.T) {
	client, _, _ := testServer(t, "")
	ctx := context.Background()

	resp, err := client.ValidateCommand(ctx, &pb.CommandRequest{Command: reminder("m1", model.SenseManagement)})
	if err != nil {
		t.Fatalf("ValidateCommand: %v", err)
	}
	if !resp.ApprovalRequired {
		t.Fatal("management command should require approval")
	}

	pending, err := client.ListPending(ctx, &pb.ListPendingRequest{})
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending.Approvals) != 1 || pending.Approvals[0].CommandID != "m1" {
		t.Fatalf("pending = %+v", pending.Approvals)
	}

	approveResp, err := client.Approve(ctx, &pb.ApproveRequest{CommandID: "m1", By: "user", Duration: "1h"})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approveResp.Status != "approved" {
		t.Errorf("expected approved, got %s", approveResp.Status)
	}

	pending, err = client.ListPending(ctx, &pb.ListPendingRequest{})
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending.Approvals) != 0 {
		t.Errorf("expected no pending approvals, got %d", len(pending.Approvals))
	}

	if _, err := client.Deny(ctx, &pb.DenyRequest{CommandID: "m1"}); status.Code(err) != codes.FailedPrecondition {
		t.Errorf("deny after approve: expected FailedPrecondition, got %v", err)
	}
	if _, err := client.Deny(ctx, &pb.DenyRequest{CommandID: "nope"}); status.Code(err) != codes.NotFound {
		t.Errorf("deny unknown: expected NotFound, got %v", err)
	}
	if _, err := client.Approve(ctx, &pb.ApproveRequest{CommandID: "m1", Duration: "soon"}); status.Code(err) != codes.InvalidArgument {
		t.Errorf("bad duration: expected InvalidArgument, got %v", err)
	}
}

func TestLearnAndStats(t *testing.T) {
	client, _, _ := testServer(t, "")
	ctx := context.Background()

	learn, err := client.Learn(ctx, &pb.LearnRequest{Pattern: "секретная фраза", Kind: "bad"})
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if !learn.Changed {
		t.Error("expected pattern added")
	}
	if _, err := client.Learn(ctx, &pb.LearnRequest{Pattern: "x", Kind: "ugly"}); status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument for unknown kind, got %v", err)
	}

	resp, err := client.ValidateOutput(ctx, &pb.OutputRequest{Text: "вот секретная фраза"})
	if err != nil {
		t.Fatalf("ValidateOutput: %v", err)
	}
	if resp.Reason != model.ReasonLearnedPattern {
		t.Errorf("reason = %s", resp.Reason)
	}

	stats, err := client.Stats(ctx, &pb.StatsRequest{})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalChecked != 1 || stats.Blocked != 1 || stats.LearnedBad != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ByReason[model.ReasonLearnedPattern] != 1 {
		t.Errorf("by reason = %v", stats.ByReason)
	}
}

func TestExecutionLog(t *testing.T) {
	client, _, _ := testServer(t, "")
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := client.ValidateCommand(ctx, &pb.CommandRequest{Command: reminder(id, model.SenseReminder)}); err != nil {
			t.Fatalf("ValidateCommand: %v", err)
		}
	}

	resp, err := client.ExecutionLog(ctx, &pb.ExecutionLogRequest{Limit: 2})
	if err != nil {
		t.Fatalf("ExecutionLog: %v", err)
	}
	if len(resp.Entries) != 2 || resp.Entries[1].CommandID != "c" {
		t.Errorf("entries = %+v", resp.Entries)
	}
}

func TestHealthServing(t *testing.T) {
	_, _, conn := testServer(t, "")

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: pb.ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %s", resp.Status)
	}
}

func TestConcurrentValidations(t *testing.T) {
	client, _, _ := testServer(t, "")

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.ValidateOutput(context.Background(), &pb.OutputRequest{Text: "Хорошо, записала."})
			if err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent validation error: %v", err)
	}
}

func TestHotReloadConfigChange(t *testing.T) {
	patternsPath := writeTempFile(t, "patterns.yaml", "manipulation: [\"только я тебя понимаю\"]\n")
	configPath := writeTempFile(t, "config.yaml", `
storage:
  driver: memory
command:
  timezone: UTC
output:
  patterns_path: `+patternsPath+`
`)
	client, srv, _ := testServer(t, configPath)
	ctx := context.Background()

	resp1, err := client.ValidateOutput(ctx, &pb.OutputRequest{Text: "без тебя мне скучно"})
	if err != nil {
		t.Fatalf("ValidateOutput before reload: %v", err)
	}
	if resp1.Blocked {
		t.Fatalf("expected pass before reload, got %s", resp1.Reason)
	}

	if err := os.WriteFile(patternsPath, []byte("manipulation: [\"без тебя мне\"]\n"), 0644); err != nil {
		t.Fatalf("write patterns: %v", err)
	}

	// Manually trigger reload (no need to wait for fsnotify in tests)
	if err := srv.ReloadConfig(); err != nil {
		t.Fatalf("ReloadConfig: %v", err)
	}

	resp2, err := client.ValidateOutput(ctx, &pb.OutputRequest{Text: "без тебя мне скучно"})
	if err != nil {
		t.Fatalf("ValidateOutput after reload: %v", err)
	}
	if resp2.Reason != model.ReasonManipulation {
		t.Errorf("expected manipulation after reload, got %q", resp2.Reason)
	}
}

func TestReloaderSkipsMissingPaths(t *testing.T) {
	existing := writeTempFile(t, "config.yaml", "")
	r, err := NewReloader(func() error { return nil }, []string{"", existing, filepath.Join(t.TempDir(), "missing.yaml")})
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	defer r.watcher.Close()

	if got := r.Paths(); len(got) != 1 || got[0] != existing {
		t.Errorf("paths = %v", got)
	}
}

func TestReloaderDebouncesWrites(t *testing.T) {
	path := writeTempFile(t, "config.yaml", "a: 1\n")

	var mu sync.Mutex
	calls := 0
	done := make(chan struct{}, 1)
	r, err := NewReloader(func() error {
		mu.Lock()
		calls++
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, []string{path})
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	for i := range 3 {
		if err := os.WriteFile(path, []byte{byte('a' + i), '\n'}, 0644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reload not triggered")
	}
	time.Sleep(2 * reloadDebounce)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected 1 debounced reload, got %d", calls)
	}
}
