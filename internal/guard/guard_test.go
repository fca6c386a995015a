package guard

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/askiguard/internal/alert"
	"github.com/ppiankov/askiguard/internal/approval"
	"github.com/ppiankov/askiguard/internal/audit"
	"github.com/ppiankov/askiguard/internal/command"
	"github.com/ppiankov/askiguard/internal/config"
	"github.com/ppiankov/askiguard/internal/model"
	"github.com/ppiankov/askiguard/internal/store"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = "memory"
	cfg.Command.Timezone = "UTC"
	cfg.AuditLog = filepath.Join(t.TempDir(), "audit.jsonl")
	return cfg
}

func newTestService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	s, err := New(cfg, "sha256:test", WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func reminder(id string) model.Command {
	return model.Command{
		ID:          id,
		Title:       "Купить молоко",
		ScheduledAt: testNow.Add(time.Hour).Format(time.RFC3339),
		ActionType:  model.ActionPush,
		SenseType:   model.SenseReminder,
		RuntimeType: model.RuntimeScheduled,
	}
}

func assignment(id string) model.Command {
	cmd := reminder(id)
	cmd.Title = "Позвонить в банк"
	cmd.SenseType = model.SenseAssignment
	cmd.Acceptor = "homer"
	return cmd
}

func replay(t *testing.T, s *Service, filter audit.ReplayFilter) *audit.ReplayResult {
	t.Helper()
	res, err := audit.Replay(s.Config().AuditLog, filter)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	return res
}

func TestOutputBlockIsAuditedByDigest(t *testing.T) {
	s := newTestService(t, testConfig(t))

	text := "Я позвоню маме вечером"
	res := s.ValidateOutput(text, model.Context{})
	if !res.Blocked || res.Reason != model.ReasonFakeCapability {
		t.Fatalf("expected fake_capability block, got %+v", res)
	}

	out := replay(t, s, audit.ReplayFilter{Kind: audit.KindOutput})
	if len(out.Entries) != 1 {
		t.Fatalf("expected 1 output entry, got %d", len(out.Entries))
	}
	e := out.Entries[0]
	if e.Subject != audit.HashLine([]byte(text)) {
		t.Errorf("subject should be text digest, got %q", e.Subject)
	}
	if strings.Contains(e.Subject, "позвоню") {
		t.Error("raw text leaked into audit log")
	}
	if e.Decision != audit.DecisionBlock || e.Reason != string(model.ReasonFakeCapability) {
		t.Errorf("entry = %+v", e)
	}
	if e.ConfigHash != "sha256:test" {
		t.Errorf("config hash = %q", e.ConfigHash)
	}
}

func TestOutputPassIsNotAudited(t *testing.T) {
	s := newTestService(t, testConfig(t))

	if res := s.ValidateOutput("Хорошо, напомню завтра.", model.Context{}); res.Blocked {
		t.Fatalf("unexpected block: %s", res.Reason)
	}
	if out := replay(t, s, audit.ReplayFilter{}); len(out.Entries) != 0 {
		t.Errorf("expected empty audit log, got %d entries", len(out.Entries))
	}
	if s.Stats().Passed != 1 {
		t.Errorf("passed = %d", s.Stats().Passed)
	}
}

func TestInputTooLongIsAudited(t *testing.T) {
	s := newTestService(t, testConfig(t))

	res := s.ValidateInput(strings.Repeat("а", 501))
	if res.Reason != model.ReasonInputTooLong {
		t.Fatalf("reason = %s", res.Reason)
	}
	out := replay(t, s, audit.ReplayFilter{Kind: audit.KindInput})
	if len(out.Entries) != 1 {
		t.Errorf("expected 1 input entry, got %d", len(out.Entries))
	}
}

func TestCommandDecisionsAudited(t *testing.T) {
	s := newTestService(t, testConfig(t))

	pass := s.ValidateCommand(reminder("c1"), "", command.Options{})
	if !pass.Valid {
		t.Fatalf("reminder blocked: %+v", pass.Errors)
	}

	past := reminder("c2")
	past.ScheduledAt = testNow.Add(-24 * time.Hour).Format(time.RFC3339)
	if res := s.ValidateCommand(past, "", command.Options{}); !res.Blocked {
		t.Fatal("expected past command blocked")
	}

	out := replay(t, s, audit.ReplayFilter{Kind: audit.KindCommand})
	if out.Summary.Total != 2 || out.Summary.PassCount != 1 || out.Summary.BlockCount != 1 {
		t.Fatalf("summary = %+v", out.Summary)
	}
	blocked := out.Entries[1]
	if blocked.Subject != "c2" || blocked.Reason != command.CodeTimeInPast || blocked.Level != model.LevelLogic {
		t.Errorf("block entry = %+v", blocked)
	}
	if s.ExecutionLog().Len() != 1 {
		t.Errorf("execution log len = %d", s.ExecutionLog().Len())
	}
}

func TestApprovalFiledOnce(t *testing.T) {
	s := newTestService(t, testConfig(t))

	for range 2 {
		res := s.ValidateCommand(assignment("a1"), "", command.Options{})
		if !res.ApprovalRequired || res.ApprovalVerifier != "homer" {
			t.Fatalf("expected approval by homer, got %+v", res)
		}
	}

	pending, err := s.Approvals().List(approval.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].CommandID != "a1" || pending[0].Verifier != "homer" {
		t.Fatalf("pending = %+v", pending)
	}

	out := replay(t, s, audit.ReplayFilter{Decision: audit.DecisionApproval})
	if out.Summary.ApprovalCount != 2 {
		t.Errorf("approval entries = %d", out.Summary.ApprovalCount)
	}
}

func TestApprovalSkippedWithoutIDOrInDryRun(t *testing.T) {
	s := newTestService(t, testConfig(t))

	s.ValidateCommand(assignment(""), "", command.Options{})
	s.ValidateCommand(assignment("dry"), "", command.Options{DryRun: true})

	pending, err := s.Approvals().List(approval.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending approvals, got %+v", pending)
	}
	if s.ExecutionLog().Len() != 1 {
		t.Errorf("dry run should not reach execution log, len = %d", s.ExecutionLog().Len())
	}
}

func TestAlertsDispatched(t *testing.T) {
	var mu sync.Mutex
	var events []alert.AlertEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev alert.AlertEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Alerts = []alert.AlertConfig{{
		URL:    srv.URL,
		Format: "generic",
		Events: []string{alert.EventBlock, alert.EventApprovalRequired},
	}}
	s, err := New(cfg, "sha256:test", WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatal(err)
	}

	s.ValidateOutput("Я позвоню маме", model.Context{})
	s.ValidateCommand(assignment("a1"), "", command.Options{})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("expected 2 alerts, got %d: %+v", len(events), events)
	}
	seen := map[string]bool{}
	for _, ev := range events {
		seen[ev.Event] = true
		if ev.ConfigHash != "sha256:test" {
			t.Errorf("config hash = %q", ev.ConfigHash)
		}
	}
	if !seen[alert.EventBlock] || !seen[alert.EventApprovalRequired] {
		t.Errorf("events = %v", seen)
	}
}

func TestLearningIsAudited(t *testing.T) {
	s := newTestService(t, testConfig(t))

	if !s.AddBadPattern("  Секретный КЛЮЧ ", "operator") {
		t.Fatal("expected pattern added")
	}
	if s.AddBadPattern("секретный ключ", "operator") {
		t.Error("duplicate should be ignored")
	}
	res := s.ValidateOutput("вот секретный ключ от сервера", model.Context{})
	if res.Reason != model.ReasonLearnedPattern {
		t.Fatalf("reason = %s", res.Reason)
	}
	if !s.RemoveBadPattern("секретный ключ", "operator") {
		t.Fatal("expected pattern removed")
	}

	out := replay(t, s, audit.ReplayFilter{Kind: audit.KindLearn})
	if out.Summary.LearnCount != 2 {
		t.Fatalf("learn entries = %d", out.Summary.LearnCount)
	}
	if out.Entries[0].Subject != "секретный ключ" || out.Entries[0].Reason != "add_bad by operator" {
		t.Errorf("entry = %+v", out.Entries[0])
	}
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	cfg := testConfig(t)
	backend := store.NewMemoryStore()

	s, err := New(cfg, "h1", WithBackend(backend), WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatal(err)
	}
	s.AddGoodPattern("я позвоню тебе сама", "operator")
	s.ValidateCommand(reminder("c1"), "", command.Options{})
	s.rules.Flush()

	again, err := New(cfg, "h1", WithBackend(backend), WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatal(err)
	}
	if got := len(again.Rules().Snapshot().LearnedGoodPatterns); got != 1 {
		t.Errorf("learned good = %d", got)
	}
	if again.ExecutionLog().Len() != 1 {
		t.Errorf("execution log len = %d", again.ExecutionLog().Len())
	}
}

func TestExportImportReset(t *testing.T) {
	s := newTestService(t, testConfig(t))
	s.AddBadPattern("плохая фраза", "test")

	data, err := s.ExportRules()
	if err != nil {
		t.Fatal(err)
	}
	s.ResetRules()
	if n := len(s.Rules().Snapshot().LearnedBadPatterns); n != 0 {
		t.Fatalf("reset left %d patterns", n)
	}
	if err := s.ImportRules(data); err != nil {
		t.Fatal(err)
	}
	if n := len(s.Rules().Snapshot().LearnedBadPatterns); n != 1 {
		t.Errorf("import restored %d patterns", n)
	}
	if err := s.ImportRules([]byte("{not json")); err == nil {
		t.Error("expected error on corrupt import")
	}
}

func TestReloadFile(t *testing.T) {
	s := newTestService(t, testConfig(t))

	dir := t.TempDir()
	pats := filepath.Join(dir, "patterns.yaml")
	if err := os.WriteFile(pats, []byte("fake_capabilities: [\"я телепортируюсь\"]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	content := "storage:\n  driver: memory\ncommand:\n  timezone: UTC\noutput:\n  patterns_path: " + pats + "\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if err := s.ReloadFile(cfgPath); err != nil {
		t.Fatalf("ReloadFile: %v", err)
	}
	if s.ConfigHash() == "sha256:test" {
		t.Error("hash not updated")
	}
	if res := s.ValidateOutput("я телепортируюсь к тебе", model.Context{}); res.Reason != model.ReasonFakeCapability {
		t.Errorf("reloaded pattern not applied, reason = %q", res.Reason)
	}
	if res := s.ValidateOutput("я позвоню маме", model.Context{}); res.Blocked {
		t.Error("replaced list should no longer match")
	}
}

func TestReloadRejectsBadConfig(t *testing.T) {
	s := newTestService(t, testConfig(t))

	cfg := testConfig(t)
	cfg.Command.Timezone = "Mars/Olympus"
	if err := s.Reload(cfg, "bad"); err == nil {
		t.Fatal("expected error")
	}
	if s.ConfigHash() != "sha256:test" {
		t.Errorf("hash changed on failed reload: %q", s.ConfigHash())
	}
}

func TestAuditChainIntact(t *testing.T) {
	s := newTestService(t, testConfig(t))
	s.ValidateOutput("Я позвоню маме", model.Context{})
	s.ValidateCommand(reminder("c1"), "", command.Options{})
	s.AddBadPattern("что-то плохое", "test")

	if r := audit.Verify(s.Config().AuditLog); !r.Valid || r.Lines != 3 {
		t.Errorf("verify = %+v", r)
	}
}

func TestLearnDispatch(t *testing.T) {
	s := newTestService(t, testConfig(t))

	tests := []struct {
		kind    string
		remove  bool
		changed bool
	}{
		{"bad", false, true},
		{"bad", true, true},
		{"good", false, true},
		{"good", false, false},
		{"good", true, true},
		{"bad", true, false},
	}
	for _, tt := range tests {
		changed, err := s.Learn(tt.kind, "фраза для проверки", "test", tt.remove)
		if err != nil {
			t.Fatalf("Learn(%s, remove=%v): %v", tt.kind, tt.remove, err)
		}
		if changed != tt.changed {
			t.Errorf("Learn(%s, remove=%v) = %v, want %v", tt.kind, tt.remove, changed, tt.changed)
		}
	}

	if _, err := s.Learn("ugly", "x", "test", false); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

// brokenBackend fails every read and write.
type brokenBackend struct{}

var errDiskGone = errors.New("disk gone")

func (brokenBackend) Get(string) ([]byte, error) { return nil, errDiskGone }
func (brokenBackend) Put(string, []byte) error { return errDiskGone }
func (brokenBackend) Delete(string) error { return errDiskGone }
func (brokenBackend) Keys(string) ([]string, error) { return nil, errDiskGone }
func (brokenBackend) Close() error { return nil }

func TestStorageFailureDoesNotChangeDecisions(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, "sha256:test",
		WithClock(func() time.Time { return testNow }),
		WithBackend(brokenBackend{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	out := s.ValidateOutput("Я позвоню маме вечером", model.Context{})
	if !out.Blocked || out.Reason != model.ReasonFakeCapability {
		t.Errorf("output = %+v", out)
	}
	if pass := s.ValidateOutput("Хорошо, записала.", model.Context{}); pass.Blocked {
		t.Errorf("clean output blocked: %+v", pass)
	}

	cmd := reminder("m1")
	cmd.SenseType = model.SenseManagement
	cmd.RuntimeType = model.RuntimeScripted
	res := s.ValidateCommand(cmd, "", command.Options{})
	if res.Blocked || !res.ApprovalRequired {
		t.Fatalf("command: blocked=%v approval=%v errors=%v", res.Blocked, res.ApprovalRequired, res.Errors)
	}
	if got := len(res.Metadata.LevelsPassed); got != 5 {
		t.Errorf("levels passed = %v", res.Metadata.LevelsPassed)
	}

	if !s.AddBadPattern("запретная фраза", "test") {
		t.Error("learning must succeed in memory when persistence fails")
	}
	if blocked := s.ValidateOutput("тут запретная фраза", model.Context{}); !blocked.Blocked {
		t.Error("learned pattern must apply without persistence")
	}

	sum := s.Summary()
	if sum.Blocked != 2 || sum.Passed != 1 || sum.ExecutionLogs != 1 {
		t.Errorf("summary = %+v", sum)
	}
}
