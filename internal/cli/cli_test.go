package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/askiguard/internal/guard"
	"github.com/ppiankov/askiguard/internal/model"
)

const testNow = "2026-03-10T12:00:00Z"

// writeTestConfig writes a config whose state, approvals and audit log
// live under a temp dir and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := "command:\n" +
		"  timezone: UTC\n" +
		"storage:\n" +
		"  driver: file\n" +
		"  path: " + filepath.Join(dir, "state") + "\n" +
		"approvals_dir: " + filepath.Join(dir, "pending") + "\n" +
		"audit_log: " + filepath.Join(dir, "audit.jsonl") + "\n"
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// resetFlags restores flag globals, which persist between Execute calls.
func resetFlags() {
	configPath = ""
	outputHistory, outputFeed = nil, nil
	outputInput, outputFormat, outputServer = false, "text", ""
	commandFile, commandRequest, commandNow = "-", "", ""
	commandDryRun, commandQuick, commandFormat, commandServer = false, false, "operator", ""
	learnRemove, learnServer = false, ""
	statsFormat, statsServer = "text", ""
	pendingAll, pendingServer = false, ""
	approveDuration, approveBy, approveServer = 0, "cli", ""
	execlogLines, execlogFormat, execlogServer = 20, "text", ""
	checkFormat = "text"
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func managementJSON(id string) string {
	return `{"id":"` + id + `","title":"Выключить уведомления","scheduled_at":"2026-03-10T13:00:00Z",` +
		`"action_type":"push","sense_type":"management","runtime_type":"scripted"}`
}

func TestOutputBlocked(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, "", "output", "--config", cfg, "Я позвоню ему за тебя")
	if !errors.Is(err, errBlocked) {
		t.Fatalf("expected errBlocked, got %v", err)
	}
	if !strings.Contains(out, "BLOCKED  fake_capability") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "позвоню ему") {
		t.Error("blocked text must not be echoed")
	}
}

func TestOutputFromStdinJSON(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, "Хорошо, записала.\n", "output", "--config", cfg, "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var res model.ValidationResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, out)
	}
	if !res.Valid || res.Sanitized != "Хорошо, записала." {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestOutputHistoryVerifiesClaim(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := runCLI(t, "", "output", "--config", cfg,
		"--history", "я очень люблю пельмени", "Ты говорил, что любишь пельмени.")
	if err != nil {
		t.Fatalf("claim backed by history should pass, got %v", err)
	}
}

func TestCommandBlockedInPast(t *testing.T) {
	cfg := writeTestConfig(t)
	cmd := `{"title":"Купить молоко","scheduled_at":"2026-03-09T18:00:00Z","action_type":"push","sense_type":"reminder"}`

	out, err := runCLI(t, cmd, "command", "--config", cfg, "--now", testNow)
	if !errors.Is(err, errBlocked) {
		t.Fatalf("expected errBlocked, got %v", err)
	}
	if !strings.Contains(out, "TIME_IN_PAST") || !strings.Contains(out, "BLOCKED at level 2") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestCommandInvalidNow(t *testing.T) {
	cfg := writeTestConfig(t)
	_, err := runCLI(t, managementJSON("x"), "command", "--config", cfg, "--now", "noon")
	if err == nil || errors.Is(err, errBlocked) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestApprovalLifecycle(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, managementJSON("m1"), "command", "--config", cfg, "--now", testNow, "--format", "user")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Нужно подтверждение") {
		t.Errorf("user format: %q", out)
	}

	out, err = runCLI(t, "", "pending", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "m1") || !strings.Contains(out, "pending") {
		t.Errorf("pending list:\n%s", out)
	}

	if _, err := runCLI(t, "", "approve", "--config", cfg, "m1", "--by", "homer"); err != nil {
		t.Fatal(err)
	}

	out, _ = runCLI(t, "", "pending", "--config", cfg)
	if !strings.Contains(out, "No pending approvals.") {
		t.Errorf("approved request still pending:\n%s", out)
	}
	out, _ = runCLI(t, "", "pending", "--config", cfg, "--all")
	if !strings.Contains(out, "approved") {
		t.Errorf("--all should list approved request:\n%s", out)
	}

	if _, err := runCLI(t, "", "deny", "--config", cfg, "m1"); err == nil {
		t.Error("denying a resolved approval should fail")
	}
}

func TestLearnPersistsAcrossInvocations(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, "", "learn", "--config", cfg, "bad", "секретный рецепт")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Learned bad pattern") {
		t.Errorf("learn output: %q", out)
	}

	if _, err := runCLI(t, "", "output", "--config", cfg, "Это мой секретный рецепт"); !errors.Is(err, errBlocked) {
		t.Fatalf("learned pattern should block, got %v", err)
	}

	out, err = runCLI(t, "", "stats", "--config", cfg, "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var s guard.Summary
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if s.LearnedBad != 1 || s.Blocked != 1 || s.ByReason[model.ReasonLearnedPattern] != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestRulesExportImportReset(t *testing.T) {
	cfg := writeTestConfig(t)
	export := filepath.Join(t.TempDir(), "rules.json")

	if _, err := runCLI(t, "", "learn", "--config", cfg, "good", "можно я уточню"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "", "rules", "export", "--config", cfg, export); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "", "rules", "reset", "--config", cfg); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, "", "rules", "import", "--config", cfg, export)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "0 bad, 1 good") {
		t.Errorf("import output: %q", out)
	}
}

func TestExeclogListAndClear(t *testing.T) {
	cfg := writeTestConfig(t)
	cmd := `{"title":"Купить молоко","scheduled_at":"2026-03-10T18:00:00Z","action_type":"push","sense_type":"reminder"}`

	if _, err := runCLI(t, cmd, "command", "--config", cfg, "--now", testNow); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, "", "execlog", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Купить молоко") {
		t.Errorf("execlog:\n%s", out)
	}

	out, _ = runCLI(t, "", "execlog", "clear", "--config", cfg)
	if !strings.Contains(out, "Cleared 1") {
		t.Errorf("clear: %q", out)
	}
}

func TestAuditVerifyUsesConfiguredLog(t *testing.T) {
	cfg := writeTestConfig(t)

	runCLI(t, "", "output", "--config", cfg, "Обещаю, что не забуду")
	out, err := runCLI(t, "", "audit", "verify", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "OK: 1 entries verified") {
		t.Errorf("verify: %q", out)
	}
}

func TestDoctor(t *testing.T) {
	cfg := writeTestConfig(t)
	checks := diagnose(cfg)
	for _, c := range checks {
		if !c.ok {
			t.Errorf("check %s failed: %s", c.label, c.detail)
		}
	}

	bad := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(bad, []byte("command:\n  timezone: Mars/Olympus\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := printChecks(&buf, diagnose(bad)); err == nil {
		t.Errorf("doctor should fail on an invalid timezone:\n%s", buf.String())
	}
}

func TestCheckScenarios(t *testing.T) {
	cfg := writeTestConfig(t)
	dir := t.TempDir()
	scenario := `
name: smoke
now: "2026-03-10T12:00:00Z"
cases:
  - output: {text: "Гарантирую, всё будет хорошо"}
    expect: false_promise
  - command:
      command: {title: "Купить молоко", scheduled_at: "2026-03-09T12:00:00Z", action_type: push, sense_type: reminder}
    expect: TIME_IN_PAST
`
	if err := os.WriteFile(filepath.Join(dir, "smoke.yaml"), []byte(scenario), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "", "check", "--config", cfg, "--scenario", filepath.Join(dir, "*.yaml"))
	if err != nil {
		t.Fatalf("check failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2 of 2 cases passed.") {
		t.Errorf("check output:\n%s", out)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level, format string
		wantErr       bool
	}{
		{"debug", "text", false},
		{"WARN", "json", false},
		{"", "", false},
		{"loud", "text", true},
		{"info", "xml", true},
	}
	for _, tt := range tests {
		_, err := newLogger(io.Discard, tt.level, tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("newLogger(%q, %q) err = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
		}
	}
}
