package askiguard

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(
		WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")),
		WithMemoryStorage(),
		WithTimezone("UTC"),
		WithClock(func() time.Time { return testNow }),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func reminder(at time.Time) Command {
	return Command{
		Title:       "Позвонить маме",
		ScheduledAt: at.Format(time.RFC3339),
		ActionType:  "push",
		SenseType:   "reminder",
		RuntimeType: "scheduled",
	}
}

func TestValidateOutput(t *testing.T) {
	c := newTestClient(t)

	tests := []struct {
		text    string
		blocked bool
		reason  Reason
	}{
		{"Записала, напомню в шесть.", false, ""},
		{"Я забронировала тебе столик.", true, "fake_capability"},
		{"Даю слово, всё получится.", true, "false_promise"},
		{"Ты говорила, что не любишь кофе.", true, "hallucination"},
	}
	for _, tt := range tests {
		res := c.ValidateOutput(tt.text, Context{})
		if res.Blocked != tt.blocked || res.Reason != tt.reason {
			t.Errorf("%q: blocked=%v reason=%q, want %v %q", tt.text, res.Blocked, res.Reason, tt.blocked, tt.reason)
		}
	}
}

func TestValidateOutputWithFeed(t *testing.T) {
	c := newTestClient(t)
	vctx := Context{Feed: []FeedItem{{Kind: "note", Text: "кофе по утрам не пью"}}}

	if res := c.ValidateOutput("Ты говорила, что кофе не пьёшь.", vctx); res.Blocked {
		t.Errorf("claim backed by feed was blocked: %+v", res)
	}
}

func TestCheckCommand(t *testing.T) {
	c := newTestClient(t)

	res, err := c.CheckCommand(reminder(testNow.Add(time.Hour)), "напомни через час позвонить маме")
	if err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
	if res.RiskScore != 0 {
		t.Errorf("risk = %d", res.RiskScore)
	}

	_, err = c.CheckCommand(reminder(testNow.Add(3*time.Hour)), "напомни через час позвонить маме")
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *BlockedError, got %v", err)
	}
	if blocked.Level != 3 || blocked.Code != "TIME_DEVIATION_EXCEEDED" {
		t.Errorf("blocked = %+v", blocked)
	}
}

func TestLearnAndStats(t *testing.T) {
	c := newTestClient(t)

	if changed, err := c.Learn("bad", "секретный код"); err != nil || !changed {
		t.Fatalf("Learn: changed=%v err=%v", changed, err)
	}
	if _, err := c.Learn("ugly", "x"); err == nil {
		t.Error("unknown kind should fail")
	}

	res := c.ValidateOutput("Вот мой секретный код", Context{})
	if res.Reason != "learned_pattern" {
		t.Errorf("reason = %q", res.Reason)
	}

	s := c.Stats()
	if s.LearnedBad != 1 || s.Blocked != 1 {
		t.Errorf("stats = %+v", s)
	}
}
