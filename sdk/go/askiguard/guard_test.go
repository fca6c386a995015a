package askiguard

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestGuardPassesCleanReply(t *testing.T) {
	c := newTestClient(t)
	reply := c.Guard(func(ctx context.Context, prompt string) (string, error) {
		return "Хорошо, напомню.", nil
	})

	got, err := reply(context.Background(), "напомни позвонить")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Хорошо, напомню." {
		t.Errorf("got %q", got)
	}
}

func TestGuardReplacesBlockedReply(t *testing.T) {
	c := newTestClient(t)
	reply := c.Guard(func(ctx context.Context, prompt string) (string, error) {
		return "Я позвоню ему за тебя.", nil
	})

	got, err := reply(context.Background(), "позвони Пете")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "позвоню ему") {
		t.Errorf("blocked text leaked: %q", got)
	}
	if got == "" {
		t.Error("fallback text should not be empty")
	}
}

func TestGuardSkipsResponderForLongInput(t *testing.T) {
	c := newTestClient(t)
	called := false
	reply := c.Guard(func(ctx context.Context, prompt string) (string, error) {
		called = true
		return "ok", nil
	})

	got, err := reply(context.Background(), strings.Repeat("а", 600))
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("responder should not be called for oversized input")
	}
	if got == "" || got == "ok" {
		t.Errorf("expected input fallback, got %q", got)
	}
}

func TestGuardUsesContext(t *testing.T) {
	c := newTestClient(t)
	reply := c.Guard(
		func(ctx context.Context, prompt string) (string, error) {
			return "Ты упоминал, что собака заболела.", nil
		},
		GuardWithContext(func(ctx context.Context) Context {
			return Context{History: []Turn{{Role: "user", Text: "у меня собака заболела"}}}
		}),
	)

	got, err := reply(context.Background(), "как дела?")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Ты упоминал, что собака заболела." {
		t.Errorf("verified claim was replaced: %q", got)
	}
}

func TestGuardReturnsResponderError(t *testing.T) {
	c := newTestClient(t)
	boom := errors.New("upstream down")
	reply := c.Guard(func(ctx context.Context, prompt string) (string, error) {
		return "", boom
	})

	if _, err := reply(context.Background(), "привет"); !errors.Is(err, boom) {
		t.Errorf("expected upstream error, got %v", err)
	}
}
