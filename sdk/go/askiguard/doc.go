// Package askiguard provides in-process validation of assistant output and
// scheduled commands for Go services. It runs the same validators as the
// askiguard server: pattern checks with claim verification for text, and
// the five validation levels for commands.
//
// Usage:
//
//	g, err := askiguard.New(askiguard.WithTimezone("Europe/Moscow"))
//	defer g.Close()
//
//	reply := g.Guard(myLLM)
//	text, err := reply(ctx, "что у меня завтра?")
//
//	res := g.ValidateCommand(cmd, "напомни через 10 минут позвонить маме")
//	if res.Blocked { ... }
//
// Guarded responders never return blocked text: a blocked response is
// replaced by a neutral fallback. The SDK links directly against internal
// packages for zero-subprocess overhead. External users import
// github.com/ppiankov/askiguard/sdk/go/askiguard.
package askiguard
