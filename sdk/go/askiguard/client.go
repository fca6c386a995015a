package askiguard

import (
	"fmt"

	"github.com/ppiankov/askiguard/internal/command"
	"github.com/ppiankov/askiguard/internal/config"
	"github.com/ppiankov/askiguard/internal/guard"
)

// Client holds both validators and their state for in-process use.
// Thread-safe for concurrent calls.
type Client struct {
	cfg clientConfig
	svc *guard.Service
}

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := clientConfig{source: "sdk"}
	for _, o := range opts {
		o(&cfg)
	}

	conf, hash, err := config.LoadConfigWithHash(cfg.configPath)
	if err != nil {
		return nil, fmt.Errorf("askiguard: failed to load config: %w", err)
	}
	if cfg.memory {
		conf.Storage.Driver = "memory"
	}
	if cfg.timezone != "" {
		conf.Command.Timezone = cfg.timezone
	}

	var gopts []guard.Option
	if cfg.now != nil {
		gopts = append(gopts, guard.WithClock(cfg.now))
	}
	svc, err := guard.New(conf, hash, gopts...)
	if err != nil {
		return nil, fmt.Errorf("askiguard: %w", err)
	}
	return &Client{cfg: cfg, svc: svc}, nil
}

// ValidateOutput checks an assistant response against vctx.
func (c *Client) ValidateOutput(text string, vctx Context) OutputResult {
	return c.svc.ValidateOutput(text, vctx)
}

// ValidateInput checks user input before it is sent upstream.
func (c *Client) ValidateInput(text string) OutputResult {
	return c.svc.ValidateInput(text)
}

// ValidateCommand runs cmd through every validation level. userRequest is
// the utterance the command was built from and may be empty.
func (c *Client) ValidateCommand(cmd Command, userRequest string) *CommandResult {
	return c.svc.ValidateCommand(cmd, userRequest, command.Options{})
}

// CheckCommand is ValidateCommand returning a *BlockedError for blocked
// commands. A command that only needs approval is not an error.
func (c *Client) CheckCommand(cmd Command, userRequest string) (*CommandResult, error) {
	res := c.ValidateCommand(cmd, userRequest)
	if e := blockedError(cmd, res); e != nil {
		return res, e
	}
	return res, nil
}

// Learn adds a learned pattern. kind is "bad" or "good".
func (c *Client) Learn(kind, pattern string) (bool, error) {
	return c.svc.Learn(kind, pattern, c.cfg.source, false)
}

// Stats returns output check counters and stored state sizes.
func (c *Client) Stats() Summary {
	return c.svc.Summary()
}

// Close flushes state and releases storage.
func (c *Client) Close() error {
	return c.svc.Close()
}
