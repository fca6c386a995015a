package askiguard

import (
	"context"
	"time"
)

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	configPath string
	memory     bool
	timezone   string
	now        func() time.Time
	source     string
}

// WithConfigPath sets the config YAML file. Default ~/.askiguard/config.yaml.
func WithConfigPath(path string) Option {
	return func(c *clientConfig) { c.configPath = path }
}

// WithMemoryStorage keeps learned rules, the execution log and approvals
// in memory instead of the configured storage.
func WithMemoryStorage() Option {
	return func(c *clientConfig) { c.memory = true }
}

// WithTimezone sets the zone used to read times without an offset and to
// resolve relative times in user requests.
func WithTimezone(tz string) Option {
	return func(c *clientConfig) { c.timezone = tz }
}

// WithClock sets the time source for command validation.
func WithClock(now func() time.Time) Option {
	return func(c *clientConfig) { c.now = now }
}

// WithSource names this client in learned-pattern audit entries.
func WithSource(source string) Option {
	return func(c *clientConfig) { c.source = source }
}

// GuardOption configures a single Guard call.
type GuardOption func(*guardConfig)

type guardConfig struct {
	context func(ctx context.Context) Context
}

// GuardWithContext supplies the conversation history and feed that claims
// about past conversation are verified against, per call.
func GuardWithContext(fn func(ctx context.Context) Context) GuardOption {
	return func(g *guardConfig) { g.context = fn }
}
