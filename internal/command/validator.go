// Package command validates scheduled commands produced by the assistant.
//
// A command runs through five levels in order: syntax, logic, context,
// approval and execution log. The first three can block; blocking is
// terminal. Approval and execution log only annotate the result.
package command

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/askiguard/internal/config"
	"github.com/ppiankov/askiguard/internal/model"
	"github.com/ppiankov/askiguard/internal/timeparse"
)

// Recorder receives the execution log entry of every command that reaches
// the last level.
type Recorder interface {
	Append(entry model.ExecutionLogEntry)
}

// Options adjust a single Validate call.
type Options struct {
	// Now overrides the validator clock.
	Now time.Time
	// DryRun builds the execution log entry without recording it.
	DryRun bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithRecorder sets the execution log sink.
func WithRecorder(r Recorder) Option {
	return func(v *Validator) { v.recorder = r }
}

// Validator runs the command pipeline.
type Validator struct {
	mu       sync.RWMutex
	env      *env
	recorder Recorder
	now      func() time.Time
}

// env is the immutable per-config state shared by concurrent runs.
type env struct {
	cfg    config.CommandConfig
	loc    *time.Location
	parser *timeparse.Parser
	known  map[string]bool
}

func newEnv(cfg config.CommandConfig) (*env, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	known := make(map[string]bool, len(cfg.KnownActors))
	for _, a := range cfg.KnownActors {
		known[a] = true
	}
	return &env{cfg: cfg, loc: loc, parser: timeparse.New(loc), known: known}, nil
}

// New creates a Validator.
func New(cfg config.CommandConfig, opts ...Option) (*Validator, error) {
	e, err := newEnv(cfg)
	if err != nil {
		return nil, err
	}
	v := &Validator{env: e, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Reload replaces the configuration. On error the previous one stays.
func (v *Validator) Reload(cfg config.CommandConfig) error {
	e, err := newEnv(cfg)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.env = e
	v.mu.Unlock()
	return nil
}

func (v *Validator) current() *env {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.env
}

// run carries one command through the levels.
type run struct {
	*env
	cmd       model.Command
	request   string
	now       time.Time
	scheduled time.Time
	res       *model.CommandValidationResult
}

type level struct {
	n     int
	check func(r *run)
}

// Validate runs all five levels. userRequest is the utterance the command
// was created from; when empty the context level passes without checks.
func (v *Validator) Validate(cmd model.Command, userRequest string, opts Options) *model.CommandValidationResult {
	levels := []level{
		{model.LevelSyntax, checkSyntax},
		{model.LevelLogic, checkLogic},
		{model.LevelContext, checkContext},
		{model.LevelApproval, checkApproval},
		{model.LevelExecutionLog, func(r *run) { v.writeLog(r, opts.DryRun) }},
	}
	return v.execute(cmd, userRequest, opts.Now, levels)
}

// QuickValidate runs only the syntax and logic levels. Nothing is recorded.
func (v *Validator) QuickValidate(cmd model.Command) *model.CommandValidationResult {
	levels := []level{
		{model.LevelSyntax, checkSyntax},
		{model.LevelLogic, checkLogic},
	}
	return v.execute(cmd, "", time.Time{}, levels)
}

func (v *Validator) execute(cmd model.Command, request string, now time.Time, levels []level) (res *model.CommandValidationResult) {
	if now.IsZero() {
		now = v.now()
	}
	r := &run{
		env:     v.current(),
		cmd:     cmd,
		request: request,
		now:     now,
		res:     model.NewCommandValidationResult(now),
	}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("command validator panic", "command_id", cmd.ID, "panic", p)
			r.res.Fail(model.LevelGuard, CodeValidatorError,
				"Внутренняя ошибка валидатора, команда заблокирована",
				map[string]any{"panic": fmt.Sprint(p)})
			res = v.finalize(r.env, r.res)
		}
	}()

	for _, l := range levels {
		l.check(r)
		if r.res.Blocked {
			break
		}
		r.res.Pass(l.n)
	}
	return v.finalize(r.env, r.res)
}

// Finalize stamps completion, aggregates counts and classifies risk.
func (v *Validator) Finalize(res *model.CommandValidationResult) *model.CommandValidationResult {
	return v.finalize(v.current(), res)
}

func (v *Validator) finalize(e *env, res *model.CommandValidationResult) *model.CommandValidationResult {
	res.Metadata.CompletedAt = v.now()
	if res.Metadata.CompletedAt.Before(res.Metadata.StartedAt) {
		res.Metadata.CompletedAt = res.Metadata.StartedAt
	}
	if !res.Metadata.StartedAt.IsZero() {
		res.Metadata.DurationMs = float64(res.Metadata.CompletedAt.Sub(res.Metadata.StartedAt).Microseconds()) / 1000
	}
	res.Metadata.TotalChecks = len(res.Checks)
	res.Metadata.TotalErrors = len(res.Errors)
	res.Metadata.TotalWarnings = len(res.Warnings)
	res.RiskLevel = model.RiskLevelFor(res.RiskScore, e.cfg.RiskLevels.MediumMin, e.cfg.RiskLevels.HighMin)
	res.Valid = !res.Blocked
	return res
}

// Unavailable is the fail-closed result used when no validator can be
// reached.
func Unavailable(now time.Time, err error) *model.CommandValidationResult {
	res := model.NewCommandValidationResult(now)
	res.Fail(model.LevelGuard, CodeValidatorDown, "Валидатор недоступен, команда заблокирована",
		map[string]any{"error": err.Error()})
	res.Metadata.CompletedAt = now
	res.Metadata.TotalErrors = 1
	return res
}
