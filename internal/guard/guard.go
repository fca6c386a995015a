// Package guard wires both validators, their persistent state and the
// side channels (audit, approvals, alerts, metrics) into one service that
// transports call.
package guard

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/askiguard/internal/alert"
	"github.com/ppiankov/askiguard/internal/approval"
	"github.com/ppiankov/askiguard/internal/audit"
	"github.com/ppiankov/askiguard/internal/command"
	"github.com/ppiankov/askiguard/internal/config"
	"github.com/ppiankov/askiguard/internal/execlog"
	"github.com/ppiankov/askiguard/internal/metrics"
	"github.com/ppiankov/askiguard/internal/model"
	"github.com/ppiankov/askiguard/internal/output"
	"github.com/ppiankov/askiguard/internal/patterns"
	"github.com/ppiankov/askiguard/internal/rules"
	"github.com/ppiankov/askiguard/internal/store"
)

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source for command validation and approvals.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBackend overrides the storage backend selected by the config.
func WithBackend(b store.Backend) Option {
	return func(s *Service) { s.backend = b }
}

// Service is the validation service.
type Service struct {
	mu      sync.RWMutex
	cfg     *config.Config
	cfgHash string
	alerts  *alert.Dispatcher

	output    *output.Validator
	command   *command.Validator
	rules     *rules.Database
	execlog   *execlog.Log
	approvals *approval.Store
	audit     *audit.Log
	backend   store.Backend
	now       func() time.Time
}

// New creates a Service. A corrupt persisted state is logged and replaced
// by defaults; only unusable configuration is an error.
func New(cfg *config.Config, cfgHash string, opts ...Option) (*Service, error) {
	s := &Service{cfg: cfg, cfgHash: cfgHash, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if s.backend == nil {
		b, err := store.Open(cfg.Storage.Driver, cfg.StoragePath())
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		s.backend = b
	}

	set, err := patterns.Load(cfg.Output.PatternsPath)
	if err != nil {
		s.backend.Close()
		return nil, err
	}

	s.rules = rules.New(s.backend, cfg.Rules)
	if err := s.rules.Load(); err != nil {
		slog.Warn("rule database unreadable, starting from defaults", "error", err)
	}
	s.execlog = execlog.New(s.backend, cfg.Command.ExecutionLogLimit)
	if err := s.execlog.Load(); err != nil {
		slog.Warn("execution log unreadable, starting empty", "error", err)
	}

	s.output = output.New(set, s.rules, cfg.Output)
	s.command, err = command.New(cfg.Command,
		command.WithRecorder(s.execlog),
		command.WithClock(func() time.Time { return s.now() }))
	if err != nil {
		s.backend.Close()
		return nil, err
	}

	if cfg.Storage.Driver == "memory" {
		s.approvals = approval.NewStore(s.backend)
	} else {
		s.approvals, err = approval.NewFileStore(cfg.ApprovalsPath())
		if err != nil {
			s.backend.Close()
			return nil, err
		}
	}

	if cfg.AuditLog != "" {
		s.audit, err = audit.Open(cfg.AuditLog)
		if err != nil {
			s.backend.Close()
			return nil, err
		}
	}
	s.alerts = alert.NewDispatcher(cfg.Alerts)

	s.refreshGauges()
	return s, nil
}

// ValidateOutput checks an assistant response.
func (s *Service) ValidateOutput(text string, ctx model.Context) model.ValidationResult {
	res := s.output.Validate(text, ctx)
	metrics.ObserveOutput(metrics.ValidatorOutput, res)
	if res.Blocked {
		s.recordTextBlock(audit.KindOutput, res)
	}
	return res
}

// ValidateInput checks user input.
func (s *Service) ValidateInput(text string) model.ValidationResult {
	res := s.output.ValidateInput(text)
	metrics.ObserveOutput(metrics.ValidatorInput, res)
	if res.Blocked {
		s.recordTextBlock(audit.KindInput, res)
	}
	return res
}

// recordTextBlock audits a blocked text by digest so unsafe content never
// reaches the audit trail or webhooks.
func (s *Service) recordTextBlock(kind string, res model.ValidationResult) {
	digest := audit.HashLine([]byte(res.Original))
	s.record(audit.AuditEntry{
		Kind:     kind,
		Subject:  digest,
		Decision: audit.DecisionBlock,
		Reason:   string(res.Reason),
	})
	s.alert(alert.AlertEvent{
		Event:   alert.EventBlock,
		Kind:    kind,
		Reason:  string(res.Reason),
		Subject: digest,
	})
}

// ValidateCommand runs the full command pipeline. Commands that need
// approval and carry an ID get a pending approval request.
func (s *Service) ValidateCommand(cmd model.Command, userRequest string, opts command.Options) *model.CommandValidationResult {
	start := time.Now()
	res := s.command.Validate(cmd, userRequest, opts)
	metrics.ObserveCommand(res, time.Since(start))

	subject := cmd.ID
	if subject == "" {
		subject = cmd.Title
	}

	entry := audit.AuditEntry{
		Kind:      audit.KindCommand,
		Subject:   subject,
		Decision:  audit.DecisionPass,
		RiskScore: res.RiskScore,
	}
	switch {
	case res.Blocked:
		first := res.FirstError()
		entry.Decision = audit.DecisionBlock
		entry.Reason = first.Code
		entry.Level = first.Level
		s.alert(alert.AlertEvent{
			Event:     alert.EventBlock,
			Kind:      audit.KindCommand,
			Reason:    first.Code,
			Level:     first.Level,
			Subject:   subject,
			RiskScore: res.RiskScore,
		})
	case res.ApprovalRequired:
		entry.Decision = audit.DecisionApproval
		entry.Reason = res.ApprovalReason
		if !opts.DryRun {
			s.fileApproval(cmd, res)
		}
	}
	s.record(entry)
	return res
}

func (s *Service) fileApproval(cmd model.Command, res *model.CommandValidationResult) {
	if cmd.ID == "" {
		slog.Debug("approval required for command without id, not filed", "title", cmd.Title)
		return
	}
	created, err := s.approvals.File(approval.Request{
		CommandID:   cmd.ID,
		Title:       cmd.Title,
		ScheduledAt: cmd.ScheduledAt,
		Reason:      res.ApprovalReason,
		Verifier:    res.ApprovalVerifier,
		RiskScore:   res.RiskScore,
	})
	if err != nil {
		slog.Warn("approval request not filed", "command_id", cmd.ID, "error", err)
		return
	}
	if created {
		s.alert(alert.AlertEvent{
			Event:     alert.EventApprovalRequired,
			Kind:      audit.KindCommand,
			Reason:    res.ApprovalReason,
			Subject:   cmd.ID,
			RiskScore: res.RiskScore,
		})
	}
}

// QuickValidate runs the syntax and logic levels only.
func (s *Service) QuickValidate(cmd model.Command) *model.CommandValidationResult {
	return s.command.QuickValidate(cmd)
}

// ErrUnknownKind is returned by Learn for kinds other than "bad" and "good".
var ErrUnknownKind = errors.New("pattern kind must be bad or good")

// Learn adds or removes a learned pattern of the given kind.
func (s *Service) Learn(kind, pattern, source string, remove bool) (bool, error) {
	switch {
	case kind == "bad" && !remove:
		return s.AddBadPattern(pattern, source), nil
	case kind == "bad":
		return s.RemoveBadPattern(pattern, source), nil
	case kind == "good" && !remove:
		return s.AddGoodPattern(pattern, source), nil
	case kind == "good":
		return s.RemoveGoodPattern(pattern, source), nil
	default:
		return false, fmt.Errorf("%w, got %q", ErrUnknownKind, kind)
	}
}

// AddBadPattern teaches a blocking pattern.
func (s *Service) AddBadPattern(pattern, source string) bool {
	return s.learned(s.rules.AddBadPattern(pattern, source), "add_bad", pattern, source)
}

// AddGoodPattern teaches an allowing pattern.
func (s *Service) AddGoodPattern(pattern, source string) bool {
	return s.learned(s.rules.AddGoodPattern(pattern, source), "add_good", pattern, source)
}

// RemoveBadPattern forgets a blocking pattern.
func (s *Service) RemoveBadPattern(pattern, source string) bool {
	return s.learned(s.rules.RemoveBadPattern(pattern), "remove_bad", pattern, source)
}

// RemoveGoodPattern forgets an allowing pattern.
func (s *Service) RemoveGoodPattern(pattern, source string) bool {
	return s.learned(s.rules.RemoveGoodPattern(pattern), "remove_good", pattern, source)
}

func (s *Service) learned(changed bool, op, pattern, source string) bool {
	if !changed {
		return false
	}
	s.refreshGauges()
	s.record(audit.AuditEntry{
		Kind:     audit.KindLearn,
		Subject:  patterns.Normalize(pattern),
		Decision: audit.DecisionLearn,
		Reason:   op + " by " + source,
	})
	return true
}

// ExportRules serializes the mutable rule state.
func (s *Service) ExportRules() ([]byte, error) {
	return s.rules.Export()
}

// ImportRules replaces the mutable rule state.
func (s *Service) ImportRules(data []byte) error {
	if err := s.rules.Import(data); err != nil {
		return err
	}
	s.refreshGauges()
	return nil
}

// ResetRules restores the default rule state.
func (s *Service) ResetRules() {
	s.rules.Reset()
	s.refreshGauges()
}

// Stats returns output check counters.
func (s *Service) Stats() rules.Stats {
	return s.rules.Stats()
}

// Summary is a point-in-time view of counters and stored state sizes.
type Summary struct {
	TotalChecked  int                  `json:"total_checked"`
	Blocked       int                  `json:"blocked"`
	Passed        int                  `json:"passed"`
	ByReason      map[model.Reason]int `json:"by_reason"`
	LearnedBad    int                  `json:"learned_bad"`
	LearnedGood   int                  `json:"learned_good"`
	ExecutionLogs int                  `json:"execution_logs"`
}

// Summary returns counters and stored state sizes.
func (s *Service) Summary() Summary {
	st := s.rules.Snapshot()
	return Summary{
		TotalChecked:  st.Stats.TotalChecked,
		Blocked:       st.Stats.Blocked,
		Passed:        st.Stats.Passed,
		ByReason:      st.Stats.ByReason,
		LearnedBad:    len(st.LearnedBadPatterns),
		LearnedGood:   len(st.LearnedGoodPatterns),
		ExecutionLogs: s.execlog.Len(),
	}
}

// Rules returns the rule database.
func (s *Service) Rules() *rules.Database { return s.rules }

// ExecutionLog returns the execution log.
func (s *Service) ExecutionLog() *execlog.Log { return s.execlog }

// Approvals returns the approval store.
func (s *Service) Approvals() *approval.Store { return s.approvals }

// Config returns the active configuration.
func (s *Service) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ConfigHash returns the hash of the active configuration file.
func (s *Service) ConfigHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfgHash
}

// Reload applies a new configuration. Storage, audit and rule limits keep
// their startup values until restart.
func (s *Service) Reload(cfg *config.Config, hash string) error {
	set, err := patterns.Load(cfg.Output.PatternsPath)
	if err != nil {
		return err
	}
	if err := s.command.Reload(cfg.Command); err != nil {
		return err
	}
	s.output.Reload(set, cfg.Output)

	s.mu.Lock()
	old := s.cfgHash
	s.cfg = cfg
	s.cfgHash = hash
	s.alerts = alert.NewDispatcher(cfg.Alerts)
	s.mu.Unlock()

	slog.Info("configuration reloaded", "old_hash", old, "new_hash", hash)
	return nil
}

// ReloadFile loads the config at path and applies it.
func (s *Service) ReloadFile(path string) error {
	cfg, hash, err := config.LoadConfigWithHash(path)
	if err != nil {
		return err
	}
	return s.Reload(cfg, hash)
}

// Close flushes state, waits for alert delivery and releases storage.
func (s *Service) Close() error {
	s.rules.Flush()

	s.mu.RLock()
	d := s.alerts
	s.mu.RUnlock()
	if d != nil {
		d.Wait()
	}

	var errs []error
	if s.audit != nil {
		errs = append(errs, s.audit.Close())
	}
	errs = append(errs, s.backend.Close())
	return errors.Join(errs...)
}

func (s *Service) record(entry audit.AuditEntry) {
	if s.audit == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.ConfigHash = s.ConfigHash()
	if err := s.audit.Record(entry); err != nil {
		slog.Warn("audit write failed", "kind", entry.Kind, "error", err)
	}
}

func (s *Service) alert(event alert.AlertEvent) {
	s.mu.RLock()
	d, hash := s.alerts, s.cfgHash
	s.mu.RUnlock()
	if d == nil {
		return
	}
	event.Timestamp = s.now().UTC().Format(time.RFC3339)
	event.ConfigHash = hash
	d.Dispatch(event)
}

func (s *Service) refreshGauges() {
	st := s.rules.Snapshot()
	metrics.SetLearnedPatterns(len(st.LearnedBadPatterns), len(st.LearnedGoodPatterns))
}
