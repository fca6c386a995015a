package model

import "time"

// Validation levels, in the order they run. LevelGuard is reserved for
// failures of the validator itself.
const (
	LevelGuard        = 0
	LevelSyntax       = 1
	LevelLogic        = 2
	LevelContext      = 3
	LevelApproval     = 4
	LevelExecutionLog = 5
)

// LevelName returns a short label for a validation level.
func LevelName(level int) string {
	switch level {
	case LevelGuard:
		return "guard"
	case LevelSyntax:
		return "syntax"
	case LevelLogic:
		return "logic"
	case LevelContext:
		return "context"
	case LevelApproval:
		return "approval"
	case LevelExecutionLog:
		return "execution_log"
	default:
		return "unknown"
	}
}

// RiskLevel is the coarse classification of a risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskLevelFor maps a score to a level. Scores below mediumMin are low,
// scores below highMin are medium, everything else is high.
func RiskLevelFor(score, mediumMin, highMin int) RiskLevel {
	switch {
	case score < mediumMin:
		return RiskLow
	case score < highMin:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Issue is an error or warning produced by a validation level.
type Issue struct {
	Level   int            `json:"level"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Check records that a named check ran.
type Check struct {
	Level   int            `json:"level"`
	Name    string         `json:"name"`
	Details map[string]any `json:"details,omitempty"`
}

// ExecutionLogEntry is the audit snapshot written by the execution log level.
type ExecutionLogEntry struct {
	ID               string     `json:"id"`
	CommandID        string     `json:"command_id,omitempty"`
	Title            string     `json:"title"`
	SenseType        SenseType  `json:"sense_type"`
	ActionType       ActionType `json:"action_type"`
	ScheduledAt      string     `json:"scheduled_at"`
	RiskScore        int        `json:"risk_score"`
	RiskLevel        RiskLevel  `json:"risk_level"`
	ApprovalRequired bool       `json:"approval_required"`
	Checks           int        `json:"checks"`
	Warnings         int        `json:"warnings"`
	Timestamp        time.Time  `json:"timestamp"`
}

// Metadata aggregates counts for a finished validation.
type Metadata struct {
	LevelsPassed  []int              `json:"levels_passed"`
	TotalChecks   int                `json:"total_checks"`
	TotalErrors   int                `json:"total_errors"`
	TotalWarnings int                `json:"total_warnings"`
	ExecutionLog  *ExecutionLogEntry `json:"execution_log,omitempty"`
	StartedAt     time.Time          `json:"started_at"`
	CompletedAt   time.Time          `json:"completed_at"`
	DurationMs    float64            `json:"duration_ms"`
}

// CommandValidationResult is the outcome of running a command through the
// validation levels. LevelsPassed is always a prefix of 1..5 cut at the
// first blocking level.
type CommandValidationResult struct {
	Valid            bool      `json:"valid"`
	Blocked          bool      `json:"blocked"`
	BlockedAtLevel   *int      `json:"blocked_at_level"`
	Errors           []Issue   `json:"errors"`
	Warnings         []Issue   `json:"warnings"`
	Checks           []Check   `json:"checks"`
	ApprovalRequired bool      `json:"approval_required"`
	ApprovalReason   string    `json:"approval_reason,omitempty"`
	ApprovalVerifier string    `json:"approval_verifier,omitempty"`
	RiskScore        int       `json:"risk_score"`
	RiskLevel        RiskLevel `json:"risk_level"`
	Metadata         Metadata  `json:"metadata"`
}

// NewCommandValidationResult returns an empty, passing result.
func NewCommandValidationResult(started time.Time) *CommandValidationResult {
	return &CommandValidationResult{
		Valid:     true,
		Errors:    []Issue{},
		Warnings:  []Issue{},
		Checks:    []Check{},
		RiskLevel: RiskLow,
		Metadata: Metadata{
			LevelsPassed: []int{},
			StartedAt:    started,
		},
	}
}

// Fail records an error and blocks the result at level. The first blocking
// level wins; later calls only append errors.
func (r *CommandValidationResult) Fail(level int, code, message string, details map[string]any) {
	r.Errors = append(r.Errors, Issue{Level: level, Code: code, Message: message, Details: details})
	r.Valid = false
	if !r.Blocked {
		r.Blocked = true
		l := level
		r.BlockedAtLevel = &l
	}
}

// Warn records a non-blocking issue.
func (r *CommandValidationResult) Warn(level int, code, message string, details map[string]any) {
	r.Warnings = append(r.Warnings, Issue{Level: level, Code: code, Message: message, Details: details})
}

// Record appends a check entry.
func (r *CommandValidationResult) Record(level int, name string, details map[string]any) {
	r.Checks = append(r.Checks, Check{Level: level, Name: name, Details: details})
}

// AddRisk adds n to the risk score. Negative contributions are ignored.
func (r *CommandValidationResult) AddRisk(n int) {
	if n > 0 {
		r.RiskScore += n
	}
}

// Pass marks level as completed.
func (r *CommandValidationResult) Pass(level int) {
	r.Metadata.LevelsPassed = append(r.Metadata.LevelsPassed, level)
}

// FirstError returns the first recorded error, or nil.
func (r *CommandValidationResult) FirstError() *Issue {
	if len(r.Errors) == 0 {
		return nil
	}
	return &r.Errors[0]
}
