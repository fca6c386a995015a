// Package askiguardv1 defines the askiguard.v1.Validator gRPC service:
// request and response messages, the service descriptor and a typed client.
// Messages travel as JSON.
package askiguardv1

import (
	"github.com/ppiankov/askiguard/internal/model"
)

// OutputRequest asks for an assistant response to be checked.
type OutputRequest struct {
	Text    string        `json:"text"`
	Context model.Context `json:"context"`
}

// InputRequest asks for user input to be checked.
type InputRequest struct {
	Text string `json:"text"`
}

// CommandRequest asks for a command to be validated.
type CommandRequest struct {
	Command     model.Command `json:"command"`
	UserRequest string        `json:"user_request,omitempty"`
	// Now overrides the server clock, RFC3339.
	Now    string `json:"now,omitempty"`
	DryRun bool   `json:"dry_run,omitempty"`
	// Quick runs only syntax and logic.
	Quick bool `json:"quick,omitempty"`
}

// LearnRequest adds or removes a learned pattern.
type LearnRequest struct {
	Pattern string `json:"pattern"`
	// Kind is "bad" or "good".
	Kind   string `json:"kind"`
	Remove bool   `json:"remove,omitempty"`
	Source string `json:"source,omitempty"`
}

// LearnResponse reports whether the rule database changed.
type LearnResponse struct {
	Changed bool `json:"changed"`
}

// StatsRequest is empty.
type StatsRequest struct{}

// StatsResponse carries output check counters.
type StatsResponse struct {
	TotalChecked  int                  `json:"total_checked"`
	Blocked       int                  `json:"blocked"`
	Passed        int                  `json:"passed"`
	ByReason      map[model.Reason]int `json:"by_reason"`
	LearnedBad    int                  `json:"learned_bad"`
	LearnedGood   int                  `json:"learned_good"`
	ExecutionLogs int                  `json:"execution_logs"`
}

// ApproveRequest resolves a pending command approval.
type ApproveRequest struct {
	CommandID string `json:"command_id"`
	By        string `json:"by,omitempty"`
	// Duration bounds how long the approval stays usable, e.g. "1h".
	Duration string `json:"duration,omitempty"`
}

// ApproveResponse echoes the new status.
type ApproveResponse struct {
	CommandID string `json:"command_id"`
	Status    string `json:"status"`
}

// DenyRequest rejects a pending command approval.
type DenyRequest struct {
	CommandID string `json:"command_id"`
	By        string `json:"by,omitempty"`
}

// DenyResponse echoes the new status.
type DenyResponse struct {
	CommandID string `json:"command_id"`
	Status    string `json:"status"`
}

// ListPendingRequest is empty.
type ListPendingRequest struct{}

// PendingApproval is one approval waiting for a verifier.
type PendingApproval struct {
	CommandID string `json:"command_id"`
	Title     string `json:"title"`
	Reason    string `json:"reason"`
	Verifier  string `json:"verifier"`
	RiskScore int    `json:"risk_score"`
	CreatedAt string `json:"created_at"`
}

// ListPendingResponse lists pending approvals.
type ListPendingResponse struct {
	Approvals []PendingApproval `json:"approvals"`
}

// ExecutionLogRequest asks for the most recent entries; zero means all.
type ExecutionLogRequest struct {
	Limit int `json:"limit,omitempty"`
}

// ExecutionLogResponse lists execution log entries, oldest first.
type ExecutionLogResponse struct {
	Entries []model.ExecutionLogEntry `json:"entries"`
}
