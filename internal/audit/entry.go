package audit

// Entry kinds.
const (
	KindOutput  = "output"
	KindInput   = "input"
	KindCommand = "command"
	KindLearn   = "learn"
)

// Decisions recorded in entries.
const (
	DecisionPass     = "pass"
	DecisionBlock    = "block"
	DecisionApproval = "approval_required"
	DecisionLearn    = "learn"
)

// AuditEntry is one line in the hash-chained JSONL audit log.
// All fields are scalars (no map[string]any) so json.Marshal field order is
// deterministic and hashes are reproducible.
type AuditEntry struct {
	Timestamp  string `json:"ts"`
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Subject    string `json:"subject"`
	Decision   string `json:"decision"`
	Reason     string `json:"reason,omitempty"`
	Level      int    `json:"level,omitempty"`
	RiskScore  int    `json:"risk_score,omitempty"`
	ConfigHash string `json:"config_hash"`
	PrevHash   string `json:"prev_hash"`
}
