package alert

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"     validate:"required,url"`
	Format  string            `yaml:"format"  json:"format"  validate:"omitempty,oneof=generic slack"`
	Events  []string          `yaml:"events"  json:"events"  validate:"min=1,dive,oneof=block approval_required"`
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event names a webhook can subscribe to.
const (
	EventBlock            = "block"
	EventApprovalRequired = "approval_required"
)

// AlertEvent is the payload sent to webhook endpoints.
type AlertEvent struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	Kind       string `json:"kind"` // "output", "input" or "command"
	Reason     string `json:"reason"`
	Level      int    `json:"level,omitempty"`
	Subject    string `json:"subject"`
	RiskScore  int    `json:"risk_score,omitempty"`
	ConfigHash string `json:"config_hash,omitempty"`
}
