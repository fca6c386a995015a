package model

// Reason identifies why a piece of output was blocked.
type Reason string

const (
	ReasonTooLong          Reason = "too_long"
	ReasonInputTooLong     Reason = "input_too_long"
	ReasonFakeCapability   Reason = "fake_capability"
	ReasonFalsePromise     Reason = "false_promise"
	ReasonArchitectureLeak Reason = "architecture_leak"
	ReasonHallucination    Reason = "hallucination"
	ReasonManipulation     Reason = "manipulation"
	ReasonLearnedPattern   Reason = "learned_pattern"
	ReasonUnavailable      Reason = "validator_unavailable"
)

// Output warning codes.
const (
	WarnLongResponse   = "long_response_no_safe_pattern"
	WarnManyAssertions = "many_assertions"
)

// ValidationResult is the outcome of one output (or input) check.
// Blocked implies !Valid. Sanitized is always populated and equals
// Original unless the text was blocked.
type ValidationResult struct {
	Valid            bool     `json:"valid"`
	Blocked          bool     `json:"blocked"`
	Reason           Reason   `json:"reason,omitempty"`
	MatchedPattern   string   `json:"matched_pattern,omitempty"`
	Original         string   `json:"original"`
	Sanitized        string   `json:"sanitized"`
	Confidence       float64  `json:"confidence"`
	Warnings         []string `json:"warnings"`
	ProcessingTimeMs float64  `json:"processing_time_ms"`
}

// Turn is one message of recent conversation history.
type Turn struct {
	Role string `json:"role,omitempty"`
	Text string `json:"text"`
}

// FeedItem is one recently stored item (note, drop, reminder).
type FeedItem struct {
	Kind string `json:"kind,omitempty"`
	Text string `json:"text"`
}

// Context is what the assistant could legitimately know when it produced
// a response. It is used to verify claims about past conversation.
type Context struct {
	History []Turn     `json:"history"`
	Feed    []FeedItem `json:"feed"`
}

// Empty reports whether there is nothing to verify claims against.
func (c Context) Empty() bool {
	return len(c.History) == 0 && len(c.Feed) == 0
}
