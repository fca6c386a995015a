package model

// SenseType is what a command means to the user.
type SenseType string

const (
	SenseReminder   SenseType = "reminder"
	SenseAssignment SenseType = "assignment"
	SenseAction     SenseType = "action"
	SenseManagement SenseType = "management"
)

// Known reports whether s is one of the defined sense types.
func (s SenseType) Known() bool {
	switch s {
	case SenseReminder, SenseAssignment, SenseAction, SenseManagement:
		return true
	}
	return false
}

// RuntimeType is how a command is executed.
type RuntimeType string

const (
	RuntimeInstant   RuntimeType = "instant"
	RuntimeScheduled RuntimeType = "scheduled"
	RuntimeScripted  RuntimeType = "scripted"
)

func (r RuntimeType) Known() bool {
	switch r {
	case RuntimeInstant, RuntimeScheduled, RuntimeScripted:
		return true
	}
	return false
}

// RelationType is who a command relates to.
type RelationType string

const (
	RelationUser   RelationType = "user"
	RelationSystem RelationType = "system"
)

func (r RelationType) Known() bool {
	return r == RelationUser || r == RelationSystem
}

// ActionType is the delivery channel. Unknown values are tolerated so new
// channels can be introduced without a validator release.
type ActionType string

const (
	ActionPush     ActionType = "push"
	ActionEmail    ActionType = "email"
	ActionTelegram ActionType = "telegram"
	ActionWebhook  ActionType = "webhook"
	ActionTTS      ActionType = "tts"
	ActionSMS      ActionType = "sms"
)

func (a ActionType) Known() bool {
	switch a {
	case ActionPush, ActionEmail, ActionTelegram, ActionWebhook, ActionTTS, ActionSMS:
		return true
	}
	return false
}

// Status is the lifecycle state of a command.
type Status string

const (
	StatusPending          Status = "pending"
	StatusInProgress       Status = "in_progress"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
	StatusFailed           Status = "failed"
	StatusAwaitingApproval Status = "awaiting_approval"
)

func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled, StatusFailed, StatusAwaitingApproval:
		return true
	}
	return false
}

// Command is a candidate scheduled action produced by the assistant.
// Title, ScheduledAt, ActionType and SenseType are required; every other
// field is optional and the empty string means absent.
type Command struct {
	ID           string       `json:"id,omitempty" yaml:"id,omitempty"`
	UserID       string       `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Title        string       `json:"title" yaml:"title"`
	Content      string       `json:"content,omitempty" yaml:"content,omitempty"`
	ScheduledAt  string       `json:"scheduled_at" yaml:"scheduled_at"`
	ActionType   ActionType   `json:"action_type" yaml:"action_type"`
	SenseType    SenseType    `json:"sense_type" yaml:"sense_type"`
	RuntimeType  RuntimeType  `json:"runtime_type,omitempty" yaml:"runtime_type,omitempty"`
	RelationType RelationType `json:"relation_type,omitempty" yaml:"relation_type,omitempty"`
	Status       Status       `json:"status,omitempty" yaml:"status,omitempty"`
	Creator      string       `json:"creator,omitempty" yaml:"creator,omitempty"`
	Acceptor     string       `json:"acceptor,omitempty" yaml:"acceptor,omitempty"`
}
