package askiguard

import (
	"fmt"

	"github.com/ppiankov/askiguard/internal/guard"
	"github.com/ppiankov/askiguard/internal/model"
)

// Output validation types.
type (
	OutputResult = model.ValidationResult
	Reason       = model.Reason
	Context      = model.Context
	Turn         = model.Turn
	FeedItem     = model.FeedItem
)

// Command validation types.
type (
	Command       = model.Command
	CommandResult = model.CommandValidationResult
	Issue         = model.Issue
)

// Summary holds output check counters and stored state sizes.
type Summary = guard.Summary

// BlockedError is returned when a command is blocked by a validation level.
type BlockedError struct {
	Command Command
	Level   int
	Code    string
	Message string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("askiguard blocked at level %d (%s): %s", e.Level, e.Code, e.Message)
}

// blockedError converts a blocked result. It returns nil for results that
// were not blocked.
func blockedError(cmd Command, res *CommandResult) *BlockedError {
	if !res.Blocked {
		return nil
	}
	e := &BlockedError{Command: cmd}
	if res.BlockedAtLevel != nil {
		e.Level = *res.BlockedAtLevel
	}
	if first := res.FirstError(); first != nil {
		e.Code = first.Code
		e.Message = first.Message
	}
	return e
}
