package command

// Error and warning codes reported in Issue.Code.
const (
	CodeValidatorError     = "VALIDATOR_ERROR"
	CodeValidatorDown      = "VALIDATOR_UNAVAILABLE"
	CodeMissingFields      = "MISSING_REQUIRED_FIELDS"
	CodeInvalidDate        = "INVALID_DATE_FORMAT"
	CodeInvalidUserID      = "INVALID_USER_ID"
	CodeInvalidSenseType   = "INVALID_SENSE_TYPE"
	CodeInvalidRuntimeType = "INVALID_RUNTIME_TYPE"
	CodeInvalidRelation    = "INVALID_RELATION_TYPE"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeUnknownActionType  = "UNKNOWN_ACTION_TYPE"
	CodeTitleTooLong       = "TITLE_TOO_LONG"
	CodeContentTooLong     = "CONTENT_TOO_LONG"

	CodeTimeInPast       = "TIME_IN_PAST"
	CodeScheduleTooFar   = "SCHEDULE_TOO_FAR"
	CodeScheduleFarAhead = "SCHEDULE_FAR_AHEAD"
	CodeUnknownCreator   = "UNKNOWN_CREATOR"
	CodeUnknownAcceptor  = "UNKNOWN_ACCEPTOR"
	CodeReminderInstant  = "REMINDER_INSTANT"
	CodeManagementScript = "MANAGEMENT_NOT_SCRIPTED"

	CodeTimeDeviation = "TIME_DEVIATION_EXCEEDED"
	CodeLowRelevance  = "LOW_CONTENT_RELEVANCE"
)
