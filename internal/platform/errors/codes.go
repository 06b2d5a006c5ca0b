// Package errors provides structured, coded errors for the board domain.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Retrospective errors
	CodeRetrospectiveInvalidKind Code = "RETROSPECTIVE_INVALID_KIND"
	CodeRetrospectiveNameEmpty   Code = "RETROSPECTIVE_NAME_EMPTY"

	// Participant errors
	CodeParticipantSurnameEmpty Code = "PARTICIPANT_SURNAME_EMPTY"
	CodeParticipantColorTaken   Code = "PARTICIPANT_COLOR_TAKEN"
	CodeParticipantColorInvalid Code = "PARTICIPANT_COLOR_INVALID"

	// Reflection errors
	CodeReflectionContentEmpty Code = "REFLECTION_CONTENT_EMPTY"
	CodeReflectionWrongStep    Code = "REFLECTION_WRONG_STEP"

	// Reaction errors
	CodeReactionInvalidEmoji  Code = "REACTION_INVALID_EMOJI"
	CodeReactionInvalidTarget Code = "REACTION_INVALID_TARGET"
	CodeReactionQuotaExceeded Code = "REACTION_QUOTA_EXCEEDED"

	// Timer errors
	CodeTimerInvalidDuration Code = "TIMER_INVALID_DURATION"

	// Task errors
	CodeTaskDescriptionEmpty Code = "TASK_DESCRIPTION_EMPTY"
	CodeTaskWrongStep        Code = "TASK_WRONG_STEP"
)
