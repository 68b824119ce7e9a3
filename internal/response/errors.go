package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Session ───────────────────────────────────────────────────────
	ErrSessionNotFound    ErrCode = "SESSION_NOT_FOUND"
	ErrSessionClosed      ErrCode = "SESSION_CLOSED"
	ErrInvalidPhase       ErrCode = "INVALID_PHASE"
	ErrSectionClosed      ErrCode = "SECTION_CLOSED"
	ErrInvalidSubSection  ErrCode = "INVALID_SUB_SECTION"
	ErrInvalidAnswerKey   ErrCode = "INVALID_ANSWER_KEY"
	ErrUnknownTestVariant ErrCode = "UNKNOWN_TEST_VARIANT"

	// ─── Results ───────────────────────────────────────────────────────
	ErrConfirmationRequired ErrCode = "CONFIRMATION_REQUIRED"
	ErrScoreOutOfRange      ErrCode = "SCORE_OUT_OF_RANGE"
	ErrInvalidBand          ErrCode = "INVALID_BAND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "No test session in progress for this candidate."
	case ErrSessionClosed:
		return "This test session has already been submitted."
	case ErrInvalidPhase:
		return "This action is not available at the current stage of the test."
	case ErrSectionClosed:
		return "This section is not accepting answers."
	case ErrInvalidSubSection:
		return "That part does not exist in the current section."
	case ErrInvalidAnswerKey:
		return "Answer keys must be question numbers, or task1/task2 for writing."
	case ErrUnknownTestVariant:
		return "The requested test variant has no answer key."

	// ─── Results ───────────────────────────────────────────────────────
	case ErrConfirmationRequired:
		return `Type "DELETE" to confirm.`
	case ErrScoreOutOfRange:
		return "Raw score exceeds the number of questions."
	case ErrInvalidBand:
		return "Band must be between 0 and 9 in steps of 0.5."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again shortly."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
