package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden           ErrCode = "FORBIDDEN"
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrAdminAccessOnly     ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrActionForbidden ErrCode = "ACTION_FORBIDDEN"

	// ─── Eligibility ───────────────────────────────────────────────────
	ErrOutsideTestWindow ErrCode = "OUTSIDE_TEST_WINDOW"
	ErrRecordNotFound    ErrCode = "RECORD_NOT_FOUND"
	ErrAlreadySubmitted  ErrCode = "ALREADY_SUBMITTED"
	ErrWrongModality     ErrCode = "WRONG_MODALITY"
	ErrPaymentRequired   ErrCode = "PAYMENT_REQUIRED"
	ErrIdentityMismatch  ErrCode = "IDENTITY_MISMATCH"

	// ─── Test lifecycle ────────────────────────────────────────────────
	ErrTestNotAvailable     ErrCode = "TEST_NOT_AVAILABLE"
	ErrTestNotPublished     ErrCode = "TEST_NOT_PUBLISHED"
	ErrTestNotDraft         ErrCode = "TEST_NOT_DRAFT"
	ErrNoQuestions          ErrCode = "NO_QUESTIONS"
	ErrGeneratorUnavailable ErrCode = "GENERATOR_UNAVAILABLE"
	ErrNoActiveSession      ErrCode = "NO_ACTIVE_SESSION"
	ErrSessionSubmitted     ErrCode = "SESSION_SUBMITTED"
	ErrIndexOutOfRange      ErrCode = "INDEX_OUT_OF_RANGE"
	ErrResultNotFound       ErrCode = "RESULT_NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrCandidateAccessOnly:
		return "This resource is restricted to candidates."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

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
	case ErrConflict:
		return "Resource already exists."
	case ErrActionForbidden:
		return "This action is not allowed."

	// ─── Eligibility ───────────────────────────────────────────────────
	case ErrOutsideTestWindow:
		return "This test is not open at the current time."
	case ErrRecordNotFound:
		return "No application was found for the given number. Please check and try again."
	case ErrAlreadySubmitted:
		return "You have already completed this test. Retakes are not permitted."
	case ErrWrongModality:
		return "Your application is registered for the offline test. You cannot take it online."
	case ErrPaymentRequired:
		return "Your application fee has not been verified. Please complete the payment step first."
	case ErrIdentityMismatch:
		return "The application number does not belong to your account."

	// ─── Test lifecycle ────────────────────────────────────────────────
	case ErrTestNotAvailable:
		return "This test is currently not available."
	case ErrTestNotPublished:
		return "This test has not been published."
	case ErrTestNotDraft:
		return "This test is not in DRAFT status."
	case ErrNoQuestions:
		return "This test has no questions."
	case ErrGeneratorUnavailable:
		return "The question service is temporarily unavailable. Please try again."
	case ErrNoActiveSession:
		return "You have no active session for this test."
	case ErrSessionSubmitted:
		return "This session has already been submitted."
	case ErrIndexOutOfRange:
		return "Question number is out of range."
	case ErrResultNotFound:
		return "No result was found for this test."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
