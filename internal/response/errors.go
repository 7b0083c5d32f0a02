package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden          ErrCode = "FORBIDDEN"
	ErrAttemptAccessOnly  ErrCode = "ATTEMPT_ACCESS_ONLY"
	ErrTeacherAccessOnly  ErrCode = "TEACHER_ACCESS_ONLY"
	ErrNotExamOwner       ErrCode = "NOT_EXAM_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Session / attempt lifecycle ───────────────────────────────────
	ErrExamNotAvailable  ErrCode = "EXAM_NOT_AVAILABLE"
	ErrExamNotPublished  ErrCode = "EXAM_NOT_PUBLISHED"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrSessionNotRunning ErrCode = "SESSION_NOT_RUNNING"
	ErrAttemptCompleted  ErrCode = "ATTEMPT_COMPLETED"
	ErrSubmitInFlight    ErrCode = "SUBMIT_IN_FLIGHT"
	ErrSubmissionFailed  ErrCode = "SUBMISSION_FAILED"
	ErrInvalidAnswer     ErrCode = "INVALID_ANSWER"

	// ─── Curriculum / AI ───────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"
	ErrAIUnavailable   ErrCode = "AI_UNAVAILABLE"

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
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrSessionInvalidated:
		return "Your session was replaced by a newer login."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have access to this resource."
	case ErrAttemptAccessOnly:
		return "This resource is restricted to an active exam attempt."
	case ErrTeacherAccessOnly:
		return "This resource is restricted to teachers."
	case ErrNotExamOwner:
		return "You are not the owner of this exam."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid identifier format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Session / attempt lifecycle ───────────────────────────────────
	case ErrExamNotAvailable:
		return "This exam is not currently available."
	case ErrExamNotPublished:
		return "This exam has not been published."
	case ErrNoQuestions:
		return "This exam has no questions."
	case ErrSessionNotRunning:
		return "The exam session is not running."
	case ErrAttemptCompleted:
		return "This attempt has already been completed."
	case ErrSubmitInFlight:
		return "A submission is already in progress."
	case ErrSubmissionFailed:
		return "Submission failed. Your answers are safe — please retry."
	case ErrInvalidAnswer:
		return "The answer does not match the question's expected shape."

	// ─── Curriculum / AI ───────────────────────────────────────────────
	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "Unsupported file type."
	case ErrFileTooLarge:
		return "The file exceeds the size limit."
	case ErrAIUnavailable:
		return "The analysis service is temporarily unavailable."

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
