package utils

type AppError struct {
	Code    string
	Message string
	Origin  error // Original error that caused this error, if any
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

// Standard error codes for the application
const (
	// Resource errors
	ErrNotFound     = "NOT_FOUND"
	ErrDuplicate    = "DUPLICATE"
	ErrInvalidInput = "INVALID_INPUT"

	// Authentication/Authorization errors
	ErrUnauthorized = "UNAUTHORIZED"
	ErrForbidden    = "FORBIDDEN" // User is authenticated but doesn't own the resource

	// User-specific errors
	ErrUserNotFound       = "USER_NOT_FOUND"
	ErrDuplicateUsername  = "DUPLICATE_USERNAME"
	ErrInvalidCredentials = "INVALID_CREDENTIALS"

	// External identity provider errors
	ErrProvider = "PROVIDER_ERROR"

	// Session errors
	ErrSessionFailure  = "SESSION_FAILURE"
	ErrSessionNotFound = "SESSION_NOT_FOUND"

	// Actor communication errors
	ErrActorTimeout = "ACTOR_TIMEOUT"

	ErrDatabase = "DATABASE_ERROR"
)

// Error creation helper functions
func NewAppError(code string, message string, originalErr error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

// Specific error creators for common cases
func NewUserNotFoundError(username string) *AppError {
	return &AppError{
		Code:    ErrUserNotFound,
		Message: "User not found: " + username,
	}
}

func NewDuplicateUsernameError(username string) *AppError {
	return &AppError{
		Code:    ErrDuplicateUsername,
		Message: "Username already exists: " + username,
	}
}

func NewForbiddenError(reason string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: "Forbidden: " + reason,
	}
}

func NewProviderError(message string, originalErr error) *AppError {
	return &AppError{
		Code:    ErrProvider,
		Message: message,
		Origin:  originalErr,
	}
}

func NewSessionFailureError(message string, originalErr error) *AppError {
	return &AppError{
		Code:    ErrSessionFailure,
		Message: message,
		Origin:  originalErr,
	}
}

func NewActorTimeoutError(actorName string) *AppError {
	return &AppError{
		Code:    ErrActorTimeout,
		Message: "Actor communication timeout: " + actorName,
	}
}

// Helper method to check if an error is of a specific type
func IsErrorCode(err error, code string) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// IsUserCorrectable reports whether the error should be surfaced back to the
// login/register forms as a query-string error instead of a 5xx.
func IsUserCorrectable(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == ErrDuplicateUsername ||
			appErr.Code == ErrUserNotFound ||
			appErr.Code == ErrInvalidCredentials ||
			appErr.Code == ErrInvalidInput
	}
	return false
}

// AppErrorToHTTPStatus converts an AppError code to an HTTP status code.
func AppErrorToHTTPStatus(errorCode string) int {
	switch errorCode {
	case ErrNotFound, ErrUserNotFound, ErrSessionNotFound:
		return 404 // http.StatusNotFound
	case ErrInvalidInput, ErrInvalidCredentials:
		return 400 // http.StatusBadRequest
	case ErrUnauthorized:
		return 401 // http.StatusUnauthorized
	case ErrForbidden:
		return 403 // http.StatusForbidden
	case ErrDuplicate, ErrDuplicateUsername:
		return 409 // http.StatusConflict
	case ErrProvider:
		return 502 // http.StatusBadGateway
	case ErrDatabase, ErrSessionFailure, ErrActorTimeout:
		return 500 // http.StatusInternalServerError
	default:
		return 500 // http.StatusInternalServerError for unknown errors
	}
}
