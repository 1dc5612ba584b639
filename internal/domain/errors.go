package domain

// Error is implemented by every error the service surfaces to callers.
type Error interface {
	error
	GetCode() string
	GetMessage() string
}

// BusinessError is a coded error with a caller-safe message
type BusinessError struct {
	Code    string
	Message string
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string) *BusinessError {
	return &BusinessError{Code: code, Message: message}
}

func (e *BusinessError) Error() string {
	return e.Message
}

// GetCode returns the stable error code
func (e *BusinessError) GetCode() string {
	return e.Code
}

// GetMessage returns the message shown to the caller
func (e *BusinessError) GetMessage() string {
	return e.Message
}

var (
	// Request errors
	ErrInvalidRequestBody     = NewBusinessError("M0001", "Invalid request body")
	ErrMissingParameters      = NewBusinessError("M0002", "Missing required parameters")
	ErrMissingLoginParameters = NewBusinessError("M0003", "Missing userId or token")

	// TOTP errors
	ErrInvalidTOTPCode   = NewBusinessError("M0004", "Invalid verification code")
	ErrInvalidTOTPFormat = NewBusinessError("M0005", "Invalid verification code")
	ErrMFANotConfigured  = NewBusinessError("M0006", "MFA not enabled for user")
	ErrMFAAlreadyEnabled = NewBusinessError("M0007", "MFA already enabled for user")
	ErrInvalidSecret     = NewBusinessError("M0009", "TOTP verification failed")
	ErrSecretGeneration  = NewBusinessError("M0014", "Failed to generate MFA secret")
	ErrTooManyAttempts   = NewBusinessError("M0011", "Too many verification attempts")
	ErrRateLimited       = NewBusinessError("M0017", "Rate limit exceeded")
	ErrWeakSecret        = NewBusinessError("M0018", "Invalid MFA secret")

	// Store errors
	ErrUserNotFound = NewBusinessError("M0008", "User not found")
	ErrPersistence  = NewBusinessError("M0010", "Failed to access MFA settings")
	ErrEnableMFA    = NewBusinessError("M0016", "Failed to enable MFA")

	// Access errors
	ErrForbidden    = NewBusinessError("M0012", "Forbidden")
	ErrUnauthorized = NewBusinessError("M0013", "Unauthorized")

	ErrInternal = NewBusinessError("M0015", "Internal server error")
)
