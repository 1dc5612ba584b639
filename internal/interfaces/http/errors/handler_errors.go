package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/manorfm/healthshield-mfa/internal/domain"
)

func getStatus(err domain.Error) int {
	switch err.GetCode() {
	case domain.ErrUserNotFound.GetCode():
		return http.StatusNotFound
	case domain.ErrMFAAlreadyEnabled.GetCode():
		return http.StatusConflict
	case domain.ErrTooManyAttempts.GetCode(), domain.ErrRateLimited.GetCode():
		return http.StatusTooManyRequests
	case domain.ErrUnauthorized.GetCode():
		return http.StatusUnauthorized
	case domain.ErrForbidden.GetCode():
		return http.StatusForbidden
	case domain.ErrInternal.GetCode(),
		domain.ErrInvalidSecret.GetCode(),
		domain.ErrPersistence.GetCode(),
		domain.ErrSecretGeneration.GetCode(),
		domain.ErrEnableMFA.GetCode():
		return http.StatusInternalServerError
	}

	return http.StatusBadRequest
}

// AsDomainError returns err as a domain.Error, or ErrInternal when err carries
// no code
func AsDomainError(err error) domain.Error {
	var derr domain.Error
	if stderrors.As(err, &derr) {
		return derr
	}
	return domain.ErrInternal
}

// RespondWithError sends a standardized error response
func RespondWithError(w http.ResponseWriter, err domain.Error) {
	RespondErrorWithDetails(w, err, nil)
}

// RespondErrorWithDetails sends a standardized error response with details
func RespondErrorWithDetails(w http.ResponseWriter, err domain.Error, details []ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(getStatus(err))
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   err.GetMessage(),
		Code:    err.GetCode(),
		Details: details,
	})
}
