package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/manorfm/healthshield-mfa/internal/domain"
	"github.com/manorfm/healthshield-mfa/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// MFAHandler handles MFA enrollment and verification requests
type MFAHandler struct {
	service  domain.MFAService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewMFAHandler creates a new MFA handler
func NewMFAHandler(service domain.MFAService, logger *zap.Logger) *MFAHandler {
	return &MFAHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// BeginEnrollment godoc
// @Summary Start MFA enrollment
// @Tags mfa
// @Accept json
// @Produce json
// @Param request body BeginEnrollmentRequest true "User"
// @Success 200 {object} domain.Enrollment
// @Failure 400,404,409 {object} errors.ErrorResponse
// @Router /api/mfa/begin-enrollment [post]
func (h *MFAHandler) BeginEnrollment(w http.ResponseWriter, r *http.Request) {
	var req BeginEnrollmentRequest
	if !decodeRequest(w, r, h.validate, &req, domain.ErrMissingParameters, h.logger) {
		return
	}
	if !authorizeSubject(w, r, req.UserID, h.logger) {
		return
	}

	enrollment, err := h.service.BeginEnrollment(r.Context(), req.UserID)
	if err != nil {
		h.fail(w, "Failed to begin MFA enrollment", req.UserID, err)
		return
	}

	respondJSON(w, enrollment, h.logger)
}

// ConfirmEnrollment godoc
// @Summary Confirm MFA enrollment with a code from the authenticator app
// @Tags mfa
// @Accept json
// @Produce json
// @Param request body ConfirmEnrollmentRequest true "Confirmation"
// @Success 200 {object} SuccessResponse
// @Failure 400,404,409,429,500 {object} errors.ErrorResponse
// @Router /api/mfa/confirm-enrollment [post]
func (h *MFAHandler) ConfirmEnrollment(w http.ResponseWriter, r *http.Request) {
	var req ConfirmEnrollmentRequest
	if !decodeRequest(w, r, h.validate, &req, domain.ErrMissingParameters, h.logger) {
		return
	}
	if !authorizeSubject(w, r, req.UserID, h.logger) {
		return
	}

	if err := h.service.ConfirmEnrollment(r.Context(), req.UserID, req.Secret, req.Token); err != nil {
		h.fail(w, "Failed to confirm MFA enrollment", req.UserID, err)
		return
	}

	respondJSON(w, SuccessResponse{Success: true}, h.logger)
}

// VerifyLogin godoc
// @Summary Verify a login code
// @Tags mfa
// @Accept json
// @Produce json
// @Param request body VerifyLoginRequest true "Login code"
// @Success 200 {object} VerifyLoginResponse
// @Failure 400,404,429,500 {object} errors.ErrorResponse
// @Router /api/mfa/verify-login [post]
func (h *MFAHandler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req VerifyLoginRequest
	if !decodeRequest(w, r, h.validate, &req, domain.ErrMissingLoginParameters, h.logger) {
		return
	}
	if !authorizeSubject(w, r, req.UserID, h.logger) {
		return
	}

	valid, err := h.service.VerifyLogin(r.Context(), req.UserID, req.Token)
	if err != nil {
		h.fail(w, "Failed to verify login code", req.UserID, err)
		return
	}

	respondJSON(w, VerifyLoginResponse{Valid: valid}, h.logger)
}

// DisableMFA godoc
// @Summary Disable MFA with a current code
// @Tags mfa
// @Accept json
// @Produce json
// @Param request body DisableMFARequest true "Current code"
// @Success 200 {object} SuccessResponse
// @Failure 400,404,429,500 {object} errors.ErrorResponse
// @Router /api/mfa/disable [post]
func (h *MFAHandler) DisableMFA(w http.ResponseWriter, r *http.Request) {
	var req DisableMFARequest
	if !decodeRequest(w, r, h.validate, &req, domain.ErrMissingLoginParameters, h.logger) {
		return
	}
	if !authorizeSubject(w, r, req.UserID, h.logger) {
		return
	}

	if err := h.service.DisableMFA(r.Context(), req.UserID, req.Token); err != nil {
		h.fail(w, "Failed to disable MFA", req.UserID, err)
		return
	}

	respondJSON(w, SuccessResponse{Success: true}, h.logger)
}

func (h *MFAHandler) fail(w http.ResponseWriter, msg, userID string, err error) {
	derr := errors.AsDomainError(err)
	h.logger.Info(msg,
		zap.String("user_id", userID),
		zap.String("error_code", derr.GetCode()),
		zap.Error(err))
	errors.RespondWithError(w, derr)
}
