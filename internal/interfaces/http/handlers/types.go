package handlers

// BeginEnrollmentRequest starts MFA enrollment for a user
type BeginEnrollmentRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// ConfirmEnrollmentRequest proves possession of the issued secret
type ConfirmEnrollmentRequest struct {
	UserID string `json:"userId" validate:"required"`
	Token  string `json:"token" validate:"required"`
	Secret string `json:"secret" validate:"required"`
}

// VerifyLoginRequest checks a login code
type VerifyLoginRequest struct {
	UserID string `json:"userId" validate:"required"`
	Token  string `json:"token" validate:"required"`
}

// DisableMFARequest turns MFA off with a current code
type DisableMFARequest struct {
	UserID string `json:"userId" validate:"required"`
	Token  string `json:"token" validate:"required"`
}

// SuccessResponse reports a completed state change
type SuccessResponse struct {
	Success bool `json:"success"`
}

// VerifyLoginResponse reports whether a login code matched
type VerifyLoginResponse struct {
	Valid bool `json:"valid"`
}
