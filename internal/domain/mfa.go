package domain

import "context"

// Enrollment is returned by BeginEnrollment. Nothing in it is persisted.
type Enrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioningUri"`
	QRCode          string `json:"qrCode"`
}

// MFAService defines the enrollment and verification operations
type MFAService interface {
	BeginEnrollment(ctx context.Context, userID string) (*Enrollment, error)
	ConfirmEnrollment(ctx context.Context, userID, secret, code string) error
	VerifyLogin(ctx context.Context, userID, code string) (bool, error)
	DisableMFA(ctx context.Context, userID, code string) error
}

// AttemptLimiter bounds how often a key may attempt a verification
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// SecretSealer converts a secret to and from its persisted form
type SecretSealer interface {
	Seal(userID, secret string) (string, error)
	Open(userID, stored string) (string, error)
}
