package domain

import (
	"context"
	"time"
)

// Profile is the per-user MFA record
type Profile struct {
	UserID     string
	MFASecret  *string
	MFAEnabled bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewProfile returns an unenrolled profile
func NewProfile(userID string) *Profile {
	now := time.Now()
	return &Profile{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Enrolled reports whether the profile has a committed secret
func (p *Profile) Enrolled() bool {
	return p.MFAEnabled && p.MFASecret != nil && *p.MFASecret != ""
}

// Consistent reports whether the secret is present exactly when MFA is enabled
func (p *Profile) Consistent() bool {
	hasSecret := p.MFASecret != nil && *p.MFASecret != ""
	return p.MFAEnabled == hasSecret
}

// ProfileRepository defines the interface for per-user MFA state.
// EnableMFA and DisableMFA must update the secret and flag in a single atomic
// write.
type ProfileRepository interface {
	// CreateProfile inserts an unenrolled profile, ignoring existing ones
	CreateProfile(ctx context.Context, userID string) error
	// GetProfile retrieves the profile for a user
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	// EnableMFA stores the secret and sets mfa_enabled if the user is not enrolled yet
	EnableMFA(ctx context.Context, userID, secret string) error
	// DisableMFA clears the secret and the flag if the user is enrolled
	DisableMFA(ctx context.Context, userID string) error
}
