package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/manorfm/healthshield-mfa/internal/domain"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/database"
	"go.uber.org/zap"
)

// ProfileRepository implements domain.ProfileRepository on PostgreSQL
type ProfileRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *database.Postgres, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// CreateProfile inserts an unenrolled profile. Existing profiles are left untouched.
func (r *ProfileRepository) CreateProfile(ctx context.Context, userID string) error {
	query := `
		INSERT INTO profiles (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`

	if err := r.db.Exec(ctx, query, userID); err != nil {
		r.logger.Error("failed to create profile",
			zap.String("user_id", userID),
			zap.String("error_type", fmt.Sprintf("%T", err)),
			zap.Error(err))
		return domain.ErrPersistence
	}

	return nil
}

// GetProfile retrieves the profile for a user
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `
		SELECT user_id, mfa_secret, mfa_enabled, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	var p domain.Profile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.MFASecret,
		&p.MFAEnabled,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		r.logger.Error("failed to get profile", zap.String("user_id", userID), zap.Error(err))
		return nil, domain.ErrPersistence
	}

	return &p, nil
}

// EnableMFA stores the secret and sets mfa_enabled in one statement. Only a
// profile that is not enrolled yet is updated, so of two concurrent
// confirmations exactly one succeeds.
func (r *ProfileRepository) EnableMFA(ctx context.Context, userID, secret string) error {
	if secret == "" {
		r.logger.Error("refusing to enable MFA with an empty secret", zap.String("user_id", userID))
		return domain.ErrInvalidSecret
	}

	query := `
		UPDATE profiles
		SET mfa_secret = $2, mfa_enabled = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND mfa_enabled = FALSE
	`

	tag, err := r.db.ExecRaw(ctx, query, userID, secret)
	if err != nil {
		r.logger.Error("failed to enable MFA",
			zap.String("user_id", userID),
			zap.String("error_type", fmt.Sprintf("%T", err)),
			zap.Error(err))
		return domain.ErrPersistence
	}

	if tag.RowsAffected() == 0 {
		return r.classifyNoop(ctx, userID, domain.ErrMFAAlreadyEnabled)
	}

	return nil
}

// DisableMFA clears the secret and the flag in one statement
func (r *ProfileRepository) DisableMFA(ctx context.Context, userID string) error {
	query := `
		UPDATE profiles
		SET mfa_secret = NULL, mfa_enabled = FALSE, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND mfa_enabled = TRUE
	`

	tag, err := r.db.ExecRaw(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to disable MFA", zap.String("user_id", userID), zap.Error(err))
		return domain.ErrPersistence
	}

	if tag.RowsAffected() == 0 {
		return r.classifyNoop(ctx, userID, domain.ErrMFANotConfigured)
	}

	return nil
}

// classifyNoop explains a conditional update that matched no row: either the
// user does not exist or the profile is in the wrong state.
func (r *ProfileRepository) classifyNoop(ctx context.Context, userID string, stateErr error) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		r.logger.Error("failed to check profile existence", zap.String("user_id", userID), zap.Error(err))
		return domain.ErrPersistence
	}
	if !exists {
		return domain.ErrUserNotFound
	}
	return stateErr
}
