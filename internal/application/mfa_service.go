package application

import (
	"context"
	"errors"

	"github.com/manorfm/healthshield-mfa/internal/domain"
	"go.uber.org/zap"
)

const (
	confirmAttemptPrefix = "confirm:"
	verifyAttemptPrefix  = "verify:"
)

// mfaServiceImpl implements the MFAService interface
type mfaServiceImpl struct {
	repo      domain.ProfileRepository
	generator domain.TOTPGenerator
	limiter   domain.AttemptLimiter
	sealer    domain.SecretSealer
	params    *domain.TOTPParams
	logger    *zap.Logger
}

// NewMFAService creates a new MFA enrollment and verification service
func NewMFAService(
	repo domain.ProfileRepository,
	generator domain.TOTPGenerator,
	limiter domain.AttemptLimiter,
	sealer domain.SecretSealer,
	params *domain.TOTPParams,
	logger *zap.Logger,
) domain.MFAService {
	return &mfaServiceImpl{
		repo:      repo,
		generator: generator,
		limiter:   limiter,
		sealer:    sealer,
		params:    params,
		logger:    logger,
	}
}

// BeginEnrollment issues a fresh secret for a user that is not enrolled.
// Nothing is persisted until the user confirms with a valid code.
func (s *mfaServiceImpl) BeginEnrollment(ctx context.Context, userID string) (*domain.Enrollment, error) {
	if userID == "" {
		return nil, domain.ErrMissingParameters
	}

	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.MFAEnabled {
		return nil, domain.ErrMFAAlreadyEnabled
	}

	secret, err := s.generator.GenerateSecret()
	if err != nil {
		s.logger.Error("Failed to generate TOTP secret",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, err
	}

	uri := s.generator.ProvisioningURI(userID, secret)

	qrCode, err := s.generator.QRCode(uri)
	if err != nil {
		s.logger.Error("Failed to generate QR code",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, err
	}

	return &domain.Enrollment{
		Secret:          secret,
		ProvisioningURI: uri,
		QRCode:          qrCode,
	}, nil
}

// ConfirmEnrollment commits secret once the user proves possession of it
func (s *mfaServiceImpl) ConfirmEnrollment(ctx context.Context, userID, secret, code string) error {
	if userID == "" || secret == "" || code == "" {
		return domain.ErrMissingParameters
	}

	if err := s.allow(ctx, confirmAttemptPrefix+userID); err != nil {
		return err
	}

	if err := s.generator.CheckSecret(secret); err != nil {
		s.logger.Info("Rejected enrollment secret",
			zap.String("user_id", userID),
			zap.Error(err))
		return err
	}

	offset, err := s.generator.ValidateCode(secret, code, s.params.EnrollmentWindow)
	if err != nil {
		return err
	}

	sealed, err := s.sealer.Seal(userID, secret)
	if err != nil {
		s.logger.Error("Failed to seal TOTP secret",
			zap.String("user_id", userID),
			zap.Error(err))
		return err
	}

	if err := s.repo.EnableMFA(ctx, userID, sealed); err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			s.logger.Error("Failed to enable MFA",
				zap.String("user_id", userID),
				zap.Error(err))
			return domain.ErrEnableMFA
		}
		return err
	}

	s.logger.Info("MFA enabled",
		zap.String("user_id", userID),
		zap.Int("step_offset", offset))
	return nil
}

// VerifyLogin checks a login code against the committed secret. A wrong or
// malformed code is a normal negative result, not an error.
func (s *mfaServiceImpl) VerifyLogin(ctx context.Context, userID, code string) (bool, error) {
	if userID == "" || code == "" {
		return false, domain.ErrMissingLoginParameters
	}

	if err := s.allow(ctx, verifyAttemptPrefix+userID); err != nil {
		return false, err
	}

	secret, err := s.committedSecret(ctx, userID)
	if err != nil {
		return false, err
	}

	_, err = s.generator.ValidateCode(secret, code, s.params.LoginWindow)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrInvalidTOTPCode), errors.Is(err, domain.ErrInvalidTOTPFormat):
		return false, nil
	default:
		return false, err
	}
}

// DisableMFA clears the committed secret after checking a current code
func (s *mfaServiceImpl) DisableMFA(ctx context.Context, userID, code string) error {
	if userID == "" || code == "" {
		return domain.ErrMissingLoginParameters
	}

	if err := s.allow(ctx, verifyAttemptPrefix+userID); err != nil {
		return err
	}

	secret, err := s.committedSecret(ctx, userID)
	if err != nil {
		return err
	}

	if _, err := s.generator.ValidateCode(secret, code, s.params.LoginWindow); err != nil {
		return err
	}

	if err := s.repo.DisableMFA(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("MFA disabled", zap.String("user_id", userID))
	return nil
}

// committedSecret returns the opened secret of an enrolled user
func (s *mfaServiceImpl) committedSecret(ctx context.Context, userID string) (string, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if !profile.Enrolled() {
		return "", domain.ErrMFANotConfigured
	}

	return s.sealer.Open(userID, *profile.MFASecret)
}

func (s *mfaServiceImpl) allow(ctx context.Context, key string) error {
	ok, err := s.limiter.Allow(ctx, key)
	if err != nil {
		s.logger.Error("Failed to check attempt limit", zap.String("key", key), zap.Error(err))
		return domain.ErrPersistence
	}
	if !ok {
		s.logger.Warn("Too many verification attempts", zap.String("key", key))
		return domain.ErrTooManyAttempts
	}
	return nil
}
