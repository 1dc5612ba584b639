package repository

import (
	"context"
	"sync"
	"time"

	"github.com/manorfm/healthshield-mfa/internal/domain"
	"go.uber.org/zap"
)

// MemoryProfileRepository keeps profiles in process memory. It is used for
// local runs and tests.
type MemoryProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*domain.Profile
	logger   *zap.Logger
}

// NewMemoryProfileRepository creates a repository seeded with unenrolled profiles for userIDs
func NewMemoryProfileRepository(logger *zap.Logger, userIDs ...string) *MemoryProfileRepository {
	r := &MemoryProfileRepository{
		profiles: make(map[string]*domain.Profile),
		logger:   logger,
	}
	for _, id := range userIDs {
		r.profiles[id] = domain.NewProfile(id)
	}
	return r
}

func (r *MemoryProfileRepository) CreateProfile(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[userID]; !ok {
		r.profiles[userID] = domain.NewProfile(userID)
	}
	return nil
}

func (r *MemoryProfileRepository) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return clone(p), nil
}

func (r *MemoryProfileRepository) EnableMFA(_ context.Context, userID, secret string) error {
	if secret == "" {
		r.logger.Error("refusing to enable MFA with an empty secret", zap.String("user_id", userID))
		return domain.ErrInvalidSecret
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if p.MFAEnabled {
		return domain.ErrMFAAlreadyEnabled
	}

	p.MFASecret = &secret
	p.MFAEnabled = true
	p.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryProfileRepository) DisableMFA(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if !p.MFAEnabled {
		return domain.ErrMFANotConfigured
	}

	p.MFASecret = nil
	p.MFAEnabled = false
	p.UpdatedAt = time.Now()
	return nil
}

// Ping always succeeds
func (r *MemoryProfileRepository) Ping(context.Context) error {
	return nil
}

func clone(p *domain.Profile) *domain.Profile {
	c := *p
	if p.MFASecret != nil {
		secret := *p.MFASecret
		c.MFASecret = &secret
	}
	return &c
}
