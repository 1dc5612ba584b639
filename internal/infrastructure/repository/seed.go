package repository

import (
	"context"
	"fmt"

	"github.com/manorfm/healthshield-mfa/internal/domain"
	"go.uber.org/zap"
)

// SeedProfiles creates an unenrolled profile for every user id that does not
// have one yet. Enrolled profiles are left as they are.
func SeedProfiles(ctx context.Context, repo domain.ProfileRepository, userIDs []string, logger *zap.Logger) error {
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if err := repo.CreateProfile(ctx, id); err != nil {
			return fmt.Errorf("error seeding profile %s: %w", id, err)
		}
	}

	if len(userIDs) > 0 {
		logger.Info("Seeded profiles", zap.Int("count", len(userIDs)))
	}
	return nil
}
