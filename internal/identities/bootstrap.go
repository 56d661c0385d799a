package identities

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Aidin1998/crowdfund/internal/database"
	"github.com/Aidin1998/crowdfund/pkg/models"
)

const adminFullName = "Admin User"

// EnsureAdmin creates the bootstrap admin account when it is missing. It
// reports whether a user was created. Empty credentials skip the check.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.logger.Debug("Admin bootstrap skipped, credentials not configured")
		return false, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check admin user: %w", err)
	}
	if count > 0 {
		s.logger.Info("Admin user already exists", zap.String("email", email))
		return false, nil
	}

	hashed, err := s.hashPassword(password)
	if err != nil {
		return false, err
	}
	name := adminFullName
	admin := &models.User{
		Email:          email,
		HashedPassword: hashed,
		FullName:       &name,
		IsActive:       true,
		IsAdmin:        true,
	}
	if err := s.db.WithContext(ctx).Create(admin).Error; err != nil {
		if database.IsUniqueViolation(err) {
			// another process won the race
			s.logger.Info("Admin user already exists", zap.String("email", email))
			return false, nil
		}
		return false, fmt.Errorf("failed to create admin user: %w", err)
	}

	s.logger.Info("Admin user created", zap.String("email", email), zap.Uint("user_id", admin.ID))
	return true, nil
}
