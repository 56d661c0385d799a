package identities

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Aidin1998/crowdfund/internal/database"
	"github.com/Aidin1998/crowdfund/internal/events"
	"github.com/Aidin1998/crowdfund/internal/notification"
	"github.com/Aidin1998/crowdfund/pkg/errors"
	"github.com/Aidin1998/crowdfund/pkg/models"
)

// ListUsers returns a page of users ordered by id and the unpaged total.
func (s *Service) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var users []models.User
	err := query.Order("id ASC").Scopes(database.Paginate(filter.Limit, filter.Offset)).Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// AdminUpdateUser changes the active and admin flags of a user. An admin
// cannot deactivate or demote their own account.
func (s *Service) AdminUpdateUser(ctx context.Context, actorID, id uint, req *models.AdminUserUpdate) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID == id {
		if req.IsActive != nil && !*req.IsActive {
			return nil, errors.Forbidden.Explain("Admins cannot deactivate their own account")
		}
		if req.IsAdmin != nil && !*req.IsAdmin {
			return nil, errors.Forbidden.Explain("Admins cannot remove their own admin role")
		}
	}

	updates := map[string]interface{}{}
	activeChanged := req.IsActive != nil && *req.IsActive != user.IsActive
	if activeChanged {
		updates["is_active"] = *req.IsActive
	}
	if req.IsAdmin != nil && *req.IsAdmin != user.IsAdmin {
		updates["is_admin"] = *req.IsAdmin
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.Info("User updated by admin",
		zap.Uint("user_id", id),
		zap.Uint("admin_id", actorID),
		zap.Any("changes", updates))

	updated, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if activeChanged {
		kind := notification.KindAccountDeactivated
		if updated.IsActive {
			kind = notification.KindAccountActivated
		}
		s.notifier.Send(ctx, kind, updated.Email, updated.DisplayName(), map[string]string{
			"link": s.notifier.Link("/login", ""),
		})
		s.emitter.Emit(ctx, events.UserStatusChanged, subject("user", id), map[string]any{
			"is_active": updated.IsActive,
			"admin_id":  actorID,
		})
	}
	return updated, nil
}

// DeleteUser removes a user and, through the foreign key, their projects.
func (s *Service) DeleteUser(ctx context.Context, actorID, id uint) error {
	if actorID == id {
		return errors.Forbidden.Explain("Admins cannot delete their own account")
	}
	res := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound.Explain("User %d not found", id)
	}
	s.logger.Info("User deleted", zap.Uint("user_id", id), zap.Uint("admin_id", actorID))
	s.emitter.Emit(ctx, events.UserDeleted, subject("user", id), map[string]any{"admin_id": actorID})
	return nil
}

// SendTestEmail mails a sample of one template with placeholder links so an
// admin can check delivery. Unlike account mail, failures are returned.
func (s *Service) SendTestEmail(ctx context.Context, actorID uint, req *models.TestEmailRequest) error {
	if err := s.validator.ValidateStruct(req); err != nil {
		return err
	}
	name := "Test User"
	if req.UserName != nil {
		if cleaned := s.validator.SanitizeText(*req.UserName); cleaned != "" {
			name = cleaned
		}
	}

	kind := notification.Kind(req.EmailType)
	vars := map[string]string{"link": s.notifier.Link("/login", "")}
	if kind == notification.KindPasswordReset {
		vars["link"] = s.notifier.Link("/reset-password", "test-token")
		vars["ttl"] = s.cfg.ResetTokenTTL.String()
	}

	to := normalizeEmail(req.Email)
	if err := s.notifier.Deliver(ctx, kind, to, name, vars); err != nil {
		s.logger.Error("Test email failed", zap.String("kind", req.EmailType), zap.Uint("admin_id", actorID), zap.Error(err))
		return errors.Unavailable.Explain("Failed to send test email").Wrap(err)
	}
	s.logger.Info("Test email sent", zap.String("kind", req.EmailType), zap.Uint("admin_id", actorID))
	return nil
}
