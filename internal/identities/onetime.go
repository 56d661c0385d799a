package identities

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/crowdfund/internal/notification"
	"github.com/Aidin1998/crowdfund/pkg/errors"
	"github.com/Aidin1998/crowdfund/pkg/metrics"
	"github.com/Aidin1998/crowdfund/pkg/models"
)

// oneTimeColumns names the token/expiry column pair of a single-use credential.
type oneTimeColumns struct {
	token   string
	expires string
}

var (
	magicLinkColumns = oneTimeColumns{token: "magic_link_token", expires: "magic_link_expires"}
	resetColumns     = oneTimeColumns{token: "reset_token", expires: "reset_token_expires"}
)

// newOneTimeToken returns the token mailed to the user and the digest stored
// in the database.
func newOneTimeToken() (raw, digest string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(b)
	return raw, hashToken(raw), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// issueOneTime stores a fresh token for an active user with the given email.
// Unknown and inactive addresses are not reported to the caller.
func (s *Service) issueOneTime(ctx context.Context, email string, cols oneTimeColumns, ttl time.Duration) (*models.User, string, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, "", nil
	}

	raw, digest, err := newOneTimeToken()
	if err != nil {
		return nil, "", err
	}
	err = s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		cols.token:   digest,
		cols.expires: s.now().Add(ttl).UTC(),
	}).Error
	if err != nil {
		return nil, "", fmt.Errorf("failed to store %s: %w", cols.token, err)
	}
	return &user, raw, nil
}

// consumeOneTime swaps a token for its user and clears it so it cannot be
// replayed. extra is written in the same UPDATE.
func (s *Service) consumeOneTime(ctx context.Context, raw string, cols oneTimeColumns, extra map[string]interface{}) (*models.User, error) {
	digest := hashToken(raw)

	var user models.User
	err := s.db.WithContext(ctx).Where(cols.token+" = ?", digest).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Unauthorized.Explain("Invalid or expired token")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	cleared := map[string]interface{}{cols.token: nil, cols.expires: nil}
	expires := user.MagicLinkExpiry
	if cols == resetColumns {
		expires = user.ResetTokenExpiry
	}
	if expires == nil || !s.now().Before(*expires) {
		if err := s.db.WithContext(ctx).Model(&user).Updates(cleared).Error; err != nil {
			s.logger.Warn("Failed to clear expired token", zap.Uint("user_id", user.ID), zap.Error(err))
		}
		return nil, errors.Unauthorized.Explain("Invalid or expired token")
	}
	if !user.IsActive {
		return nil, errors.Forbidden.Explain("Account is deactivated")
	}

	for k, v := range extra {
		cleared[k] = v
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND "+cols.token+" = ?", user.ID, digest).
		Updates(cleared)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to consume token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// consumed by a concurrent request
		return nil, errors.Unauthorized.Explain("Invalid or expired token")
	}
	return &user, nil
}

// RequestMagicLink mails a single-use sign-in link
func (s *Service) RequestMagicLink(ctx context.Context, req *models.MagicLinkRequest) error {
	if err := s.validator.ValidateStruct(req); err != nil {
		return err
	}
	user, raw, err := s.issueOneTime(ctx, req.Email, magicLinkColumns, s.cfg.MagicLinkTTL)
	if err != nil || user == nil {
		if user == nil && err == nil {
			s.logger.Debug("Magic link requested for unknown or inactive account")
		}
		return err
	}

	s.notifier.Send(ctx, notification.KindMagicLink, user.Email, user.DisplayName(), map[string]string{
		"link": s.notifier.Link("/auth/magic-link", raw),
		"ttl":  s.cfg.MagicLinkTTL.String(),
	})
	s.logger.Info("Magic link issued", zap.Uint("user_id", user.ID))
	return nil
}

// VerifyMagicLink exchanges a magic link token for an access token
func (s *Service) VerifyMagicLink(ctx context.Context, req *models.MagicLinkVerify) (*models.LoginResponse, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	user, err := s.consumeOneTime(ctx, req.Token, magicLinkColumns, nil)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("magic_link", "failure").Inc()
		return nil, err
	}
	metrics.AuthAttempts.WithLabelValues("magic_link", "success").Inc()
	return s.loginResponse(user)
}

// RequestPasswordReset mails a single-use reset link
func (s *Service) RequestPasswordReset(ctx context.Context, req *models.PasswordResetRequest) error {
	if err := s.validator.ValidateStruct(req); err != nil {
		return err
	}
	user, raw, err := s.issueOneTime(ctx, req.Email, resetColumns, s.cfg.ResetTokenTTL)
	if err != nil || user == nil {
		return err
	}

	s.notifier.Send(ctx, notification.KindPasswordReset, user.Email, user.DisplayName(), map[string]string{
		"link": s.notifier.Link("/reset-password", raw),
		"ttl":  s.cfg.ResetTokenTTL.String(),
	})
	s.logger.Info("Password reset issued", zap.Uint("user_id", user.ID))
	return nil
}

// ConfirmPasswordReset sets a new password using a reset token
func (s *Service) ConfirmPasswordReset(ctx context.Context, req *models.PasswordResetConfirm) error {
	if err := s.validator.ValidateStruct(req); err != nil {
		return err
	}
	hashed, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user, err := s.consumeOneTime(ctx, req.Token, resetColumns, map[string]interface{}{"hashed_password": hashed})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("reset", "failure").Inc()
		return err
	}
	metrics.AuthAttempts.WithLabelValues("reset", "success").Inc()
	s.logger.Info("Password reset completed", zap.Uint("user_id", user.ID))
	return nil
}
