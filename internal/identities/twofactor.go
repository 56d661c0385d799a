package identities

import (
	"context"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/Aidin1998/crowdfund/pkg/errors"
	"github.com/Aidin1998/crowdfund/pkg/models"
)

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

func (s *Service) validTOTP(user *models.User, code string) bool {
	if user.TwoFactorSecret == nil || *user.TwoFactorSecret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, *user.TwoFactorSecret, s.now().UTC(), totpOpts)
	if err != nil {
		s.logger.Debug("TOTP validation error", zap.Uint("user_id", user.ID), zap.Error(err))
		return false
	}
	return ok
}

// SetupTwoFactor generates a new secret for the user. Two-factor stays
// disabled until a code from the secret is verified. An enabled user must
// turn two-factor off with a valid code before starting over.
func (s *Service) SetupTwoFactor(ctx context.Context, id uint) (*models.TwoFactorSetupResponse, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, errors.Conflict.Explain("Two-factor is already enabled")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.cfg.TOTPIssuer,
		AccountName: user.Email,
		Period:      totpOpts.Period,
		Digits:      totpOpts.Digits,
		Algorithm:   totpOpts.Algorithm,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	secret := key.Secret()
	err = s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"two_factor_secret":  secret,
		"two_factor_enabled": false,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store totp secret: %w", err)
	}

	s.logger.Info("Two-factor setup started", zap.Uint("user_id", user.ID))
	return &models.TwoFactorSetupResponse{Secret: secret, QRCodeURL: key.URL()}, nil
}

// VerifyTwoFactor enables two-factor once the user proves they hold the secret.
func (s *Service) VerifyTwoFactor(ctx context.Context, id uint, req *models.TwoFactorVerifyRequest) (*models.User, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorSecret == nil {
		return nil, errors.Invalid.Explain("Two-factor setup has not been started")
	}
	if !s.validTOTP(user, req.Code) {
		return nil, errors.Invalid.Explain("Invalid two-factor code")
	}
	if err := s.db.WithContext(ctx).Model(user).Update("two_factor_enabled", true).Error; err != nil {
		return nil, fmt.Errorf("failed to enable two-factor: %w", err)
	}
	s.logger.Info("Two-factor enabled", zap.Uint("user_id", user.ID))
	return s.GetUser(ctx, id)
}

// ToggleTwoFactor switches two-factor on or off. Both directions require a
// valid code; turning it off also discards the secret.
func (s *Service) ToggleTwoFactor(ctx context.Context, id uint, req *models.TwoFactorToggleRequest) (*models.User, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorSecret == nil {
		return nil, errors.Invalid.Explain("Two-factor setup has not been started")
	}
	if !s.validTOTP(user, req.Code) {
		return nil, errors.Invalid.Explain("Invalid two-factor code")
	}

	updates := map[string]interface{}{"two_factor_enabled": req.Enabled}
	if !req.Enabled {
		updates["two_factor_secret"] = nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to toggle two-factor: %w", err)
	}
	s.logger.Info("Two-factor toggled", zap.Uint("user_id", user.ID), zap.Bool("enabled", req.Enabled))
	return s.GetUser(ctx, id)
}
