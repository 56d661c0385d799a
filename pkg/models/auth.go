package models

// LoginRequest carries password credentials and, when enabled, a TOTP code
type LoginRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required"`
	TwoFactorCode string `json:"two_factor_code" validate:"omitempty,numeric,len=6"`
}

// LoginResponse is returned by every successful authentication path
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type PasswordResetConfirm struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type MagicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type MagicLinkVerify struct {
	Token string `json:"token" validate:"required"`
}

// TwoFactorSetupResponse carries the secret and an otpauth:// URL for QR rendering
type TwoFactorSetupResponse struct {
	Secret    string `json:"secret"`
	QRCodeURL string `json:"qr_code_url"`
}

type TwoFactorVerifyRequest struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

type TwoFactorToggleRequest struct {
	Enabled bool   `json:"enabled"`
	Code    string `json:"code" validate:"required,numeric,len=6"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// TestEmailRequest asks for a sample of one template to be mailed to Email
type TestEmailRequest struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	EmailType string  `json:"email_type" validate:"required,oneof=welcome password_reset account_activated account_deactivated test_simple"`
	UserName  *string `json:"user_name" validate:"omitempty,max=255"`
}
