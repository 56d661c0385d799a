package identities

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Aidin1998/crowdfund/internal/config"
	"github.com/Aidin1998/crowdfund/internal/database"
	"github.com/Aidin1998/crowdfund/internal/events"
	"github.com/Aidin1998/crowdfund/internal/notification"
	"github.com/Aidin1998/crowdfund/pkg/errors"
	"github.com/Aidin1998/crowdfund/pkg/metrics"
	"github.com/Aidin1998/crowdfund/pkg/models"
	"github.com/Aidin1998/crowdfund/pkg/validation"
)

// IdentityService defines account, authentication and user administration operations.
type IdentityService interface {
	Register(ctx context.Context, req *models.UserCreate) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	UpdateProfile(ctx context.Context, id uint, req *models.UserUpdate) (*models.User, error)

	RequestMagicLink(ctx context.Context, req *models.MagicLinkRequest) error
	VerifyMagicLink(ctx context.Context, req *models.MagicLinkVerify) (*models.LoginResponse, error)
	RequestPasswordReset(ctx context.Context, req *models.PasswordResetRequest) error
	ConfirmPasswordReset(ctx context.Context, req *models.PasswordResetConfirm) error

	SetupTwoFactor(ctx context.Context, id uint) (*models.TwoFactorSetupResponse, error)
	VerifyTwoFactor(ctx context.Context, id uint, req *models.TwoFactorVerifyRequest) (*models.User, error)
	ToggleTwoFactor(ctx context.Context, id uint, req *models.TwoFactorToggleRequest) (*models.User, error)

	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, int64, error)
	AdminUpdateUser(ctx context.Context, actorID, id uint, req *models.AdminUserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, actorID, id uint) error
	SendTestEmail(ctx context.Context, actorID uint, req *models.TestEmailRequest) error

	EnsureAdmin(ctx context.Context, email, password string) (bool, error)
}

// Service implements IdentityService
type Service struct {
	logger       *zap.Logger
	db           *gorm.DB
	cfg          config.AuthConfig
	validator    *validation.Validator
	tokens       *TokenIssuer
	notifier     *notification.Notifier
	emitter      *events.Emitter
	now          func() time.Time
	passwordCost int
	// hashed at passwordCost so an unknown email costs the same as a wrong password
	dummyHash    []byte
}

// Option customises a Service
type Option func(*Service)

func WithNotifier(n *notification.Notifier) Option { return func(s *Service) { s.notifier = n } }
func WithEmitter(e *events.Emitter) Option         { return func(s *Service) { s.emitter = e } }
func WithClock(now func() time.Time) Option        { return func(s *Service) { s.now = now } }

// WithPasswordCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithPasswordCost(cost int) Option { return func(s *Service) { s.passwordCost = cost } }

// NewService creates a new identity service
func NewService(logger *zap.Logger, db *gorm.DB, cfg config.AuthConfig, v *validation.Validator, opts ...Option) *Service {
	svc := &Service{
		logger:       logger,
		db:           db,
		cfg:          cfg,
		validator:    v,
		now:          time.Now,
		passwordCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.notifier == nil {
		svc.notifier = notification.NewNotifier(notification.NewLogMailer(logger), "", logger)
	}
	svc.tokens = NewTokenIssuer(cfg, svc.now)

	dummy, err := bcrypt.GenerateFromPassword([]byte("timing-equaliser"), svc.passwordCost)
	if err != nil {
		logger.Warn("Invalid bcrypt cost, using default", zap.Int("cost", svc.passwordCost), zap.Error(err))
		svc.passwordCost = bcrypt.DefaultCost
		dummy, _ = bcrypt.GenerateFromPassword([]byte("timing-equaliser"), svc.passwordCost)
	}
	svc.dummyHash = dummy
	return svc
}

var _ IdentityService = (*Service)(nil)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func subject(kind string, id uint) string {
	return kind + ":" + strconv.FormatUint(uint64(id), 10)
}

func (s *Service) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Register creates an active, non-admin account
func (s *Service) Register(ctx context.Context, req *models.UserCreate) (*models.User, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return nil, errors.Conflict.Explain("Email already registered")
	}

	hashed, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:          email,
		HashedPassword: hashed,
		FullName:       s.cleanName(req.FullName),
		IsActive:       true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errors.Conflict.Explain("Email already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	metrics.UsersRegistered.Inc()
	s.logger.Info("User registered", zap.Uint("user_id", user.ID))
	s.emitter.Emit(ctx, events.UserRegistered, subject("user", user.ID), map[string]any{"email": user.Email})
	s.notifier.Send(ctx, notification.KindWelcome, user.Email, user.DisplayName(), map[string]string{
		"link": s.notifier.Link("/login", ""),
	})
	return user, nil
}

// Login authenticates with email and password, plus a TOTP code when the
// account has two-factor enabled.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	invalid := errors.Unauthorized.Explain("Incorrect email or password")

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(req.Email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
			metrics.AuthAttempts.WithLabelValues("password", "failure").Inc()
			return nil, invalid
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
		metrics.AuthAttempts.WithLabelValues("password", "failure").Inc()
		return nil, invalid
	}
	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues("password", "inactive").Inc()
		return nil, errors.Forbidden.Explain("Account is deactivated")
	}

	if user.TwoFactorEnabled {
		if req.TwoFactorCode == "" {
			metrics.AuthAttempts.WithLabelValues("password", "two_factor_required").Inc()
			return nil, errors.TwoFactorRequired.Explain("Two-factor code required")
		}
		if !s.validTOTP(&user, req.TwoFactorCode) {
			metrics.AuthAttempts.WithLabelValues("password", "two_factor_failure").Inc()
			return nil, errors.Unauthorized.Explain("Invalid two-factor code")
		}
	}

	metrics.AuthAttempts.WithLabelValues("password", "success").Inc()
	return s.loginResponse(&user)
}

func (s *Service) loginResponse(user *models.User) (*models.LoginResponse, error) {
	token, expiresIn, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{
		AccessToken: token,
		TokenType:   TokenType,
		ExpiresIn:   expiresIn,
		User:        models.NewUserResponse(user),
	}, nil
}

// GetUser loads a user by id
func (s *Service) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound.Explain("User %d not found", id)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// UpdateProfile changes the caller's name and/or password
func (s *Service) UpdateProfile(ctx context.Context, id uint, req *models.UserUpdate) (*models.User, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		updates["full_name"] = s.cleanName(req.FullName)
	}
	if req.Password != nil {
		hashed, err := s.hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		updates["hashed_password"] = hashed
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.GetUser(ctx, id)
}

// cleanName strips markup and maps blank names to NULL.
func (s *Service) cleanName(name *string) *string {
	if name == nil {
		return nil
	}
	cleaned := s.validator.SanitizeText(*name)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
