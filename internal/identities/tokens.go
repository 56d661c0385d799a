package identities

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Aidin1998/crowdfund/internal/config"
	"github.com/Aidin1998/crowdfund/pkg/models"
)

const TokenType = "bearer"

// AccessClaims is the payload of an access token
type AccessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenClaims are the custom claims checked by the request validator
type TokenClaims struct {
	Email string `json:"email"`
}

// Validate implements validator.CustomClaims
func (c *TokenClaims) Validate(context.Context) error {
	if c.Email == "" {
		return errors.New("token has no email claim")
	}
	return nil
}

// TokenIssuer signs HS256 access tokens
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewTokenIssuer(cfg config.AuthConfig, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.AccessTokenTTL,
		now:      now,
	}
}

// Issue returns a signed token for user and its lifetime in seconds
func (t *TokenIssuer) Issue(user *models.User) (string, int64, error) {
	now := t.now()
	claims := AccessClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Audience:  jwt.ClaimStrings{t.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, int64(t.ttl / time.Second), nil
}

// NewTokenValidator builds the request-side validator for tokens from Issue.
func NewTokenValidator(cfg config.AuthConfig) (*validator.Validator, error) {
	secret := []byte(cfg.Secret)
	keyFunc := func(context.Context) (interface{}, error) {
		return secret, nil
	}
	return validator.New(
		keyFunc,
		validator.HS256,
		cfg.Issuer,
		[]string{cfg.Audience},
		validator.WithAllowedClockSkew(30*time.Second),
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &TokenClaims{}
		}),
	)
}

// SubjectUserID extracts the user id from validated claims.
func SubjectUserID(claims *validator.ValidatedClaims) (uint, error) {
	id, err := strconv.ParseUint(claims.RegisteredClaims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid subject %q", claims.RegisteredClaims.Subject)
	}
	return uint(id), nil
}
