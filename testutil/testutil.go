// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/bxcodec/faker/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Aidin1998/crowdfund/internal/config"
	"github.com/Aidin1998/crowdfund/internal/database"
	"github.com/Aidin1998/crowdfund/internal/database/migrations"
	"github.com/Aidin1998/crowdfund/pkg/models"
)

// NewDB opens an in-memory sqlite database with every migration applied.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	_, err = migrations.NewMigrationRunner(db, zap.NewNop()).Up(context.Background())
	require.NoError(t, err)
	return db
}

// AuthConfig returns settings suitable for tests.
func AuthConfig() config.AuthConfig {
	return config.AuthConfig{
		Secret:          "test-secret-with-at-least-32-bytes!!",
		Issuer:          "crowdfund-test",
		Audience:        "crowdfund-test-api",
		AccessTokenTTL:  30 * time.Minute,
		MagicLinkTTL:    15 * time.Minute,
		ResetTokenTTL:   time.Hour,
		TOTPIssuer:      "Crowdfund Test",
		RateLimitPerMin: 1000,
		RateLimitWindow: time.Minute,
	}
}

// UserOption tweaks a fixture user before it is stored.
type UserOption func(*models.User)

func Admin() UserOption    { return func(u *models.User) { u.IsAdmin = true } }
func Inactive() UserOption { return func(u *models.User) { u.IsActive = false } }

func WithEmail(email string) UserOption {
	return func(u *models.User) { u.Email = email }
}

// CreateUser stores an active user with a random email and returns it with
// its plaintext password.
func CreateUser(t testing.TB, db *gorm.DB, opts ...UserOption) (*models.User, string) {
	t.Helper()
	password := "pw-" + uuid.NewString()[:12]
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	name := faker.Name()
	user := &models.User{
		Email:          strings.ToLower(uuid.NewString()[:8] + "." + faker.Email()),
		HashedPassword: string(hashed),
		FullName:       &name,
		IsActive:       true,
	}
	for _, opt := range opts {
		opt(user)
	}
	// gorm inserts the column default for a false bool and copies it back
	// into the struct, so the wanted value is written after the insert.
	active := user.IsActive
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Model(user).Update("is_active", active).Error)
	user.IsActive = active
	return user, password
}

var tokenParam = regexp.MustCompile(`token=([^\s"&<]+)`)

// TokenFromLink extracts the token query parameter from a mailed link.
func TokenFromLink(t testing.TB, body string) string {
	t.Helper()
	m := tokenParam.FindStringSubmatch(body)
	require.NotNil(t, m, "no token in %q", body)
	token, err := url.QueryUnescape(m[1])
	require.NoError(t, err)
	return token
}
