package migrations

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/crowdfund/internal/config"
	"github.com/Aidin1998/crowdfund/internal/database"
	"github.com/Aidin1998/crowdfund/pkg/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

type stubMigration struct {
	version, parent string
	upErr           error
	ran             *[]string
}

func (s stubMigration) Version() string      { return s.version }
func (s stubMigration) DownRevision() string { return s.parent }
func (s stubMigration) Description() string  { return "stub " + s.version }
func (s stubMigration) Down(*gorm.DB) error  { return nil }
func (s stubMigration) Up(*gorm.DB) error {
	if s.ran != nil {
		*s.ran = append(*s.ran, s.version)
	}
	return s.upErr
}

func versions(ms []Migration) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Version()
	}
	return out
}

func TestPlanFollowsDownRevisions(t *testing.T) {
	runner := NewMigrationRunnerWith(nil, nil,
		stubMigration{version: "b", parent: "a"},
		stubMigration{version: "c", parent: "b"},
		stubMigration{version: "a"},
	)
	plan, err := runner.Plan()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, versions(plan))

	plan, err = NewMigrationRunner(nil, nil).Plan()
	require.NoError(t, err)
	assert.Equal(t, []string{"000_baseline", "001_magic_link", "002_projects"}, versions(plan))
}

func TestPlanRejectsBrokenGraphs(t *testing.T) {
	cases := map[string][]Migration{
		"duplicate":      {stubMigration{version: "a"}, stubMigration{version: "a"}},
		"unknown parent": {stubMigration{version: "a"}, stubMigration{version: "b", parent: "x"}},
		"two roots":      {stubMigration{version: "a"}, stubMigration{version: "b"}},
		"branch":         {stubMigration{version: "a"}, stubMigration{version: "b", parent: "a"}, stubMigration{version: "c", parent: "a"}},
		"cycle":          {stubMigration{version: "a", parent: "b"}, stubMigration{version: "b", parent: "a"}},
		"detached cycle": {stubMigration{version: "r"}, stubMigration{version: "a", parent: "b"}, stubMigration{version: "b", parent: "a"}},
	}
	for name, ms := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewMigrationRunnerWith(nil, nil, ms...).Plan()
			assert.Error(t, err)
		})
	}
}

func TestBootstrapFreshDatabase(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	res, err := NewMigrationRunner(db, zap.NewNop()).Bootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, res.Stamped)
	assert.False(t, res.Fallback)
	assert.Equal(t, []string{"000_baseline", "001_magic_link", "002_projects"}, res.Applied)

	m := db.Migrator()
	assert.True(t, m.HasTable("users"))
	assert.True(t, m.HasTable("projects"))
	assert.True(t, m.HasColumn(&models.User{}, "MagicLinkToken"))
	assert.True(t, m.HasColumn(&models.User{}, "IsStarter"))
	for _, idx := range []string{"ix_projects_id", "ix_projects_slug", "ix_projects_owner_id", "ix_projects_status"} {
		assert.True(t, m.HasIndex(&models.Project{}, idx), idx)
	}

	// second start is a no-op
	res, err = NewMigrationRunner(db, zap.NewNop()).Bootstrap(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Applied)
}

func TestBootstrapStampsLegacySchema(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Migrator().CreateTable(&baselineUser{}))
	require.NoError(t, db.Exec("INSERT INTO users (email, hashed_password, is_active, is_admin, two_factor_enabled, created_at, updated_at) VALUES ('legacy@example.com', 'x', true, false, false, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)").Error)

	runner := NewMigrationRunner(db, zap.NewNop())
	res, err := runner.Bootstrap(ctx)
	require.NoError(t, err)
	assert.True(t, res.Stamped)
	assert.False(t, res.Fallback)
	assert.Equal(t, []string{"001_magic_link", "002_projects"}, res.Applied)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", "legacy@example.com").Count(&count).Error)
	assert.EqualValues(t, 1, count, "legacy rows survive")

	status, err := runner.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 3)
	for _, st := range status {
		assert.True(t, st.Applied, st.Version)
	}
}

func TestBootstrapFallsBackToSchemaCreation(t *testing.T) {
	db := newTestDB(t)
	var ran []string
	runner := NewMigrationRunnerWith(db, zap.NewNop(),
		&Migration000Baseline{},
		stubMigration{version: "001_broken", parent: "000_baseline", upErr: fmt.Errorf("boom"), ran: &ran},
	)

	res, err := runner.Bootstrap(context.Background())
	require.NoError(t, err, "migration errors must not halt startup")
	assert.True(t, res.Fallback)
	assert.ErrorContains(t, res.Err, "boom")
	assert.Equal(t, []string{"000_baseline"}, res.Applied)
	assert.Equal(t, []string{"001_broken"}, ran)

	assert.True(t, db.Migrator().HasTable("projects"))
	assert.True(t, db.Migrator().HasColumn(&models.User{}, "MagicLinkToken"))

	var rows []SchemaMigration
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1, "failed migration is not recorded")
	assert.Equal(t, "000_baseline", rows[0].Version)
}

func TestMigrationsAreIdempotentAfterFallback(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// schema created by the fallback path, marker table present but empty
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Project{}, &SchemaMigration{}))

	applied, err := NewMigrationRunner(db, zap.NewNop()).Up(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, 3)
}

func TestStampAndDown(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	runner := NewMigrationRunner(db, zap.NewNop())

	require.Error(t, runner.Stamp(ctx, "999_missing"))

	_, err := runner.Up(ctx)
	require.NoError(t, err)

	version, err := runner.Down(ctx)
	require.NoError(t, err)
	assert.Equal(t, "002_projects", version)
	assert.False(t, db.Migrator().HasTable("projects"))
	assert.False(t, db.Migrator().HasColumn(&models.User{}, "IsStarter"))

	status, err := runner.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status[1].Applied)
	assert.False(t, status[2].Applied)

	applied, err := runner.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"002_projects"}, applied)
}

func TestDownWithNothingApplied(t *testing.T) {
	db := newTestDB(t)
	_, err := NewMigrationRunner(db, zap.NewNop()).Down(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRollback)
}

func TestProjectsCascadeWithOwner(t *testing.T) {
	db := newTestDB(t)
	_, err := NewMigrationRunner(db, zap.NewNop()).Up(context.Background())
	require.NoError(t, err)

	owner := models.User{Email: "owner@example.com", HashedPassword: "x", IsActive: true}
	require.NoError(t, db.Create(&owner).Error)
	require.NoError(t, db.Create(&models.Project{OwnerID: owner.ID, Title: "Boat", Slug: "boat", Status: models.ProjectStatusDraft}).Error)

	dup := models.Project{OwnerID: owner.ID, Title: "Boat again", Slug: "boat", Status: models.ProjectStatusDraft}
	assert.True(t, database.IsUniqueViolation(db.Create(&dup).Error))

	require.NoError(t, db.Delete(&models.User{}, owner.ID).Error)
	var count int64
	require.NoError(t, db.Model(&models.Project{}).Count(&count).Error)
	assert.Zero(t, count)
}
