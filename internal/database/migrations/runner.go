package migrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Aidin1998/crowdfund/pkg/metrics"
	"github.com/Aidin1998/crowdfund/pkg/models"
)

// Migration is one versioned schema change. DownRevision names the migration
// it builds on; the root migration returns "".
type Migration interface {
	Up(tx *gorm.DB) error
	Down(tx *gorm.DB) error
	Version() string
	DownRevision() string
	Description() string
}

// SchemaMigration represents a migration record in the database. Its table is
// the baseline marker probed at startup.
type SchemaMigration struct {
	Version   string    `gorm:"primaryKey;column:version;size:64"`
	AppliedAt time.Time `gorm:"column:applied_at;not null"`
}

// TableName specifies the table name for SchemaMigration
func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

// MigrationStatus reports whether a migration has been applied
type MigrationStatus struct {
	Version     string     `json:"version"`
	Description string     `json:"description"`
	Applied     bool       `json:"applied"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
}

// BootstrapResult describes what the startup procedure did
type BootstrapResult struct {
	Stamped  bool
	Applied  []string
	Fallback bool
	Err      error
}

var ErrNothingToRollback = errors.New("no applied migrations to roll back")

// legacyTable is the table whose presence without a marker means the schema
// predates versioned migrations.
const legacyTable = "users"

// MigrationRunner handles database migrations
type MigrationRunner struct {
	db         *gorm.DB
	logger     *zap.Logger
	migrations []Migration
}

// NewMigrationRunner creates a runner over the application's migrations
func NewMigrationRunner(db *gorm.DB, logger *zap.Logger) *MigrationRunner {
	return NewMigrationRunnerWith(db, logger, All()...)
}

// NewMigrationRunnerWith creates a runner over an explicit migration set
func NewMigrationRunnerWith(db *gorm.DB, logger *zap.Logger, migrations ...Migration) *MigrationRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MigrationRunner{db: db, logger: logger, migrations: migrations}
}

// All returns the application's migrations in declaration order.
func All() []Migration {
	return []Migration{
		&Migration000Baseline{},
		&Migration001MagicLink{},
		&Migration002Projects{},
	}
}

// Plan orders migrations by following DownRevision links from the root. The
// chain must be linear: one root, one head, no unknown parents or cycles.
func (mr *MigrationRunner) Plan() ([]Migration, error) {
	byVersion := make(map[string]Migration, len(mr.migrations))
	children := make(map[string][]Migration, len(mr.migrations))
	var roots []Migration

	for _, m := range mr.migrations {
		if _, dup := byVersion[m.Version()]; dup {
			return nil, fmt.Errorf("duplicate migration version %s", m.Version())
		}
		byVersion[m.Version()] = m
	}
	for _, m := range mr.migrations {
		parent := m.DownRevision()
		if parent == "" {
			roots = append(roots, m)
			continue
		}
		if _, ok := byVersion[parent]; !ok {
			return nil, fmt.Errorf("migration %s depends on unknown revision %s", m.Version(), parent)
		}
		children[parent] = append(children[parent], m)
	}

	switch len(roots) {
	case 0:
		if len(mr.migrations) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("migration graph has no root (cycle)")
	case 1:
	default:
		return nil, fmt.Errorf("migration graph has %d roots", len(roots))
	}

	plan := make([]Migration, 0, len(mr.migrations))
	for cur := roots[0]; cur != nil; {
		plan = append(plan, cur)
		next := children[cur.Version()]
		switch len(next) {
		case 0:
			cur = nil
		case 1:
			cur = next[0]
		default:
			return nil, fmt.Errorf("migration %s has %d heads", cur.Version(), len(next))
		}
	}
	if len(plan) != len(mr.migrations) {
		return nil, fmt.Errorf("migration graph has a cycle or detached revisions")
	}
	return plan, nil
}

// Bootstrap runs the startup procedure. A pre-existing schema without the
// marker table is stamped at the baseline, pending migrations are applied in
// dependency order, and on any failure the current models are created with
// AutoMigrate instead. Only a failure of that fallback is returned.
func (mr *MigrationRunner) Bootstrap(ctx context.Context) (BootstrapResult, error) {
	var result BootstrapResult

	err := func() error {
		migrator := mr.db.WithContext(ctx).Migrator()
		hasMarker := migrator.HasTable(&SchemaMigration{})
		hasLegacy := migrator.HasTable(legacyTable)

		if !hasMarker && hasLegacy {
			plan, err := mr.Plan()
			if err != nil {
				return err
			}
			if len(plan) > 0 {
				baseline := plan[0].Version()
				mr.logger.Info("Existing schema without migration history, stamping baseline",
					zap.String("version", baseline))
				if err := mr.Stamp(ctx, baseline); err != nil {
					return err
				}
				result.Stamped = true
			}
		}

		applied, err := mr.Up(ctx)
		result.Applied = applied
		return err
	}()
	if err == nil {
		return result, nil
	}

	result.Err = err
	result.Fallback = true
	metrics.MigrationsApplied.WithLabelValues("fallback").Inc()
	mr.logger.Error("Migration failed, falling back to schema creation", zap.Error(err))

	if ferr := mr.db.WithContext(ctx).AutoMigrate(&models.User{}, &models.Project{}); ferr != nil {
		return result, fmt.Errorf("fallback schema creation failed: %w", ferr)
	}
	mr.logger.Info("Schema created from current models")
	return result, nil
}

// Up applies all pending migrations, each in its own transaction, and
// returns the versions applied.
func (mr *MigrationRunner) Up(ctx context.Context) ([]string, error) {
	if err := mr.ensureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	plan, err := mr.Plan()
	if err != nil {
		return nil, err
	}
	applied, err := mr.getAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var done []string
	for _, migration := range plan {
		if _, ok := applied[migration.Version()]; ok {
			continue
		}
		mr.logger.Info("Running migration",
			zap.String("version", migration.Version()),
			zap.String("description", migration.Description()),
		)

		err := mr.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{Version: migration.Version(), AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return done, fmt.Errorf("failed to run migration %s: %w", migration.Version(), err)
		}

		metrics.MigrationsApplied.WithLabelValues("applied").Inc()
		mr.logger.Info("Migration completed", zap.String("version", migration.Version()))
		done = append(done, migration.Version())
	}
	return done, nil
}

// Stamp records version and all of its ancestors as applied without running them.
func (mr *MigrationRunner) Stamp(ctx context.Context, version string) error {
	if err := mr.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	plan, err := mr.Plan()
	if err != nil {
		return err
	}

	idx := -1
	for i, m := range plan {
		if m.Version() == version {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("migration %s not found", version)
	}

	now := time.Now().UTC()
	records := make([]SchemaMigration, 0, idx+1)
	for _, m := range plan[:idx+1] {
		records = append(records, SchemaMigration{Version: m.Version(), AppliedAt: now})
	}
	if err := mr.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&records).Error; err != nil {
		return fmt.Errorf("failed to stamp %s: %w", version, err)
	}
	metrics.MigrationsApplied.WithLabelValues("stamped").Add(float64(len(records)))
	return nil
}

// Down reverts the most recent applied migration and returns its version.
func (mr *MigrationRunner) Down(ctx context.Context) (string, error) {
	if err := mr.ensureMigrationsTable(ctx); err != nil {
		return "", fmt.Errorf("failed to create migrations table: %w", err)
	}
	plan, err := mr.Plan()
	if err != nil {
		return "", err
	}
	applied, err := mr.getAppliedMigrations(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for i := len(plan) - 1; i >= 0; i-- {
		migration := plan[i]
		if _, ok := applied[migration.Version()]; !ok {
			continue
		}
		mr.logger.Info("Rolling back migration",
			zap.String("version", migration.Version()),
			zap.String("description", migration.Description()),
		)
		err := mr.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := migration.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&SchemaMigration{Version: migration.Version()}).Error
		})
		if err != nil {
			return "", fmt.Errorf("failed to rollback migration %s: %w", migration.Version(), err)
		}
		mr.logger.Info("Migration rolled back", zap.String("version", migration.Version()))
		return migration.Version(), nil
	}
	return "", ErrNothingToRollback
}

// Status returns every known migration in plan order with its applied state
func (mr *MigrationRunner) Status(ctx context.Context) ([]MigrationStatus, error) {
	plan, err := mr.Plan()
	if err != nil {
		return nil, err
	}
	applied := map[string]time.Time{}
	if mr.db.WithContext(ctx).Migrator().HasTable(&SchemaMigration{}) {
		if applied, err = mr.getAppliedMigrations(ctx); err != nil {
			return nil, fmt.Errorf("failed to get applied migrations: %w", err)
		}
	}

	out := make([]MigrationStatus, 0, len(plan))
	for _, m := range plan {
		st := MigrationStatus{Version: m.Version(), Description: m.Description()}
		if at, ok := applied[m.Version()]; ok {
			st.Applied = true
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}

// ensureMigrationsTable creates the schema_migrations table if it doesn't exist
func (mr *MigrationRunner) ensureMigrationsTable(ctx context.Context) error {
	return mr.db.WithContext(ctx).AutoMigrate(&SchemaMigration{})
}

// getAppliedMigrations returns applied migration versions with their timestamps
func (mr *MigrationRunner) getAppliedMigrations(ctx context.Context) (map[string]time.Time, error) {
	var rows []SchemaMigration
	if err := mr.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}

	applied := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		applied[row.Version] = row.AppliedAt
	}
	return applied, nil
}
