package migrations

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type starterUser struct {
	IsStarter bool `gorm:"not null;default:false"`
}

func (starterUser) TableName() string { return "users" }

type projectOwner struct {
	ID uint `gorm:"primaryKey"`
}

func (projectOwner) TableName() string { return "users" }

// project is the projects table as introduced by 002_projects.
type project struct {
	ID               uint                `gorm:"primaryKey;index:ix_projects_id"`
	OwnerID          uint                `gorm:"not null;index:ix_projects_owner_id"`
	Owner            projectOwner        `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Title            string              `gorm:"size:255;not null"`
	Slug             string              `gorm:"size:255;not null;uniqueIndex:ix_projects_slug"`
	Description      *string             `gorm:"type:text"`
	ShortDescription *string             `gorm:"size:500"`
	FundingGoal      decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	FundingCurrent   decimal.Decimal     `gorm:"type:numeric(12,2);not null;default:0"`
	Status           string              `gorm:"size:50;not null;default:draft;index:ix_projects_status"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	SubmittedAt      *time.Time
	VerifiedAt       *time.Time
	FinancingStart   *time.Time
	FinancingEnd     *time.Time
	ImageURL         *string `gorm:"size:500"`
	VideoURL         *string `gorm:"size:500"`
}

func (project) TableName() string { return "projects" }

// Migration002Projects adds the projects table and the starter flag on users
type Migration002Projects struct{}

func (m *Migration002Projects) Version() string      { return "002_projects" }
func (m *Migration002Projects) DownRevision() string { return "001_magic_link" }
func (m *Migration002Projects) Description() string {
	return "Add users.is_starter and the projects table"
}

// Up runs the migration
func (m *Migration002Projects) Up(tx *gorm.DB) error {
	migrator := tx.Migrator()
	if !migrator.HasColumn(&starterUser{}, "IsStarter") {
		if err := migrator.AddColumn(&starterUser{}, "IsStarter"); err != nil {
			return fmt.Errorf("failed to add users.is_starter: %w", err)
		}
	}
	if migrator.HasTable(&project{}) {
		return nil
	}
	// CreateTable also creates ix_projects_id, ix_projects_slug,
	// ix_projects_owner_id and ix_projects_status.
	if err := migrator.CreateTable(&project{}); err != nil {
		return fmt.Errorf("failed to create projects table: %w", err)
	}
	return nil
}

// Down reverses the migration
func (m *Migration002Projects) Down(tx *gorm.DB) error {
	migrator := tx.Migrator()
	for _, idx := range []string{"ix_projects_status", "ix_projects_owner_id", "ix_projects_slug", "ix_projects_id"} {
		if migrator.HasIndex(&project{}, idx) {
			if err := migrator.DropIndex(&project{}, idx); err != nil {
				return fmt.Errorf("failed to drop index %s: %w", idx, err)
			}
		}
	}
	if err := migrator.DropTable(&project{}); err != nil {
		return fmt.Errorf("failed to drop projects table: %w", err)
	}
	if migrator.HasColumn(&starterUser{}, "IsStarter") {
		if err := migrator.DropColumn(&starterUser{}, "IsStarter"); err != nil {
			return fmt.Errorf("failed to drop users.is_starter: %w", err)
		}
	}
	return nil
}
