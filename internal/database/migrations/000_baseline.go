package migrations

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// baselineUser is the users table as it existed before versioned migrations.
type baselineUser struct {
	ID                uint       `gorm:"primaryKey"`
	Email             string     `gorm:"size:255;not null;uniqueIndex:ix_users_email"`
	HashedPassword    string     `gorm:"size:255;not null"`
	FullName          *string    `gorm:"size:255"`
	IsActive          bool       `gorm:"not null;default:true"`
	IsAdmin           bool       `gorm:"not null;default:false"`
	TwoFactorSecret   *string    `gorm:"size:64"`
	TwoFactorEnabled  bool       `gorm:"not null;default:false"`
	ResetToken        *string    `gorm:"size:255;index:ix_users_reset_token"`
	ResetTokenExpires *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (baselineUser) TableName() string { return "users" }

// Migration000Baseline creates the users table
type Migration000Baseline struct{}

func (m *Migration000Baseline) Version() string      { return "000_baseline" }
func (m *Migration000Baseline) DownRevision() string { return "" }
func (m *Migration000Baseline) Description() string  { return "Baseline users table" }

// Up runs the migration
func (m *Migration000Baseline) Up(tx *gorm.DB) error {
	if tx.Migrator().HasTable(&baselineUser{}) {
		return nil
	}
	if err := tx.Migrator().CreateTable(&baselineUser{}); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

// Down reverses the migration
func (m *Migration000Baseline) Down(tx *gorm.DB) error {
	if err := tx.Migrator().DropTable(&baselineUser{}); err != nil {
		return fmt.Errorf("failed to drop users table: %w", err)
	}
	return nil
}
