package migrations

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type magicLinkUser struct {
	MagicLinkToken   *string `gorm:"size:255;index:ix_users_magic_link_token"`
	MagicLinkExpires *time.Time
}

func (magicLinkUser) TableName() string { return "users" }

// Migration001MagicLink adds the single-use magic link token columns
type Migration001MagicLink struct{}

func (m *Migration001MagicLink) Version() string      { return "001_magic_link" }
func (m *Migration001MagicLink) DownRevision() string { return "000_baseline" }
func (m *Migration001MagicLink) Description() string  { return "Add magic link token columns to users" }

// Up runs the migration
func (m *Migration001MagicLink) Up(tx *gorm.DB) error {
	migrator := tx.Migrator()
	for _, field := range []string{"MagicLinkToken", "MagicLinkExpires"} {
		if migrator.HasColumn(&magicLinkUser{}, field) {
			continue
		}
		if err := migrator.AddColumn(&magicLinkUser{}, field); err != nil {
			return fmt.Errorf("failed to add users.%s: %w", field, err)
		}
	}
	if !migrator.HasIndex(&magicLinkUser{}, "ix_users_magic_link_token") {
		if err := migrator.CreateIndex(&magicLinkUser{}, "ix_users_magic_link_token"); err != nil {
			return fmt.Errorf("failed to create magic link index: %w", err)
		}
	}
	return nil
}

// Down reverses the migration
func (m *Migration001MagicLink) Down(tx *gorm.DB) error {
	migrator := tx.Migrator()
	if migrator.HasIndex(&magicLinkUser{}, "ix_users_magic_link_token") {
		if err := migrator.DropIndex(&magicLinkUser{}, "ix_users_magic_link_token"); err != nil {
			return fmt.Errorf("failed to drop magic link index: %w", err)
		}
	}
	for _, field := range []string{"MagicLinkExpires", "MagicLinkToken"} {
		if !migrator.HasColumn(&magicLinkUser{}, field) {
			continue
		}
		if err := migrator.DropColumn(&magicLinkUser{}, field); err != nil {
			return fmt.Errorf("failed to drop users.%s: %w", field, err)
		}
	}
	return nil
}
