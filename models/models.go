package models

import (
	"fmt"

	"gorm.io/gorm"
)

// OpenTimerIndex is the partial unique index that enforces a single running timer per user
const OpenTimerIndex = "idx_time_entries_open_user"

// All lists every model in migration order
func All() []interface{} {
	return []interface{}{
		&User{},
		&Department{},
		&Addon{},
		&Order{},
		&OrderPart{},
		&OrderCharge{},
		&OrderChecklist{},
		&PartEvent{},
		&TimeEntry{},
		&PartAttachment{},
	}
}

// Migrate creates or updates every table plus the indexes gorm tags cannot express.
// Partial indexes use the same syntax on PostgreSQL and SQLite.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}

	stmt := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON time_entries (user_id) WHERE ended_at IS NULL", OpenTimerIndex)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to create %s: %w", OpenTimerIndex, err)
	}
	return nil
}
