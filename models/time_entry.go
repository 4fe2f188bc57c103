package models

import (
	"time"

	"gorm.io/gorm"
)

// TimeEntry is one work session. An entry with EndedAt == nil is the user's running timer;
// idx_time_entries_open_user (see Migrate) allows at most one of those per user.
type TimeEntry struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID   string     `gorm:"type:varchar(36);not null;index" json:"order_id"`
	PartID    *string    `gorm:"type:varchar(36);index" json:"part_id"`
	UserID    string     `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Operation string     `gorm:"not null" json:"operation"`
	StartedAt time.Time  `gorm:"not null" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the TimeEntry model
func (TimeEntry) TableName() string {
	return "time_entries"
}

func (e *TimeEntry) BeforeCreate(tx *gorm.DB) error {
	assignID(&e.ID)
	return nil
}

// IsOpen reports whether the timer is still running
func (e *TimeEntry) IsOpen() bool {
	return e.EndedAt == nil
}

// Duration is the closed length of the entry truncated to whole seconds; open entries count as zero
func (e *TimeEntry) Duration() time.Duration {
	if e.EndedAt == nil {
		return 0
	}
	return e.EndedAt.Sub(e.StartedAt).Truncate(time.Second)
}
