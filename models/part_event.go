package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PartEventType names what happened to a part
type PartEventType string

const (
	EventTimerStarted         PartEventType = "TIMER_STARTED"
	EventTimerPaused          PartEventType = "TIMER_PAUSED"
	EventTimerStopped         PartEventType = "TIMER_STOPPED"
	EventTimerResumed         PartEventType = "TIMER_RESUMED"
	EventTimerFinished        PartEventType = "TIMER_FINISHED"
	EventDepartmentTransition PartEventType = "DEPARTMENT_TRANSITION"
	EventDepartmentAssigned   PartEventType = "DEPARTMENT_ASSIGNED"
	EventPartCompleted        PartEventType = "PART_COMPLETED"
	EventNote                 PartEventType = "NOTE"
)

// PartEvent is an immutable audit entry for a part
type PartEvent struct {
	ID        string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID   string            `gorm:"type:varchar(36);not null;index" json:"order_id"`
	PartID    string            `gorm:"type:varchar(36);not null;index" json:"part_id"`
	UserID    *string           `gorm:"type:varchar(36)" json:"user_id"`
	Type      PartEventType     `gorm:"type:varchar(32);not null" json:"type"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Meta      datatypes.JSONMap `json:"meta,omitempty"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for the PartEvent model
func (PartEvent) TableName() string {
	return "part_events"
}

func (e *PartEvent) BeforeCreate(tx *gorm.DB) error {
	assignID(&e.ID)
	return nil
}

// BeforeUpdate rejects any attempt to rewrite history
func (e *PartEvent) BeforeUpdate(tx *gorm.DB) error {
	return ErrPartEventImmutable
}

// BeforeDelete rejects any attempt to remove history
func (e *PartEvent) BeforeDelete(tx *gorm.DB) error {
	return ErrPartEventImmutable
}
