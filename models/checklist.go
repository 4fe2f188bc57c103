package models

import (
	"time"

	"gorm.io/gorm"
)

// ChecklistState distinguishes a retired row from one that never existed
type ChecklistState string

const (
	ChecklistActive   ChecklistState = "ACTIVE"
	ChecklistInactive ChecklistState = "INACTIVE"
)

// OrderChecklist is a derived per-part, per-department tracking row.
// Rows tied to a charge mirror the charge; ChargeID is nil for manual checklist-only items.
// Rows are retired with IsActive=false and never deleted.
type OrderChecklist struct {
	ID           string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID      string      `gorm:"type:varchar(36);not null;index" json:"order_id"`
	PartID       *string     `gorm:"type:varchar(36);index" json:"part_id"`
	DepartmentID *string     `gorm:"type:varchar(36);index" json:"department_id"`
	Department   *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	AddonID      *string     `gorm:"type:varchar(36)" json:"addon_id"`
	ChargeID     *string     `gorm:"type:varchar(36);index" json:"charge_id"`
	Label        string      `json:"label"`
	Completed    bool        `gorm:"not null" json:"completed"`
	IsActive     bool        `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName specifies the table name for the OrderChecklist model
func (OrderChecklist) TableName() string {
	return "order_checklists"
}

func (c *OrderChecklist) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// State returns the tagged active/inactive state of the row
func (c *OrderChecklist) State() ChecklistState {
	if c.IsActive {
		return ChecklistActive
	}
	return ChecklistInactive
}

// IsManual reports whether the row was added by hand rather than derived from a charge
func (c *OrderChecklist) IsManual() bool {
	return c.ChargeID == nil
}
