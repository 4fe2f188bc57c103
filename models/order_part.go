package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderPart is one produced line item within an order
type OrderPart struct {
	ID         string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID    string `gorm:"type:varchar(36);not null;index" json:"order_id"`
	PartNumber string `gorm:"not null" json:"part_number"`
	Quantity   int    `gorm:"not null;check:quantity > 0" json:"quantity"`
	Material   string `json:"material"`
	// nil means the part has not been queued in any department yet
	CurrentDepartmentID *string     `gorm:"type:varchar(36);index" json:"current_department_id"`
	CurrentDepartment   *Department `gorm:"foreignKey:CurrentDepartmentID" json:"current_department,omitempty"`
	CompletedAt         *time.Time  `json:"completed_at"`
	CompletedByID       *string     `gorm:"type:varchar(36)" json:"completed_by_id,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// TableName specifies the table name for the OrderPart model
func (OrderPart) TableName() string {
	return "order_parts"
}

func (p *OrderPart) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// InDepartment reports whether the part currently sits in departmentID's queue
func (p *OrderPart) InDepartment(departmentID string) bool {
	return p.CurrentDepartmentID != nil && *p.CurrentDepartmentID == departmentID
}
