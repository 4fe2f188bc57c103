package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Department is a named production stage and the billing scope for labor and add-on charges
type Department struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	SortOrder int       `gorm:"not null;default:0" json:"sort_order"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Department model
func (Department) TableName() string {
	return "departments"
}

func (d *Department) BeforeCreate(tx *gorm.DB) error {
	assignID(&d.ID)
	return nil
}

// Addon is a catalog item that can be sold with a part, optionally tracked on the checklist
type Addon struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name            string          `gorm:"uniqueIndex;not null" json:"name"`
	DepartmentID    *string         `gorm:"type:varchar(36);index" json:"department_id"`
	Department      *Department     `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	IsChecklistItem bool            `gorm:"not null" json:"is_checklist_item"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0" json:"unit_price"`
	IsActive        bool            `gorm:"not null" json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Addon model
func (Addon) TableName() string {
	return "addons"
}

func (a *Addon) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}
