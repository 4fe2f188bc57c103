package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ChargeKind classifies a billable line item
type ChargeKind string

const (
	ChargeKindLabor    ChargeKind = "LABOR"
	ChargeKindAddon    ChargeKind = "ADDON"
	ChargeKindMaterial ChargeKind = "MATERIAL"
	ChargeKindFee      ChargeKind = "FEE"
	ChargeKindShipping ChargeKind = "SHIPPING"
	ChargeKindDiscount ChargeKind = "DISCOUNT"
)

// Valid reports whether k is one of the known charge kinds
func (k ChargeKind) Valid() bool {
	switch k {
	case ChargeKindLabor, ChargeKindAddon, ChargeKindMaterial, ChargeKindFee, ChargeKindShipping, ChargeKindDiscount:
		return true
	}
	return false
}

// RequiresDepartment reports whether charges of this kind must be scoped to a department
func (k ChargeKind) RequiresDepartment() bool {
	return k == ChargeKindLabor || k == ChargeKindAddon
}

// OrderCharge is the authoritative billable line item attached to a part.
// PartID is nil only for legacy order-level charges.
type OrderCharge struct {
	ID           string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID      string          `gorm:"type:varchar(36);not null;index" json:"order_id"`
	PartID       *string         `gorm:"type:varchar(36);index" json:"part_id"`
	Kind         ChargeKind      `gorm:"type:varchar(16);not null" json:"kind"`
	DepartmentID *string         `gorm:"type:varchar(36);index" json:"department_id"`
	AddonID      *string         `gorm:"type:varchar(36)" json:"addon_id"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"unit_price"`
	SortOrder    int             `gorm:"not null;default:0" json:"sort_order"`
	CompletedAt  *time.Time      `json:"completed_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the OrderCharge model
func (OrderCharge) TableName() string {
	return "order_charges"
}

func (c *OrderCharge) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// TotalPrice is quantity times unit price, computed without floating point
func (c *OrderCharge) TotalPrice() decimal.Decimal {
	return c.Quantity.Mul(c.UnitPrice)
}

// IsCompleted reports whether the department work behind the charge is done
func (c *OrderCharge) IsCompleted() bool {
	return c.CompletedAt != nil
}

// HasDepartment reports whether the charge is tracked on the checklist
func (c *OrderCharge) HasDepartment() bool {
	return c.DepartmentID != nil && *c.DepartmentID != ""
}

// SumCharges totals the given charges. Discounts are stored with negative unit prices.
func SumCharges(charges []OrderCharge) decimal.Decimal {
	total := decimal.Zero
	for i := range charges {
		total = total.Add(charges[i].TotalPrice())
	}
	return total
}
