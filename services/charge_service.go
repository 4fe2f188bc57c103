package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ChargeInput holds the fields of a new charge
type ChargeInput struct {
	PartID       *string
	Kind         models.ChargeKind
	DepartmentID *string
	AddonID      *string
	Description  string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	SortOrder    int
}

// ChargeUpdate is a partial update; nil fields are left unchanged.
// ClearPart / ClearDepartment / ClearAddon set the matching reference to null.
type ChargeUpdate struct {
	PartID          *string
	ClearPart       bool
	Kind            *models.ChargeKind
	DepartmentID    *string
	ClearDepartment bool
	AddonID         *string
	ClearAddon      bool
	Description     *string
	Quantity        *decimal.Decimal
	UnitPrice       *decimal.Decimal
	SortOrder       *int
}

// ChargeService mutates charges. Every successful mutation is followed by a checklist sync.
type ChargeService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewChargeService creates a charge service
func NewChargeService(db *gorm.DB) *ChargeService {
	return &ChargeService{db: db, now: time.Now}
}

// WithClock overrides the time source (primarily for testing)
func (s *ChargeService) WithClock(now func() time.Time) *ChargeService {
	s.now = now
	return s
}

// ListCharges returns the order's charges in display order
func (s *ChargeService) ListCharges(ctx context.Context, orderID string) ([]models.OrderCharge, error) {
	db := s.db.WithContext(ctx)
	if err := ensureOrderExists(db, orderID); err != nil {
		return nil, err
	}
	return loadCharges(db, orderID)
}

// CreateCharge adds a charge to the order
func (s *ChargeService) CreateCharge(ctx context.Context, orderID string, in ChargeInput) (*models.OrderCharge, error) {
	charge := models.OrderCharge{
		OrderID:      orderID,
		PartID:       blankToNil(in.PartID),
		Kind:         in.Kind,
		DepartmentID: blankToNil(in.DepartmentID),
		AddonID:      blankToNil(in.AddonID),
		Description:  strings.TrimSpace(in.Description),
		Quantity:     in.Quantity,
		UnitPrice:    in.UnitPrice,
		SortOrder:    in.SortOrder,
	}
	if err := validateCharge(&charge); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOpenOrder(tx, orderID); err != nil {
			return err
		}
		if err := checkChargeRefs(tx, &charge); err != nil {
			return err
		}
		if err := tx.Create(&charge).Error; err != nil {
			return fmt.Errorf("failed to create charge: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := SyncChecklistForOrder(ctx, s.db, orderID); err != nil {
		return nil, err
	}
	return &charge, nil
}

// UpdateCharge applies a partial update to a charge
func (s *ChargeService) UpdateCharge(ctx context.Context, orderID, chargeID string, in ChargeUpdate) (*models.OrderCharge, error) {
	var charge *models.OrderCharge

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOpenOrder(tx, orderID); err != nil {
			return err
		}
		found, err := findChargeOnOrder(tx, orderID, chargeID)
		if err != nil {
			return err
		}
		charge = found

		applyChargeUpdate(charge, in)
		if err := validateCharge(charge); err != nil {
			return err
		}
		if err := checkChargeRefs(tx, charge); err != nil {
			return err
		}

		if err := tx.Model(charge).Select(
			"part_id", "kind", "department_id", "addon_id", "description",
			"quantity", "unit_price", "sort_order",
		).Updates(charge).Error; err != nil {
			return fmt.Errorf("failed to update charge: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := SyncChecklistForOrder(ctx, s.db, orderID); err != nil {
		return nil, err
	}
	return charge, nil
}

// DeleteCharge removes a charge; its checklist row is retired by the sync
func (s *ChargeService) DeleteCharge(ctx context.Context, orderID, chargeID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOpenOrder(tx, orderID); err != nil {
			return err
		}
		charge, err := findChargeOnOrder(tx, orderID, chargeID)
		if err != nil {
			return err
		}
		if err := tx.Delete(charge).Error; err != nil {
			return fmt.Errorf("failed to delete charge: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	_, err = SyncChecklistForOrder(ctx, s.db, orderID)
	return err
}

// SetChargeCompleted stamps or clears the charge's completion time
func (s *ChargeService) SetChargeCompleted(ctx context.Context, orderID, chargeID string, completed bool) (*models.OrderCharge, error) {
	var charge *models.OrderCharge

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOpenOrder(tx, orderID); err != nil {
			return err
		}
		found, err := findChargeOnOrder(tx, orderID, chargeID)
		if err != nil {
			return err
		}
		charge = found

		if charge.IsCompleted() == completed {
			return nil
		}
		var completedAt *time.Time
		if completed {
			now := s.now()
			completedAt = &now
		}
		if err := tx.Model(charge).Update("completed_at", completedAt).Error; err != nil {
			return fmt.Errorf("failed to update charge completion: %w", err)
		}
		charge.CompletedAt = completedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := SyncChecklistForOrder(ctx, s.db, orderID); err != nil {
		return nil, err
	}
	return charge, nil
}

func applyChargeUpdate(charge *models.OrderCharge, in ChargeUpdate) {
	switch {
	case in.ClearPart:
		charge.PartID = nil
	case in.PartID != nil:
		charge.PartID = blankToNil(in.PartID)
	}
	switch {
	case in.ClearDepartment:
		charge.DepartmentID = nil
	case in.DepartmentID != nil:
		charge.DepartmentID = blankToNil(in.DepartmentID)
	}
	switch {
	case in.ClearAddon:
		charge.AddonID = nil
	case in.AddonID != nil:
		charge.AddonID = blankToNil(in.AddonID)
	}
	if in.Kind != nil {
		charge.Kind = *in.Kind
	}
	if in.Description != nil {
		charge.Description = strings.TrimSpace(*in.Description)
	}
	if in.Quantity != nil {
		charge.Quantity = *in.Quantity
	}
	if in.UnitPrice != nil {
		charge.UnitPrice = *in.UnitPrice
	}
	if in.SortOrder != nil {
		charge.SortOrder = *in.SortOrder
	}
}

func validateCharge(charge *models.OrderCharge) error {
	fields := FieldErrors{}
	fields.Required("order_id", charge.OrderID)
	if !charge.Kind.Valid() {
		fields.Add("kind", "must be one of LABOR, ADDON, MATERIAL, FEE, SHIPPING, DISCOUNT")
	} else if charge.Kind.RequiresDepartment() && !charge.HasDepartment() {
		fields.Add("department_id", fmt.Sprintf("is required for %s charges", charge.Kind))
	}
	if charge.Kind == models.ChargeKindAddon && charge.AddonID == nil {
		fields.Add("addon_id", "is required for ADDON charges")
	}
	if charge.Kind != models.ChargeKindDiscount && !charge.Quantity.IsPositive() {
		fields.Add("quantity", "must be greater than 0")
	}
	if charge.Kind != models.ChargeKindDiscount && charge.UnitPrice.IsNegative() {
		fields.Add("unit_price", "must not be negative")
	}
	return fields.Err()
}

// checkChargeRefs verifies the part, department and add-on a charge points at
func checkChargeRefs(tx *gorm.DB, charge *models.OrderCharge) error {
	if charge.PartID != nil {
		if _, err := findPartOnOrder(tx, charge.OrderID, *charge.PartID); err != nil {
			return err
		}
	}
	if charge.DepartmentID != nil {
		if _, err := findDepartment(tx, *charge.DepartmentID); err != nil {
			return err
		}
	}
	if charge.AddonID != nil {
		var addon models.Addon
		if err := tx.Select("id").First(&addon, "id = ?", *charge.AddonID).Error; err != nil {
			return notFoundOr(err, "addon", *charge.AddonID)
		}
	}
	return nil
}

func findChargeOnOrder(db *gorm.DB, orderID, chargeID string) (*models.OrderCharge, error) {
	var charge models.OrderCharge
	if err := db.Where("id = ? AND order_id = ?", chargeID, orderID).First(&charge).Error; err != nil {
		return nil, notFoundOr(err, "charge", chargeID+" on order "+orderID)
	}
	return &charge, nil
}

func loadCharges(db *gorm.DB, orderID string) ([]models.OrderCharge, error) {
	var charges []models.OrderCharge
	if err := db.Where("order_id = ?", orderID).
		Order("sort_order ASC, created_at ASC, id ASC").
		Find(&charges).Error; err != nil {
		return nil, fmt.Errorf("failed to load charges: %w", err)
	}
	return charges, nil
}

// ensureOpenOrder rejects changes to orders that have been closed
func ensureOpenOrder(db *gorm.DB, orderID string) error {
	var order models.Order
	if err := db.Select("id", "status").First(&order, "id = ?", orderID).Error; err != nil {
		return notFoundOr(err, "order", orderID)
	}
	if order.IsClosed() {
		return Conflict("order %s is closed", orderID)
	}
	return nil
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
