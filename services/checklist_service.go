package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/kendall-kelly/shopfloor-api/models"
	"gorm.io/gorm"
)

// ManualItemInput is a checklist-only item that is not backed by a charge
type ManualItemInput struct {
	PartID       *string
	DepartmentID *string
	Label        string
}

// ChecklistService reads the checklist and routes completion toggles to the right source of truth
type ChecklistService struct {
	db      *gorm.DB
	charges *ChargeService
}

// NewChecklistService creates a checklist service
func NewChecklistService(db *gorm.DB) *ChecklistService {
	return &ChecklistService{db: db, charges: NewChargeService(db)}
}

// ListChecklist returns the order's checklist; retired rows are included only on request
func (s *ChecklistService) ListChecklist(ctx context.Context, orderID string, includeInactive bool) ([]models.OrderChecklist, error) {
	db := s.db.WithContext(ctx)
	if err := ensureOrderExists(db, orderID); err != nil {
		return nil, err
	}

	query := db.Preload("Department").Where("order_id = ?", orderID)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var rows []models.OrderChecklist
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list checklist: %w", err)
	}
	return rows, nil
}

// AddManualItem adds a checklist row with no charge behind it
func (s *ChecklistService) AddManualItem(ctx context.Context, orderID string, in ManualItemInput) (*models.OrderChecklist, error) {
	fields := FieldErrors{}
	fields.Required("label", in.Label)
	if err := fields.Err(); err != nil {
		return nil, err
	}

	row := models.OrderChecklist{
		OrderID:      orderID,
		PartID:       blankToNil(in.PartID),
		DepartmentID: blankToNil(in.DepartmentID),
		Label:        strings.TrimSpace(in.Label),
		IsActive:     true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOpenOrder(tx, orderID); err != nil {
			return err
		}
		if row.PartID != nil {
			if _, err := findPartOnOrder(tx, orderID, *row.PartID); err != nil {
				return err
			}
		}
		if row.DepartmentID != nil {
			if _, err := findDepartment(tx, *row.DepartmentID); err != nil {
				return err
			}
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create checklist item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SetItemCompleted toggles a checklist row. Charge-linked rows are completed through their
// charge so the row keeps mirroring it; manual rows are updated in place.
func (s *ChecklistService) SetItemCompleted(ctx context.Context, orderID, itemID string, completed bool) (*models.OrderChecklist, error) {
	db := s.db.WithContext(ctx)

	var row models.OrderChecklist
	if err := db.Where("id = ? AND order_id = ?", itemID, orderID).First(&row).Error; err != nil {
		return nil, notFoundOr(err, "checklist item", itemID)
	}
	if !row.IsActive {
		return nil, Conflict("checklist item %s is no longer active", itemID)
	}

	if !row.IsManual() {
		if _, err := s.charges.SetChargeCompleted(ctx, orderID, *row.ChargeID, completed); err != nil {
			return nil, err
		}
		if err := db.First(&row, "id = ?", row.ID).Error; err != nil {
			return nil, fmt.Errorf("failed to reload checklist item: %w", err)
		}
		return &row, nil
	}

	if err := ensureOpenOrder(db, orderID); err != nil {
		return nil, err
	}
	if row.Completed != completed {
		if err := db.Model(&row).Update("completed", completed).Error; err != nil {
			return nil, fmt.Errorf("failed to update checklist item: %w", err)
		}
		row.Completed = completed
	}
	return &row, nil
}
