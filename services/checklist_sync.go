package services

import (
	"context"
	"fmt"

	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/kendall-kelly/shopfloor-api/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChecklistPlan is the minimal patch that makes an order's checklist mirror its charges
type ChecklistPlan struct {
	Create     []models.OrderChecklist
	Activate   []string
	Deactivate []string
	Complete   []string
	Uncomplete []string
	Realign    []ChecklistRealignment
}

// ChecklistRealignment moves a row onto the part/department/add-on its charge now points at
type ChecklistRealignment struct {
	RowID        string
	PartID       *string
	DepartmentID *string
	AddonID      *string
}

// SyncResult counts the writes a sync issued
type SyncResult struct {
	Created     int `json:"created"`
	Activated   int `json:"activated"`
	Deactivated int `json:"deactivated"`
	Recompleted int `json:"recompleted"`
	Realigned   int `json:"realigned"`
}

// Writes is the total number of rows touched
func (r SyncResult) Writes() int {
	return r.Created + r.Activated + r.Deactivated + r.Recompleted + r.Realigned
}

// Empty reports whether the checklist is already consistent with the charges
func (p ChecklistPlan) Empty() bool {
	return len(p.Create) == 0 && len(p.Activate) == 0 && len(p.Deactivate) == 0 &&
		len(p.Complete) == 0 && len(p.Uncomplete) == 0 && len(p.Realign) == 0
}

// PlanChecklistSync diffs the charges of an order against its charge-linked checklist rows.
// Only charges with a department are tracked. When several rows point at the same charge the
// first one is kept and the rest are retired.
func PlanChecklistSync(orderID string, charges []models.OrderCharge, rows []models.OrderChecklist) ChecklistPlan {
	var plan ChecklistPlan

	tracked := make(map[string]*models.OrderCharge, len(charges))
	for i := range charges {
		if charges[i].HasDepartment() {
			tracked[charges[i].ID] = &charges[i]
		}
	}

	claimed := make(map[string]bool, len(rows))
	for i := range rows {
		row := &rows[i]
		if row.ChargeID == nil {
			continue
		}

		charge, exists := tracked[*row.ChargeID]
		if !exists || claimed[*row.ChargeID] {
			if row.IsActive {
				plan.Deactivate = append(plan.Deactivate, row.ID)
			}
			continue
		}
		claimed[*row.ChargeID] = true

		if !row.IsActive {
			plan.Activate = append(plan.Activate, row.ID)
		}

		if done := charge.IsCompleted(); row.Completed != done {
			if done {
				plan.Complete = append(plan.Complete, row.ID)
			} else {
				plan.Uncomplete = append(plan.Uncomplete, row.ID)
			}
		}

		if !sameRef(row.PartID, charge.PartID) || !sameRef(row.DepartmentID, charge.DepartmentID) || !sameRef(row.AddonID, charge.AddonID) {
			plan.Realign = append(plan.Realign, ChecklistRealignment{
				RowID:        row.ID,
				PartID:       charge.PartID,
				DepartmentID: charge.DepartmentID,
				AddonID:      charge.AddonID,
			})
		}
	}

	for i := range charges {
		charge := &charges[i]
		if !charge.HasDepartment() || claimed[charge.ID] {
			continue
		}
		claimed[charge.ID] = true

		chargeID := charge.ID
		plan.Create = append(plan.Create, models.OrderChecklist{
			OrderID:      orderID,
			PartID:       charge.PartID,
			ChargeID:     &chargeID,
			DepartmentID: charge.DepartmentID,
			AddonID:      charge.AddonID,
			Label:        charge.Description,
			Completed:    charge.IsCompleted(),
			IsActive:     true,
		})
	}

	return plan
}

// SyncChecklistForOrder makes the order's checklist an accurate mirror of its current charges.
// All writes commit together; the order row is locked so syncs of the same order serialize.
func SyncChecklistForOrder(ctx context.Context, db *gorm.DB, orderID string) (SyncResult, error) {
	var result SyncResult

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&order, "id = ?", orderID).Error; err != nil {
			return notFoundOr(err, "order", orderID)
		}

		var charges []models.OrderCharge
		if err := tx.Where("order_id = ?", orderID).
			Order("sort_order ASC, created_at ASC, id ASC").
			Find(&charges).Error; err != nil {
			return fmt.Errorf("failed to load charges: %w", err)
		}

		var rows []models.OrderChecklist
		if err := tx.Where("order_id = ? AND charge_id IS NOT NULL", orderID).
			Order("is_active DESC, created_at ASC, id ASC").
			Find(&rows).Error; err != nil {
			return fmt.Errorf("failed to load checklist: %w", err)
		}

		plan := PlanChecklistSync(orderID, charges, rows)
		if plan.Empty() {
			return nil
		}

		applied, err := applyChecklistPlan(tx, plan)
		if err != nil {
			return err
		}
		result = applied
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}

	if result.Writes() > 0 {
		utils.Log.WithFields(logrus.Fields{
			"order_id":    orderID,
			"created":     result.Created,
			"activated":   result.Activated,
			"deactivated": result.Deactivated,
			"recompleted": result.Recompleted,
			"realigned":   result.Realigned,
		}).Info("Checklist synchronized")
	}
	return result, nil
}

func applyChecklistPlan(tx *gorm.DB, plan ChecklistPlan) (SyncResult, error) {
	result := SyncResult{
		Created:     len(plan.Create),
		Activated:   len(plan.Activate),
		Deactivated: len(plan.Deactivate),
		Recompleted: len(plan.Complete) + len(plan.Uncomplete),
		Realigned:   len(plan.Realign),
	}

	if len(plan.Create) > 0 {
		if err := tx.Create(&plan.Create).Error; err != nil {
			return result, fmt.Errorf("failed to create checklist rows: %w", err)
		}
	}

	updates := []struct {
		ids    []string
		column string
		value  bool
	}{
		{plan.Activate, "is_active", true},
		{plan.Deactivate, "is_active", false},
		{plan.Complete, "completed", true},
		{plan.Uncomplete, "completed", false},
	}
	for _, u := range updates {
		if len(u.ids) == 0 {
			continue
		}
		if err := tx.Model(&models.OrderChecklist{}).
			Where("id IN ?", u.ids).
			Update(u.column, u.value).Error; err != nil {
			return result, fmt.Errorf("failed to set checklist %s: %w", u.column, err)
		}
	}

	for _, r := range plan.Realign {
		if err := tx.Model(&models.OrderChecklist{}).
			Where("id = ?", r.RowID).
			Updates(map[string]interface{}{
				"part_id":       r.PartID,
				"department_id": r.DepartmentID,
				"addon_id":      r.AddonID,
			}).Error; err != nil {
			return result, fmt.Errorf("failed to realign checklist row %s: %w", r.RowID, err)
		}
	}

	return result, nil
}

// SyncOpenOrders re-runs the synchronizer for every order that is not closed
func SyncOpenOrders(ctx context.Context, db *gorm.DB) (map[string]SyncResult, error) {
	var orderIDs []string
	if err := db.WithContext(ctx).Model(&models.Order{}).
		Where("status <> ?", models.OrderStatusClosed).
		Order("created_at ASC").
		Pluck("id", &orderIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list open orders: %w", err)
	}

	results := make(map[string]SyncResult, len(orderIDs))
	for _, id := range orderIDs {
		res, err := SyncChecklistForOrder(ctx, db, id)
		if err != nil {
			return results, fmt.Errorf("failed to sync order %s: %w", id, err)
		}
		results[id] = res
	}
	return results, nil
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
