package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/kendall-kelly/shopfloor-api/models"
	"gorm.io/gorm"
)

// AddPartInput describes a part added to an existing order.
// CopyChargesFromPartID clones a sibling's charges onto the new part (completion is not copied).
type AddPartInput struct {
	OrderID               string
	PartNumber            string
	Quantity              int
	Material              string
	CopyChargesFromPartID *string
}

// PartService adds and removes order parts
type PartService struct {
	db          *gorm.DB
	attachments *AttachmentService
}

// NewPartService creates a part service; storage may be nil when S3 is not configured
func NewPartService(db *gorm.DB, storage S3Interface) *PartService {
	return &PartService{db: db, attachments: NewAttachmentService(db, storage)}
}

// ListParts returns an order's parts with their current department
func (s *PartService) ListParts(ctx context.Context, orderID string) ([]models.OrderPart, error) {
	db := s.db.WithContext(ctx)
	if err := ensureOrderExists(db, orderID); err != nil {
		return nil, err
	}

	var parts []models.OrderPart
	if err := db.Preload("CurrentDepartment").
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("failed to list parts: %w", err)
	}
	return parts, nil
}

// AddPart creates a part on the order, optionally cloning a sibling's charges
func (s *PartService) AddPart(ctx context.Context, in AddPartInput) (*models.OrderPart, error) {
	fields := FieldErrors{}
	fields.Required("order_id", in.OrderID)
	fields.Required("part_number", in.PartNumber)
	if in.Quantity <= 0 {
		fields.Add("quantity", "must be greater than 0")
	}
	if in.CopyChargesFromPartID != nil {
		fields.Required("copy_charges_from_part_id", *in.CopyChargesFromPartID)
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	part := models.OrderPart{
		OrderID:    in.OrderID,
		PartNumber: strings.TrimSpace(in.PartNumber),
		Quantity:   in.Quantity,
		Material:   strings.TrimSpace(in.Material),
	}
	cloned := 0

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOpenOrder(tx, in.OrderID); err != nil {
			return err
		}

		var source []models.OrderCharge
		if in.CopyChargesFromPartID != nil {
			if _, err := findPartOnOrder(tx, in.OrderID, *in.CopyChargesFromPartID); err != nil {
				return err
			}
			if err := tx.Where("order_id = ? AND part_id = ?", in.OrderID, *in.CopyChargesFromPartID).
				Order("sort_order ASC, created_at ASC, id ASC").
				Find(&source).Error; err != nil {
				return fmt.Errorf("failed to load charges to copy: %w", err)
			}
		}

		if err := tx.Create(&part).Error; err != nil {
			return fmt.Errorf("failed to create part: %w", err)
		}

		if len(source) == 0 {
			return nil
		}
		copies := make([]models.OrderCharge, len(source))
		for i, c := range source {
			partID := part.ID
			copies[i] = models.OrderCharge{
				OrderID:      c.OrderID,
				PartID:       &partID,
				Kind:         c.Kind,
				DepartmentID: c.DepartmentID,
				AddonID:      c.AddonID,
				Description:  c.Description,
				Quantity:     c.Quantity,
				UnitPrice:    c.UnitPrice,
				SortOrder:    c.SortOrder,
			}
		}
		if err := tx.Create(&copies).Error; err != nil {
			return fmt.Errorf("failed to copy charges: %w", err)
		}
		cloned = len(copies)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cloned > 0 {
		if _, err := SyncChecklistForOrder(ctx, s.db, in.OrderID); err != nil {
			return nil, err
		}
	}
	return &part, nil
}

// DeletePart removes a part that is not the order's last one. Its charges are deleted, its
// checklist rows retired and its attachments removed; the stored objects go after commit.
func (s *PartService) DeletePart(ctx context.Context, orderID, partID string) error {
	var keys []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOpenOrder(tx, orderID); err != nil {
			return err
		}
		part, err := findPartOnOrder(tx, orderID, partID)
		if err != nil {
			return err
		}

		var siblings int64
		if err := tx.Model(&models.OrderPart{}).
			Where("order_id = ? AND id <> ?", orderID, part.ID).
			Count(&siblings).Error; err != nil {
			return fmt.Errorf("failed to count parts: %w", err)
		}
		if siblings == 0 {
			return Conflict("part %s is the only part on order %s", part.PartNumber, orderID)
		}

		if err := tx.Model(&models.OrderChecklist{}).
			Where("order_id = ? AND part_id = ? AND is_active = ?", orderID, part.ID, true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to retire checklist rows: %w", err)
		}
		if err := tx.Where("order_id = ? AND part_id = ?", orderID, part.ID).
			Delete(&models.OrderCharge{}).Error; err != nil {
			return fmt.Errorf("failed to delete charges: %w", err)
		}

		var attachments []models.PartAttachment
		if err := tx.Where("part_id = ?", part.ID).Find(&attachments).Error; err != nil {
			return fmt.Errorf("failed to load attachments: %w", err)
		}
		for _, a := range attachments {
			keys = append(keys, a.StorageKey)
		}
		if len(attachments) > 0 {
			if err := tx.Delete(&attachments).Error; err != nil {
				return fmt.Errorf("failed to delete attachments: %w", err)
			}
		}

		if err := tx.Delete(part).Error; err != nil {
			return fmt.Errorf("failed to delete part: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.attachments.DeleteObjects(ctx, keys)
	_, err = SyncChecklistForOrder(ctx, s.db, orderID)
	return err
}
