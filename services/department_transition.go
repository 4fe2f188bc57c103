package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/shopfloor-api/models"
	"gorm.io/gorm"
)

// TransitionInput moves a batch of parts out of one department and into another
type TransitionInput struct {
	OrderID          string
	FromDepartmentID string
	ToDepartmentID   string
	PartIDs          []string
	EmployeeName     string
	TogglerID        *string
}

// AssignInput places a single part into a department queue regardless of where it is now
type AssignInput struct {
	OrderID      string
	PartID       string
	DepartmentID string
	EmployeeName string
	TogglerID    *string
}

// TransitionService tracks where parts physically are. It never touches charges or checklist rows.
type TransitionService struct {
	db     *gorm.DB
	events *EventLog
	now    func() time.Time
}

// NewTransitionService creates a transition service publishing through the global event publisher
func NewTransitionService(db *gorm.DB) *TransitionService {
	return &TransitionService{db: db, events: NewEventLog(db), now: time.Now}
}

// WithClock overrides the time source (primarily for testing)
func (s *TransitionService) WithClock(now func() time.Time) *TransitionService {
	s.now = now
	s.events.WithClock(now)
	return s
}

func validateTransition(in TransitionInput) error {
	fields := FieldErrors{}
	fields.Required("order_id", in.OrderID)
	fields.Required("from_department_id", in.FromDepartmentID)
	fields.Required("to_department_id", in.ToDepartmentID)
	if len(in.PartIDs) == 0 {
		fields.Add("part_ids", "must contain at least one part")
	}
	for _, id := range in.PartIDs {
		if strings.TrimSpace(id) == "" {
			fields.Add("part_ids", "must not contain blank ids")
		}
	}
	if in.FromDepartmentID != "" && in.FromDepartmentID == in.ToDepartmentID {
		fields.Add("to_department_id", "must differ from from_department_id")
	}
	if err := fields.Err(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(in.PartIDs))
	for _, id := range in.PartIDs {
		if seen[id] {
			return Conflict("part %s appears more than once in the request", id)
		}
		seen[id] = true
	}
	return nil
}

// TransitionPartsDepartment moves every listed part from FromDepartmentID to ToDepartmentID.
// Either all parts move and one event per part is logged, or nothing changes.
func (s *TransitionService) TransitionPartsDepartment(ctx context.Context, in TransitionInput) ([]models.OrderPart, error) {
	if err := validateTransition(in); err != nil {
		return nil, err
	}

	now := s.now()
	var parts []models.OrderPart
	var events []models.PartEvent

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOrderExists(tx, in.OrderID); err != nil {
			return err
		}
		from, err := findDepartment(tx, in.FromDepartmentID)
		if err != nil {
			return err
		}
		to, err := findDepartment(tx, in.ToDepartmentID)
		if err != nil {
			return err
		}

		if err := tx.Where("order_id = ? AND id IN ?", in.OrderID, in.PartIDs).Find(&parts).Error; err != nil {
			return fmt.Errorf("failed to load parts: %w", err)
		}
		byID := make(map[string]*models.OrderPart, len(parts))
		for i := range parts {
			byID[parts[i].ID] = &parts[i]
		}

		// report problems in request order so the operator sees the first offending part
		ordered := make([]models.OrderPart, 0, len(in.PartIDs))
		for _, id := range in.PartIDs {
			part, ok := byID[id]
			if !ok {
				return NotFound("part %s on order %s not found", id, in.OrderID)
			}
			if !part.InDepartment(from.ID) {
				return Conflict("Part %s is not in %s", part.PartNumber, from.Name)
			}
			ordered = append(ordered, *part)
		}
		parts = ordered

		for i := range parts {
			part := &parts[i]
			res := tx.Model(&models.OrderPart{}).
				Where("id = ? AND current_department_id = ?", part.ID, from.ID).
				Updates(map[string]interface{}{"current_department_id": to.ID, "updated_at": now})
			if res.Error != nil {
				return fmt.Errorf("failed to move part %s: %w", part.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return Conflict("Part %s is no longer in %s", part.PartNumber, from.Name)
			}
			part.CurrentDepartmentID = &to.ID
			part.CurrentDepartment = to

			event := newPartEvent(LogEventInput{
				OrderID: in.OrderID,
				PartID:  part.ID,
				UserID:  in.TogglerID,
				Type:    models.EventDepartmentTransition,
				Message: fmt.Sprintf("%s moved part %s from %s to %s", actorName(in.EmployeeName), part.PartNumber, from.Name, to.Name),
				Meta: map[string]interface{}{
					"from_department_id": from.ID,
					"to_department_id":   to.ID,
				},
			}, now)
			if err := tx.Create(&event).Error; err != nil {
				return fmt.Errorf("failed to log transition for part %s: %w", part.ID, err)
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.publish(ctx, events...)
	return parts, nil
}

// AssignPartDepartment sets a part's current department directly, without a source check
func (s *TransitionService) AssignPartDepartment(ctx context.Context, in AssignInput) (*models.OrderPart, error) {
	fields := FieldErrors{}
	fields.Required("order_id", in.OrderID)
	fields.Required("part_id", in.PartID)
	fields.Required("department_id", in.DepartmentID)
	if err := fields.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	var part *models.OrderPart
	var event models.PartEvent

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOrderExists(tx, in.OrderID); err != nil {
			return err
		}
		dept, err := findDepartment(tx, in.DepartmentID)
		if err != nil {
			return err
		}
		found, err := findPartOnOrder(tx, in.OrderID, in.PartID)
		if err != nil {
			return err
		}
		part = found

		fromName := "no department"
		if part.CurrentDepartmentID != nil {
			if prev, err := findDepartment(tx, *part.CurrentDepartmentID); err == nil {
				fromName = prev.Name
			}
		}

		if err := tx.Model(part).Updates(map[string]interface{}{
			"current_department_id": dept.ID,
			"updated_at":            now,
		}).Error; err != nil {
			return fmt.Errorf("failed to assign part %s: %w", part.ID, err)
		}
		part.CurrentDepartmentID = &dept.ID
		part.CurrentDepartment = dept

		event = newPartEvent(LogEventInput{
			OrderID: in.OrderID,
			PartID:  part.ID,
			UserID:  in.TogglerID,
			Type:    models.EventDepartmentAssigned,
			Message: fmt.Sprintf("%s assigned part %s to %s (was %s)", actorName(in.EmployeeName), part.PartNumber, dept.Name, fromName),
			Meta:    map[string]interface{}{"department_id": dept.ID},
		}, now)
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("failed to log assignment for part %s: %w", part.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.publish(ctx, event)
	return part, nil
}

func actorName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Someone"
	}
	return name
}

func ensureOrderExists(db *gorm.DB, orderID string) error {
	var order models.Order
	if err := db.Select("id").First(&order, "id = ?", orderID).Error; err != nil {
		return notFoundOr(err, "order", orderID)
	}
	return nil
}

func findDepartment(db *gorm.DB, id string) (*models.Department, error) {
	var dept models.Department
	if err := db.First(&dept, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "department", id)
	}
	return &dept, nil
}
