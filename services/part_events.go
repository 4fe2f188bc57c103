package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/kendall-kelly/shopfloor-api/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LogEventInput describes one part event to append
type LogEventInput struct {
	OrderID string
	PartID  string
	UserID  *string
	Type    models.PartEventType
	Message string
	Meta    map[string]interface{}
}

// CompletePartInput identifies the part a machinist marks complete
type CompletePartInput struct {
	OrderID string
	PartID  string
	UserID  string
}

// EventLog appends part events and applies the part completion rule
type EventLog struct {
	db        *gorm.DB
	publisher EventPublisher
	now       func() time.Time
}

// NewEventLog creates an event log publishing through the global event publisher
func NewEventLog(db *gorm.DB) *EventLog {
	return &EventLog{db: db, publisher: GetEventPublisher(), now: time.Now}
}

// WithClock overrides the time source (primarily for testing)
func (l *EventLog) WithClock(now func() time.Time) *EventLog {
	l.now = now
	return l
}

// LogPartEvent appends an immutable event row and announces it
func (l *EventLog) LogPartEvent(ctx context.Context, in LogEventInput) (*models.PartEvent, error) {
	event := newPartEvent(in, l.now())
	if err := l.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, fmt.Errorf("failed to log part event: %w", err)
	}
	l.publish(ctx, event)
	return &event, nil
}

// LogPartEventQuietly appends an event for callers that must not fail because of the audit trail
func (l *EventLog) LogPartEventQuietly(ctx context.Context, in LogEventInput) {
	if _, err := l.LogPartEvent(ctx, in); err != nil {
		utils.Log.WithError(err).WithFields(logrus.Fields{
			"order_id": in.OrderID,
			"part_id":  in.PartID,
			"type":     in.Type,
		}).Error("Failed to log part event")
	}
}

// ListPartEvents returns a part's events oldest first
func (l *EventLog) ListPartEvents(ctx context.Context, orderID, partID string) ([]models.PartEvent, error) {
	db := l.db.WithContext(ctx)
	if _, err := findPartOnOrder(db, orderID, partID); err != nil {
		return nil, err
	}

	var events []models.PartEvent
	if err := db.Where("order_id = ? AND part_id = ?", orderID, partID).
		Order("created_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list part events: %w", err)
	}
	return events, nil
}

// CompleteOrderPart marks a part complete. Open checklist items never block this:
// the checklist tracks department billing, not operator actions.
func (l *EventLog) CompleteOrderPart(ctx context.Context, in CompletePartInput) (*models.OrderPart, error) {
	fields := FieldErrors{}
	fields.Required("order_id", in.OrderID)
	fields.Required("part_id", in.PartID)
	if err := fields.Err(); err != nil {
		return nil, err
	}

	now := l.now()
	var part *models.OrderPart
	var event models.PartEvent

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := findPartOnOrder(tx, in.OrderID, in.PartID)
		if err != nil {
			return err
		}
		part = found

		var userID *string
		if in.UserID != "" {
			userID = &in.UserID
		}
		if err := tx.Model(part).Updates(map[string]interface{}{
			"completed_at":    now,
			"completed_by_id": userID,
		}).Error; err != nil {
			return fmt.Errorf("failed to complete part: %w", err)
		}
		part.CompletedAt = &now
		part.CompletedByID = userID

		event = newPartEvent(LogEventInput{
			OrderID: in.OrderID,
			PartID:  in.PartID,
			UserID:  userID,
			Type:    models.EventPartCompleted,
			Message: fmt.Sprintf("Part %s marked complete", part.PartNumber),
		}, now)
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("failed to log part completion: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, event)
	return part, nil
}

func (l *EventLog) publish(ctx context.Context, events ...models.PartEvent) {
	for _, event := range events {
		if err := l.publisher.PublishPartEvent(ctx, event); err != nil {
			utils.Log.WithError(err).WithFields(logrus.Fields{
				"event_id": event.ID,
				"type":     event.Type,
			}).Warn("Failed to publish part event")
		}
	}
}

func newPartEvent(in LogEventInput, at time.Time) models.PartEvent {
	return models.PartEvent{
		OrderID:   in.OrderID,
		PartID:    in.PartID,
		UserID:    in.UserID,
		Type:      in.Type,
		Message:   in.Message,
		Meta:      in.Meta,
		CreatedAt: at,
	}
}

func findPartOnOrder(db *gorm.DB, orderID, partID string) (*models.OrderPart, error) {
	var part models.OrderPart
	if err := db.Where("id = ? AND order_id = ?", partID, orderID).First(&part).Error; err != nil {
		return nil, notFoundOr(err, "part", partID+" on order "+orderID)
	}
	return &part, nil
}
