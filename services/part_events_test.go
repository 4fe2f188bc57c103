package services

import (
	"context"
	"testing"
	"time"

	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLog_LogAndList(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	clock := newTestClock()
	log := NewEventLog(f.db).WithClock(clock.Now)

	first, err := log.LogPartEvent(ctx, LogEventInput{OrderID: f.order.ID, PartID: f.partA.ID, UserID: &f.user.ID, Type: models.EventNote, Message: "Chatter on second op"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = log.LogPartEvent(ctx, LogEventInput{OrderID: f.order.ID, PartID: f.partA.ID, Type: models.EventNote, Message: "Tool swapped", Meta: map[string]interface{}{"tool": "T12"}})
	require.NoError(t, err)
	_, err = log.LogPartEvent(ctx, LogEventInput{OrderID: f.order.ID, PartID: f.partB.ID, Type: models.EventNote, Message: "Other part"})
	require.NoError(t, err)

	events, err := log.ListPartEvents(ctx, f.order.ID, f.partA.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, "Tool swapped", events[1].Message)
	assert.Equal(t, "T12", events[1].Meta["tool"])

	_, err = log.ListPartEvents(ctx, f.order.ID, "missing")
	requireKind(t, err, KindNotFound)
	assert.Len(t, f.publisher.Types(), 3)
}

func TestEventLog_EventsAreImmutable(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()

	event, err := NewEventLog(f.db).LogPartEvent(ctx, LogEventInput{OrderID: f.order.ID, PartID: f.partA.ID, Type: models.EventNote, Message: "original"})
	require.NoError(t, err)

	err = f.db.Model(event).Update("message", "rewritten").Error
	assert.ErrorIs(t, err, models.ErrPartEventImmutable)
	err = f.db.Delete(event).Error
	assert.ErrorIs(t, err, models.ErrPartEventImmutable)

	var stored models.PartEvent
	require.NoError(t, f.db.First(&stored, "id = ?", event.ID).Error)
	assert.Equal(t, "original", stored.Message)
}

func TestEventLog_CompleteOrderPart(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	clock := newTestClock()
	log := NewEventLog(f.db).WithClock(clock.Now)

	// open checklist items do not block completion
	_, err := NewChargeService(f.db).CreateCharge(ctx, f.order.ID, laborInput(f.partA.ID, f.cutting.ID))
	require.NoError(t, err)

	part, err := log.CompleteOrderPart(ctx, CompletePartInput{OrderID: f.order.ID, PartID: f.partA.ID, UserID: f.user.ID})
	require.NoError(t, err)
	assert.True(t, part.CompletedAt.Equal(clock.Now()))
	assert.Equal(t, f.user.ID, *part.CompletedByID)

	clock.Advance(time.Hour)
	part, err = log.CompleteOrderPart(ctx, CompletePartInput{OrderID: f.order.ID, PartID: f.partA.ID})
	require.NoError(t, err)
	assert.Nil(t, part.CompletedByID)

	stored := reloadPart(t, f, f.partA.ID)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, stored.CompletedAt.Equal(clock.Now()))
	assert.Nil(t, stored.CompletedByID)

	events, err := log.ListPartEvents(ctx, f.order.ID, f.partA.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Part P-100 marked complete", events[0].Message)

	_, err = log.CompleteOrderPart(ctx, CompletePartInput{OrderID: f.order.ID})
	requireKind(t, err, KindValidation)
	_, err = log.CompleteOrderPart(ctx, CompletePartInput{OrderID: "other-order", PartID: f.partA.ID})
	requireKind(t, err, KindNotFound)
}

func TestNewPartEventMessage(t *testing.T) {
	at := time.Date(2026, 2, 3, 8, 30, 0, 0, time.UTC)
	userID := "user-1"

	msg := NewPartEventMessage(models.PartEvent{
		ID:        "event-1",
		OrderID:   "order-1",
		PartID:    "part-1",
		UserID:    &userID,
		Type:      models.EventDepartmentTransition,
		Message:   "moved",
		Meta:      map[string]interface{}{"to_department_id": "dept-2"},
		CreatedAt: at,
	})

	assert.Equal(t, "event-1", msg.EventID)
	assert.Equal(t, models.EventDepartmentTransition, msg.Type)
	assert.Equal(t, "dept-2", msg.Meta["to_department_id"])
	assert.Equal(t, at, msg.Timestamp)
	assert.Equal(t, &userID, msg.UserID)
}
