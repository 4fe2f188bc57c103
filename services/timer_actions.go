package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kendall-kelly/shopfloor-api/models"
	"gorm.io/gorm"
)

// FinishResult is the closed entry plus the part it completed, if the entry was booked on a part
type FinishResult struct {
	Entry *models.TimeEntry `json:"entry"`
	Part  *models.OrderPart `json:"part,omitempty"`
}

// TimerActions are the operator-facing timer buttons: ledger calls plus part events.
// Event logging never fails an action.
type TimerActions struct {
	ledger *TimeLedger
	events *EventLog
}

// NewTimerActions creates timer actions over the given database
func NewTimerActions(db *gorm.DB) *TimerActions {
	return &TimerActions{ledger: NewTimeLedger(db), events: NewEventLog(db)}
}

// WithClock overrides the time source of the ledger and the event log (primarily for testing)
func (a *TimerActions) WithClock(now func() time.Time) *TimerActions {
	a.ledger.WithClock(now)
	a.events.WithClock(now)
	return a
}

// Ledger exposes the underlying time ledger for read-only queries
func (a *TimerActions) Ledger() *TimeLedger {
	return a.ledger
}

// Start opens a timer. Without force a running timer is an *ActiveTimerError; with force it is stopped first.
func (a *TimerActions) Start(ctx context.Context, userID string, in StartInput, force bool) (*models.TimeEntry, error) {
	if !force {
		entry, err := a.ledger.StartTimeEntryWithConflict(ctx, userID, in)
		if err != nil {
			return nil, err
		}
		a.logEntryEvent(ctx, entry, models.EventTimerStarted, "Timer started")
		return entry, nil
	}

	entry, closed, err := a.ledger.SwitchTimeEntry(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	if closed != nil {
		a.logEntryEvent(ctx, closed, models.EventTimerStopped, "Timer stopped by switching work")
	}
	a.logEntryEvent(ctx, entry, models.EventTimerStarted, "Timer started")
	return entry, nil
}

// Pause closes the running timer and records a pause
func (a *TimerActions) Pause(ctx context.Context, userID string) (*models.TimeEntry, error) {
	entry, err := a.ledger.PauseActiveTimeEntry(ctx, userID)
	if err != nil {
		return nil, err
	}
	a.logEntryEvent(ctx, entry, models.EventTimerPaused, "Timer paused")
	return entry, nil
}

// Stop closes the running timer
func (a *TimerActions) Stop(ctx context.Context, userID string) (*models.TimeEntry, error) {
	entry, err := a.ledger.StopActiveTimeEntry(ctx, userID)
	if err != nil {
		return nil, err
	}
	a.logEntryEvent(ctx, entry, models.EventTimerStopped, "Timer stopped")
	return entry, nil
}

// Finish closes the running timer and marks its part complete. The two steps commit separately:
// if completing the part fails the entry stays closed and the error is returned, so the part
// can be completed again without reopening the timer.
func (a *TimerActions) Finish(ctx context.Context, userID string) (*FinishResult, error) {
	entry, err := a.ledger.StopActiveTimeEntry(ctx, userID)
	if err != nil {
		return nil, err
	}
	a.logEntryEvent(ctx, entry, models.EventTimerFinished, "Timer finished")

	result := &FinishResult{Entry: entry}
	if entry.PartID == nil {
		return result, nil
	}
	part, err := a.events.CompleteOrderPart(ctx, CompletePartInput{
		OrderID: entry.OrderID,
		PartID:  *entry.PartID,
		UserID:  userID,
	})
	if err != nil {
		return nil, err
	}
	result.Part = part
	return result, nil
}

// Resume starts a new timer copying a closed entry
func (a *TimerActions) Resume(ctx context.Context, userID string, in ResumeInput) (*models.TimeEntry, error) {
	entry, err := a.ledger.ResumeTimeEntry(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	a.logEntryEvent(ctx, entry, models.EventTimerResumed, "Timer resumed")
	return entry, nil
}

// logEntryEvent records a timer event on the entry's part; order-level timers have no part to log on
func (a *TimerActions) logEntryEvent(ctx context.Context, entry *models.TimeEntry, eventType models.PartEventType, verb string) {
	if entry.PartID == nil {
		return
	}

	message := fmt.Sprintf("%s (%s)", verb, entry.Operation)
	meta := map[string]interface{}{"entry_id": entry.ID, "operation": entry.Operation}
	if !entry.IsOpen() {
		seconds := int64(entry.Duration() / time.Second)
		meta["duration_seconds"] = seconds
		message = fmt.Sprintf("%s (%s, %ds)", verb, entry.Operation, seconds)
	}

	userID := entry.UserID
	a.events.LogPartEventQuietly(ctx, LogEventInput{
		OrderID: entry.OrderID,
		PartID:  *entry.PartID,
		UserID:  &userID,
		Type:    eventType,
		Message: message,
		Meta:    meta,
	})
}
