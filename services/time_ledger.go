package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kendall-kelly/shopfloor-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StartInput describes the work a new timer is booked against
type StartInput struct {
	OrderID   string
	PartID    *string
	Operation string
}

// ResumeInput names the closed entry whose order, part and operation a new timer copies
type ResumeInput struct {
	EntryID string
}

// ActiveTimerError is returned by the conflict-checking start when the user already has a running timer
type ActiveTimerError struct {
	Entry          models.TimeEntry
	ElapsedSeconds int64
}

func (e *ActiveTimerError) Error() string {
	return fmt.Sprintf("active timer already running (entry %s, %ds elapsed)", e.Entry.ID, e.ElapsedSeconds)
}

// Status is always 409
func (e *ActiveTimerError) Status() int {
	return http.StatusConflict
}

// Code identifies the error in API responses
func (e *ActiveTimerError) Code() string {
	return "ACTIVE_TIMER_CONFLICT"
}

// TimeLedger keeps at most one open time entry per user.
// Every mutation locks the user row; the partial unique index on open entries backs that up
// when the lock is unavailable (SQLite) or bypassed.
type TimeLedger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTimeLedger creates a ledger using the wall clock
func NewTimeLedger(db *gorm.DB) *TimeLedger {
	return &TimeLedger{db: db, now: time.Now}
}

// WithClock overrides the time source (primarily for testing)
func (l *TimeLedger) WithClock(now func() time.Time) *TimeLedger {
	l.now = now
	return l
}

func mustUser(userID string) {
	if strings.TrimSpace(userID) == "" {
		panic("services: time ledger called without a user id")
	}
}

// GetActiveTimeEntry returns the user's running entry, or nil when the user is idle
func (l *TimeLedger) GetActiveTimeEntry(ctx context.Context, userID string) (*models.TimeEntry, error) {
	mustUser(userID)
	return findOpenEntry(l.db.WithContext(ctx), userID)
}

// StartTimeEntry closes any running entry and opens a new one. It never fails because of a prior timer.
func (l *TimeLedger) StartTimeEntry(ctx context.Context, userID string, in StartInput) (*models.TimeEntry, error) {
	opened, _, err := l.closeActiveAndMaybeCreate(ctx, userID, in, false)
	return opened, err
}

// SwitchTimeEntry is StartTimeEntry that also returns the entry it closed, or nil when the user was idle
func (l *TimeLedger) SwitchTimeEntry(ctx context.Context, userID string, in StartInput) (opened, closed *models.TimeEntry, err error) {
	return l.closeActiveAndMaybeCreate(ctx, userID, in, false)
}

// StartTimeEntryWithConflict opens a new entry only when the user is idle; otherwise it returns *ActiveTimerError
func (l *TimeLedger) StartTimeEntryWithConflict(ctx context.Context, userID string, in StartInput) (*models.TimeEntry, error) {
	opened, _, err := l.closeActiveAndMaybeCreate(ctx, userID, in, true)
	return opened, err
}

func (l *TimeLedger) closeActiveAndMaybeCreate(ctx context.Context, userID string, in StartInput, failOnExisting bool) (*models.TimeEntry, *models.TimeEntry, error) {
	mustUser(userID)

	fields := FieldErrors{}
	fields.Required("order_id", in.OrderID)
	fields.Required("operation", in.Operation)
	if in.PartID != nil {
		fields.Required("part_id", *in.PartID)
	}
	if err := fields.Err(); err != nil {
		return nil, nil, err
	}

	now := l.now()
	var created, closed *models.TimeEntry

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}
		if err := ensureOrderExists(tx, in.OrderID); err != nil {
			return err
		}
		if in.PartID != nil {
			if _, err := findPartOnOrder(tx, in.OrderID, *in.PartID); err != nil {
				return err
			}
		}

		active, err := findOpenEntry(tx, userID)
		if err != nil {
			return err
		}
		if active != nil {
			if failOnExisting {
				return &ActiveTimerError{Entry: *active, ElapsedSeconds: elapsedSeconds(active, now)}
			}
			if err := closeEntry(tx, active, now); err != nil {
				return err
			}
			closed = active
		}

		entry := models.TimeEntry{
			OrderID:   in.OrderID,
			PartID:    in.PartID,
			UserID:    userID,
			Operation: strings.TrimSpace(in.Operation),
			StartedAt: now,
		}
		if err := createOpenEntry(tx, &entry); err != nil {
			return err
		}
		created = &entry
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return created, closed, nil
}

// PauseActiveTimeEntry closes the running entry. At the ledger level pausing and stopping are the same.
func (l *TimeLedger) PauseActiveTimeEntry(ctx context.Context, userID string) (*models.TimeEntry, error) {
	return l.closeActive(ctx, userID)
}

// StopActiveTimeEntry closes the running entry
func (l *TimeLedger) StopActiveTimeEntry(ctx context.Context, userID string) (*models.TimeEntry, error) {
	return l.closeActive(ctx, userID)
}

func (l *TimeLedger) closeActive(ctx context.Context, userID string) (*models.TimeEntry, error) {
	mustUser(userID)

	now := l.now()
	var closed *models.TimeEntry

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}
		active, err := findOpenEntry(tx, userID)
		if err != nil {
			return err
		}
		if active == nil {
			return NotFound("no active timer for user %s", userID)
		}
		if err := closeEntry(tx, active, now); err != nil {
			return err
		}
		closed = active
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// ResumeTimeEntry starts a new entry copying a closed entry's order, part and operation.
// The old entry stays closed; any entry running now is closed first.
func (l *TimeLedger) ResumeTimeEntry(ctx context.Context, userID string, in ResumeInput) (*models.TimeEntry, error) {
	mustUser(userID)

	fields := FieldErrors{}
	fields.Required("entry_id", in.EntryID)
	if err := fields.Err(); err != nil {
		return nil, err
	}

	now := l.now()
	var created *models.TimeEntry

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}

		var source models.TimeEntry
		if err := tx.First(&source, "id = ?", in.EntryID).Error; err != nil {
			return notFoundOr(err, "time entry", in.EntryID)
		}
		if source.UserID != userID {
			return Forbidden("time entry %s belongs to another user", source.ID)
		}
		if source.IsOpen() {
			return Conflict("time entry %s is still running", source.ID)
		}

		active, err := findOpenEntry(tx, userID)
		if err != nil {
			return err
		}
		if active != nil {
			if err := closeEntry(tx, active, now); err != nil {
				return err
			}
		}

		entry := models.TimeEntry{
			OrderID:   source.OrderID,
			PartID:    source.PartID,
			UserID:    userID,
			Operation: source.Operation,
			StartedAt: now,
		}
		if err := createOpenEntry(tx, &entry); err != nil {
			return err
		}
		created = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// EntryDuration is the closed length of an entry in whole seconds; running entries count as zero
func EntryDuration(entry models.TimeEntry) time.Duration {
	return entry.Duration()
}

// TotalMinutes sums closed entries in whole minutes
func TotalMinutes(entries []models.TimeEntry) int64 {
	var total time.Duration
	for i := range entries {
		total += entries[i].Duration()
	}
	return int64(total / time.Minute)
}

// OrderTimeSummary totals booked minutes on an order per part and per user.
// Order-level entries (no part) are reported under the empty part id.
type OrderTimeSummary struct {
	OrderID      string           `json:"order_id"`
	TotalMinutes int64            `json:"total_minutes"`
	ByPart       map[string]int64 `json:"by_part"`
	ByUser       map[string]int64 `json:"by_user"`
	OpenEntries  int              `json:"open_entries"`
}

// SummarizeOrderTime aggregates every entry booked against the order
func (l *TimeLedger) SummarizeOrderTime(ctx context.Context, orderID string) (*OrderTimeSummary, error) {
	db := l.db.WithContext(ctx)
	if err := ensureOrderExists(db, orderID); err != nil {
		return nil, err
	}

	var entries []models.TimeEntry
	if err := db.Where("order_id = ?", orderID).Order("started_at ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load time entries: %w", err)
	}

	byPart := map[string][]models.TimeEntry{}
	byUser := map[string][]models.TimeEntry{}
	summary := &OrderTimeSummary{
		OrderID:      orderID,
		TotalMinutes: TotalMinutes(entries),
		ByPart:       map[string]int64{},
		ByUser:       map[string]int64{},
	}
	for _, e := range entries {
		if e.IsOpen() {
			summary.OpenEntries++
		}
		partKey := ""
		if e.PartID != nil {
			partKey = *e.PartID
		}
		byPart[partKey] = append(byPart[partKey], e)
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}
	for k, v := range byPart {
		summary.ByPart[k] = TotalMinutes(v)
	}
	for k, v := range byUser {
		summary.ByUser[k] = TotalMinutes(v)
	}
	return summary, nil
}

func elapsedSeconds(entry *models.TimeEntry, now time.Time) int64 {
	elapsed := now.Sub(entry.StartedAt)
	if elapsed < 0 {
		return 0
	}
	return int64(elapsed / time.Second)
}

func lockUser(tx *gorm.DB, userID string) error {
	var user models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&user, "id = ?", userID).Error; err != nil {
		return notFoundOr(err, "user", userID)
	}
	return nil
}

func findOpenEntry(db *gorm.DB, userID string) (*models.TimeEntry, error) {
	var entries []models.TimeEntry
	if err := db.Where("user_id = ? AND ended_at IS NULL", userID).
		Order("started_at DESC").
		Limit(1).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load active timer: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func closeEntry(tx *gorm.DB, entry *models.TimeEntry, at time.Time) error {
	res := tx.Model(&models.TimeEntry{}).
		Where("id = ? AND ended_at IS NULL", entry.ID).
		Updates(map[string]interface{}{"ended_at": at, "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("failed to close time entry %s: %w", entry.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return Conflict("time entry %s is already closed", entry.ID)
	}
	entry.EndedAt = &at
	return nil
}

func createOpenEntry(tx *gorm.DB, entry *models.TimeEntry) error {
	if err := tx.Create(entry).Error; err != nil {
		if isUniqueViolation(err) {
			return Conflict("user %s already has an active timer", entry.UserID)
		}
		return fmt.Errorf("failed to create time entry: %w", err)
	}
	return nil
}

// isUniqueViolation recognizes unique index failures with or without gorm's error translation
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
