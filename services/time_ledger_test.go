package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countOpenEntries(t *testing.T, f *shopFixture, userID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.TimeEntry{}).Where("user_id = ? AND ended_at IS NULL", userID).Count(&n).Error)
	return n
}

func TestTimeLedger_DurationOfClosedEntry(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	clock := newTestClock()
	ledger := NewTimeLedger(f.db).WithClock(clock.Now)

	started, err := ledger.StartTimeEntry(ctx, f.user.ID, StartInput{OrderID: f.order.ID, PartID: &f.partA.ID, Operation: "Milling"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), started.StartedAt)
	assert.Equal(t, time.Duration(0), EntryDuration(*started))

	clock.Advance(10 * time.Minute)
	stopped, err := ledger.StopActiveTimeEntry(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 600*time.Second, EntryDuration(*stopped))

	var stored models.TimeEntry
	require.NoError(t, f.db.First(&stored, "id = ?", started.ID).Error)
	assert.Equal(t, 600*time.Second, EntryDuration(stored))
	assert.Equal(t, int64(10), TotalMinutes([]models.TimeEntry{stored}))
}

func TestTimeLedger_StartClosesRunningEntry(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	clock := newTestClock()
	ledger := NewTimeLedger(f.db).WithClock(clock.Now)

	first, err := ledger.StartTimeEntry(ctx, f.user.ID, StartInput{OrderID: f.order.ID, PartID: &f.partA.ID, Operation: "Milling"})
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	second, err := ledger.StartTimeEntry(ctx, f.user.ID, StartInput{OrderID: f.order.ID, PartID: &f.partB.ID, Operation: "Deburr"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	assert.Equal(t, int64(1), countOpenEntries(t, f, f.user.ID))

	var closed models.TimeEntry
	require.NoError(t, f.db.First(&closed, "id = ?", first.ID).Error)
	require.NotNil(t, closed.EndedAt)
	assert.Equal(t, 300*time.Second, closed.Duration())

	active, err := ledger.GetActiveTimeEntry(ctx, f.user.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)
}

func TestTimeLedger_SwitchReturnsClosedEntry(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	clock := newTestClock()
	ledger := NewTimeLedger(f.db).WithClock(clock.Now)

	opened, closed, err := ledger.SwitchTimeEntry(ctx, f.user.ID, StartInput{OrderID: f.order.ID, PartID: &f.partA.ID, Operation: "Milling"})
	require.NoError(t, err)
	assert.Nil(t, closed, "an idle user has nothing to close")

	clock.Advance(3 * time.Minute)
	next, closed, err := ledger.SwitchTimeEntry(ctx, f.user.ID, StartInput{OrderID: f.order.ID, PartID: &f.partB.ID, Operation: "Deburr"})
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, opened.ID, closed.ID)
	require.NotNil(t, closed.EndedAt)
	assert.True(t, closed.EndedAt.Equal(next.StartedAt))
	assert.Equal(t, 180*time.Second, closed.Duration())
}

func TestTimeLedger_StartWithConflictReportsRunningEntry(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	clock := newTestClock()
	ledger := NewTimeLedger(f.db).WithClock(clock.Now)

	running, err := ledger.StartTimeEntryWithConflict(ctx, f.user.ID, StartInput{OrderID: f.order.ID, Operation: "Setup"})
	require.NoError(t, err)

	clock.Advance(90 * time.Second)
	_, err = ledger.StartTimeEntryWithConflict(ctx, f.user.ID, StartInput{OrderID: f.order.ID, PartID: &f.partA.ID, Operation: "Milling"})

	var conflict *ActiveTimerError
	require.True(t, errors.As(err, &conflict), "expected *ActiveTimerError, got %v", err)
	assert.Equal(t, running.ID, conflict.Entry.ID)
	assert.Equal(t, int64(90), conflict.ElapsedSeconds)
	assert.Equal(t, 409, conflict.Status())
	assert.Equal(t, "ACTIVE_TIMER_CONFLICT", conflict.Code())

	// the running entry is untouched
	assert.Equal(t, int64(1), countOpenEntries(t, f, f.user.ID))
	active, err := ledger.GetActiveTimeEntry(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, running.ID, active.ID)
}

func TestTimeLedger_TimersArePerUser(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	ledger := NewTimeLedger(f.db)

	_, err := ledger.StartTimeEntryWithConflict(ctx, f.user.ID, StartInput{OrderID: f.order.ID, Operation: "Milling"})
	require.NoError(t, err)
	_, err = ledger.StartTimeEntryWithConflict(ctx, f.other.ID, StartInput{OrderID: f.order.ID, Operation: "Milling"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), countOpenEntries(t, f, f.user.ID))
	assert.Equal(t, int64(1), countOpenEntries(t, f, f.other.ID))
}

func TestTimeLedger_OpenEntryIndexRejectsSecondRunningTimer(t *testing.T) {
	f := newShopFixture(t)
	now := time.Now()

	first := models.TimeEntry{OrderID: f.order.ID, UserID: f.user.ID, Operation: "Milling", StartedAt: now}
	require.NoError(t, f.db.Create(&first).Error)

	second := models.TimeEntry{OrderID: f.order.ID, UserID: f.user.ID, Operation: "Milling", StartedAt: now}
	err := f.db.Create(&second).Error
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err), err.Error())

	// closed entries do not count against the index
	ended := now.Add(time.Minute)
	closed := models.TimeEntry{OrderID: f.order.ID, UserID: f.user.ID, Operation: "Milling", StartedAt: now, EndedAt: &ended}
	require.NoError(t, f.db.Create(&closed).Error)
}

func TestTimeLedger_StartValidation(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	ledger := NewTimeLedger(f.db)

	_, err := ledger.StartTimeEntry(ctx, f.user.ID, StartInput{})
	appErr := requireKind(t, err, KindValidation)
	assert.Contains(t, appErr.Fields, "order_id")
	assert.Contains(t, appErr.Fields, "operation")

	_, err = ledger.StartTimeEntry(ctx, f.user.ID, StartInput{OrderID: "missing", Operation: "Milling"})
	requireKind(t, err, KindNotFound)

	_, err = ledger.StartTimeEntry(ctx, f.user.ID, StartInput{OrderID: f.order.ID, PartID: strPtr("missing"), Operation: "Milling"})
	requireKind(t, err, KindNotFound)

	_, err = ledger.StartTimeEntry(ctx, "unknown-user", StartInput{OrderID: f.order.ID, Operation: "Milling"})
	requireKind(t, err, KindNotFound)

	assert.Panics(t, func() {
		_, _ = ledger.StartTimeEntry(ctx, " ", StartInput{OrderID: f.order.ID, Operation: "Milling"})
	})
}

func TestTimeLedger_PauseAndStopWithoutTimer(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	ledger := NewTimeLedger(f.db)

	_, err := ledger.PauseActiveTimeEntry(ctx, f.user.ID)
	requireKind(t, err, KindNotFound)
	_, err = ledger.StopActiveTimeEntry(ctx, f.user.ID)
	requireKind(t, err, KindNotFound)

	active, err := ledger.GetActiveTimeEntry(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestTimeLedger_Resume(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	clock := newTestClock()
	ledger := NewTimeLedger(f.db).WithClock(clock.Now)

	original, err := ledger.StartTimeEntry(ctx, f.user.ID, StartInput{OrderID: f.order.ID, PartID: &f.partA.ID, Operation: "Milling"})
	require.NoError(t, err)

	// a running entry cannot be resumed
	_, err = ledger.ResumeTimeEntry(ctx, f.user.ID, ResumeInput{EntryID: original.ID})
	requireKind(t, err, KindConflict)

	clock.Advance(time.Minute)
	_, err = ledger.PauseActiveTimeEntry(ctx, f.user.ID)
	require.NoError(t, err)

	_, err = ledger.ResumeTimeEntry(ctx, f.other.ID, ResumeInput{EntryID: original.ID})
	requireKind(t, err, KindForbidden)

	_, err = ledger.ResumeTimeEntry(ctx, f.user.ID, ResumeInput{EntryID: "missing"})
	requireKind(t, err, KindNotFound)

	_, err = ledger.ResumeTimeEntry(ctx, f.user.ID, ResumeInput{})
	requireKind(t, err, KindValidation)

	clock.Advance(time.Minute)
	resumed, err := ledger.ResumeTimeEntry(ctx, f.user.ID, ResumeInput{EntryID: original.ID})
	require.NoError(t, err)
	assert.NotEqual(t, original.ID, resumed.ID)
	assert.Equal(t, original.OrderID, resumed.OrderID)
	assert.Equal(t, *original.PartID, *resumed.PartID)
	assert.Equal(t, "Milling", resumed.Operation)
	assert.True(t, resumed.IsOpen())
	assert.True(t, resumed.StartedAt.Equal(clock.Now()))

	var old models.TimeEntry
	require.NoError(t, f.db.First(&old, "id = ?", original.ID).Error)
	assert.False(t, old.IsOpen(), "resumed entry stays closed")
	assert.Equal(t, int64(1), countOpenEntries(t, f, f.user.ID))
}

func TestTimeLedger_ResumeClosesOtherRunningEntry(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	ledger := NewTimeLedger(f.db)

	first, err := ledger.StartTimeEntry(ctx, f.user.ID, StartInput{OrderID: f.order.ID, PartID: &f.partA.ID, Operation: "Milling"})
	require.NoError(t, err)
	_, err = ledger.StartTimeEntry(ctx, f.user.ID, StartInput{OrderID: f.order.ID, PartID: &f.partB.ID, Operation: "Deburr"})
	require.NoError(t, err)

	resumed, err := ledger.ResumeTimeEntry(ctx, f.user.ID, ResumeInput{EntryID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, f.partA.ID, *resumed.PartID)
	assert.Equal(t, int64(1), countOpenEntries(t, f, f.user.ID))
}

func TestTimeLedger_SummarizeOrderTime(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	clock := newTestClock()
	ledger := NewTimeLedger(f.db).WithClock(clock.Now)

	_, err := ledger.StartTimeEntry(ctx, f.user.ID, StartInput{OrderID: f.order.ID, PartID: &f.partA.ID, Operation: "Milling"})
	require.NoError(t, err)
	_, err = ledger.StartTimeEntry(ctx, f.other.ID, StartInput{OrderID: f.order.ID, Operation: "Programming"})
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	_, err = ledger.StopActiveTimeEntry(ctx, f.user.ID)
	require.NoError(t, err)
	clock.Advance(15 * time.Minute)
	_, err = ledger.StopActiveTimeEntry(ctx, f.other.ID)
	require.NoError(t, err)

	_, err = ledger.StartTimeEntry(ctx, f.user.ID, StartInput{OrderID: f.order.ID, PartID: &f.partB.ID, Operation: "Deburr"})
	require.NoError(t, err)

	summary, err := ledger.SummarizeOrderTime(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(75), summary.TotalMinutes)
	assert.Equal(t, int64(30), summary.ByPart[f.partA.ID])
	assert.Equal(t, int64(0), summary.ByPart[f.partB.ID])
	assert.Equal(t, int64(45), summary.ByPart[""])
	assert.Equal(t, int64(30), summary.ByUser[f.user.ID])
	assert.Equal(t, int64(45), summary.ByUser[f.other.ID])
	assert.Equal(t, 1, summary.OpenEntries)

	_, err = ledger.SummarizeOrderTime(ctx, "missing")
	requireKind(t, err, KindNotFound)
}
