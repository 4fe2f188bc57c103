package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db))
	return db
}

// recordingPublisher keeps every published event in memory
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PartEvent
}

func (p *recordingPublisher) PublishPartEvent(ctx context.Context, event models.PartEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Types() []models.PartEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]models.PartEventType, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

func useRecordingPublisher(t *testing.T) *recordingPublisher {
	t.Helper()
	rec := &recordingPublisher{}
	SetEventPublisher(rec)
	t.Cleanup(func() { SetEventPublisher(nil) })
	return rec
}

// testClock is a settable time source
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// shopFixture is a two-part order with two departments and one machinist
type shopFixture struct {
	db        *gorm.DB
	user      models.User
	other     models.User
	cutting   models.Department
	welding   models.Department
	order     models.Order
	partA     models.OrderPart
	partB     models.OrderPart
	publisher *recordingPublisher
}

func newShopFixture(t *testing.T) *shopFixture {
	t.Helper()

	f := &shopFixture{db: setupServiceDB(t), publisher: useRecordingPublisher(t)}

	f.user = models.User{Auth0ID: "auth0|machinist", Name: "Dana Machinist", Email: "dana@example.com", Role: models.RoleMachinist}
	f.other = models.User{Auth0ID: "auth0|other", Name: "Lee Other", Email: "lee@example.com", Role: models.RoleMachinist}
	require.NoError(t, f.db.Create(&f.user).Error)
	require.NoError(t, f.db.Create(&f.other).Error)

	f.cutting = models.Department{Name: "Cutting", SortOrder: 1, IsActive: true}
	f.welding = models.Department{Name: "Welding", SortOrder: 2, IsActive: true}
	require.NoError(t, f.db.Create(&f.cutting).Error)
	require.NoError(t, f.db.Create(&f.welding).Error)

	f.order = models.Order{Code: "ORD-1001", CustomerName: "Acme Fabrication", Priority: models.PriorityNormal, Status: models.OrderStatusReceived}
	require.NoError(t, f.db.Create(&f.order).Error)

	// distinct pointers so a scan into one part never moves another
	partADept, partBDept := f.cutting.ID, f.cutting.ID
	f.partA = models.OrderPart{OrderID: f.order.ID, PartNumber: "P-100", Quantity: 4, CurrentDepartmentID: &partADept}
	f.partB = models.OrderPart{OrderID: f.order.ID, PartNumber: "P-200", Quantity: 2, CurrentDepartmentID: &partBDept}
	require.NoError(t, f.db.Create(&f.partA).Error)
	require.NoError(t, f.db.Create(&f.partB).Error)

	return f
}

// insertCharge writes a charge without running the synchronizer
func (f *shopFixture) insertCharge(t *testing.T, partID, departmentID *string, description string) models.OrderCharge {
	t.Helper()
	charge := models.OrderCharge{
		OrderID:      f.order.ID,
		PartID:       partID,
		Kind:         models.ChargeKindLabor,
		DepartmentID: departmentID,
		Description:  description,
		Quantity:     decimal.NewFromInt(1),
		UnitPrice:    decimal.RequireFromString("85.00"),
	}
	if departmentID == nil {
		charge.Kind = models.ChargeKindMaterial
	}
	require.NoError(t, f.db.Create(&charge).Error)
	return charge
}

func (f *shopFixture) activeRows(t *testing.T) []models.OrderChecklist {
	t.Helper()
	var rows []models.OrderChecklist
	require.NoError(t, f.db.Where("order_id = ? AND is_active = ?", f.order.ID, true).
		Order("created_at ASC, id ASC").
		Find(&rows).Error)
	return rows
}

// requireOneToOne checks that every department-scoped charge has exactly one active
// checklist row and that no active row points at a charge that is gone or untracked
func requireOneToOne(t *testing.T, db *gorm.DB, orderID string) {
	t.Helper()

	var charges []models.OrderCharge
	require.NoError(t, db.Where("order_id = ?", orderID).Find(&charges).Error)
	var rows []models.OrderChecklist
	require.NoError(t, db.Where("order_id = ? AND is_active = ? AND charge_id IS NOT NULL", orderID, true).Find(&rows).Error)

	tracked := map[string]models.OrderCharge{}
	for _, c := range charges {
		if c.HasDepartment() {
			tracked[c.ID] = c
		}
	}

	perCharge := map[string]int{}
	for _, r := range rows {
		charge, ok := tracked[*r.ChargeID]
		require.True(t, ok, "active row %s points at untracked charge %s", r.ID, *r.ChargeID)
		require.Equal(t, charge.IsCompleted(), r.Completed, "row %s completion", r.ID)
		require.Equal(t, *charge.DepartmentID, *r.DepartmentID, "row %s department", r.ID)
		perCharge[*r.ChargeID]++
	}
	for id := range tracked {
		require.Equal(t, 1, perCharge[id], "charge %s active rows", id)
	}
}

func requireKind(t *testing.T, err error, kind ErrorKind) *AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := AsAppError(err)
	require.True(t, ok, "expected *AppError, got %T: %v", err, err)
	require.Equal(t, kind, appErr.Kind, appErr.Message)
	return appErr
}

func strPtr(s string) *string { return &s }
