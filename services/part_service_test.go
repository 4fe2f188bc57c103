package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartService_AddPartCopiesCharges(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	charges := NewChargeService(f.db)

	_, err := charges.CreateCharge(ctx, f.order.ID, laborInput(f.partA.ID, f.cutting.ID))
	require.NoError(t, err)
	done, err := charges.CreateCharge(ctx, f.order.ID, laborInput(f.partA.ID, f.welding.ID))
	require.NoError(t, err)
	_, err = charges.SetChargeCompleted(ctx, f.order.ID, done.ID, true)
	require.NoError(t, err)

	part, err := NewPartService(f.db, nil).AddPart(ctx, AddPartInput{
		OrderID:               f.order.ID,
		PartNumber:            "P-300",
		Quantity:              3,
		CopyChargesFromPartID: &f.partA.ID,
	})
	require.NoError(t, err)

	var copied []models.OrderCharge
	require.NoError(t, f.db.Where("part_id = ?", part.ID).Find(&copied).Error)
	require.Len(t, copied, 2)
	for _, c := range copied {
		assert.False(t, c.IsCompleted(), "copied charges start open")
	}

	requireOneToOne(t, f.db, f.order.ID)
	assert.Len(t, f.activeRows(t), 4)
}

func TestPartService_AddPartValidation(t *testing.T) {
	f := newShopFixture(t)
	svc := NewPartService(f.db, nil)

	_, err := svc.AddPart(context.Background(), AddPartInput{OrderID: f.order.ID})
	appErr := requireKind(t, err, KindValidation)
	assert.Contains(t, appErr.Fields, "part_number")
	assert.Contains(t, appErr.Fields, "quantity")

	_, err = svc.AddPart(context.Background(), AddPartInput{OrderID: f.order.ID, PartNumber: "P-9", Quantity: 1, CopyChargesFromPartID: strPtr("missing")})
	requireKind(t, err, KindNotFound)
}

func TestPartService_DeletePartCascades(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	storage := NewMockS3Service()

	_, err := NewChargeService(f.db).CreateCharge(ctx, f.order.ID, laborInput(f.partB.ID, f.cutting.ID))
	require.NoError(t, err)
	_, err = NewChecklistService(f.db).AddManualItem(ctx, f.order.ID, ManualItemInput{PartID: &f.partB.ID, Label: "Inspect threads"})
	require.NoError(t, err)

	key := "orders/" + f.order.ID + "/parts/" + f.partB.ID + "/drawing.pdf"
	require.NoError(t, storage.PutObject(ctx, key, "application/pdf", bytes.NewReader([]byte("%PDF")), 4))
	attachment := models.PartAttachment{OrderID: f.order.ID, PartID: f.partB.ID, FileName: "drawing.pdf", StorageKey: key, ContentType: "application/pdf", SizeBytes: 4}
	require.NoError(t, f.db.Create(&attachment).Error)

	require.NoError(t, NewPartService(f.db, storage).DeletePart(ctx, f.order.ID, f.partB.ID))

	var parts int64
	require.NoError(t, f.db.Model(&models.OrderPart{}).Where("id = ?", f.partB.ID).Count(&parts).Error)
	assert.Zero(t, parts)

	var charges int64
	require.NoError(t, f.db.Model(&models.OrderCharge{}).Where("part_id = ?", f.partB.ID).Count(&charges).Error)
	assert.Zero(t, charges)

	var rows []models.OrderChecklist
	require.NoError(t, f.db.Where("part_id = ?", f.partB.ID).Find(&rows).Error)
	require.Len(t, rows, 2, "checklist rows are retired, not deleted")
	for _, r := range rows {
		assert.False(t, r.IsActive)
	}

	assert.False(t, storage.FileExists(key))
	requireOneToOne(t, f.db, f.order.ID)
}

func TestPartService_DeleteLastPartIsRefused(t *testing.T) {
	f := newShopFixture(t)
	ctx := context.Background()
	svc := NewPartService(f.db, nil)

	require.NoError(t, svc.DeletePart(ctx, f.order.ID, f.partB.ID))

	err := svc.DeletePart(ctx, f.order.ID, f.partA.ID)
	requireKind(t, err, KindConflict)

	err = svc.DeletePart(ctx, f.order.ID, "missing")
	requireKind(t, err, KindNotFound)
}

func TestPartService_ListParts(t *testing.T) {
	f := newShopFixture(t)

	parts, err := NewPartService(f.db, nil).ListParts(context.Background(), f.order.ID)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].CurrentDepartment)
	assert.Equal(t, "Cutting", parts[0].CurrentDepartment.Name)

	_, err = NewPartService(f.db, nil).ListParts(context.Background(), "missing")
	requireKind(t, err, KindNotFound)
}
