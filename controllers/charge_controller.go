package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/shopfloor-api/config"
	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/kendall-kelly/shopfloor-api/services"
	"github.com/shopspring/decimal"
)

// CreateChargeRequest represents the request body for adding a charge
type CreateChargeRequest struct {
	PartID       *string          `json:"part_id"`
	Kind         string           `json:"kind" binding:"required,oneof=LABOR ADDON MATERIAL FEE SHIPPING DISCOUNT"`
	DepartmentID *string          `json:"department_id"`
	AddonID      *string          `json:"addon_id"`
	Description  string           `json:"description"`
	Quantity     *decimal.Decimal `json:"quantity"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	SortOrder    int              `json:"sort_order"`
}

// UpdateChargeRequest is a partial charge update. An empty string clears a reference.
// Completed toggles the charge's completion stamp.
type UpdateChargeRequest struct {
	PartID       *string          `json:"part_id"`
	Kind         *string          `json:"kind" binding:"omitempty,oneof=LABOR ADDON MATERIAL FEE SHIPPING DISCOUNT"`
	DepartmentID *string          `json:"department_id"`
	AddonID      *string          `json:"addon_id"`
	Description  *string          `json:"description"`
	Quantity     *decimal.Decimal `json:"quantity"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	SortOrder    *int             `json:"sort_order"`
	Completed    *bool            `json:"completed"`
}

func (r UpdateChargeRequest) hasFieldChanges() bool {
	return r.PartID != nil || r.Kind != nil || r.DepartmentID != nil || r.AddonID != nil ||
		r.Description != nil || r.Quantity != nil || r.UnitPrice != nil || r.SortOrder != nil
}

// ListCharges handles GET /api/v1/orders/:id/charges
func ListCharges(c *gin.Context) {
	charges, err := services.NewChargeService(config.GetDB()).ListCharges(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, charges)
}

// CreateCharge handles POST /api/v1/orders/:id/charges
func CreateCharge(c *gin.Context) {
	var req CreateChargeRequest
	if !bindJSON(c, &req) {
		return
	}

	in := services.ChargeInput{
		PartID:       req.PartID,
		Kind:         models.ChargeKind(req.Kind),
		DepartmentID: req.DepartmentID,
		AddonID:      req.AddonID,
		Description:  req.Description,
		Quantity:     decimal.NewFromInt(1),
		SortOrder:    req.SortOrder,
	}
	if req.Quantity != nil {
		in.Quantity = *req.Quantity
	}
	if req.UnitPrice != nil {
		in.UnitPrice = *req.UnitPrice
	}

	charge, err := services.NewChargeService(config.GetDB()).CreateCharge(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, charge)
}

// UpdateCharge handles PATCH /api/v1/orders/:id/charges/:chargeId
func UpdateCharge(c *gin.Context) {
	var req UpdateChargeRequest
	if !bindJSON(c, &req) {
		return
	}

	svc := services.NewChargeService(config.GetDB())
	ctx := c.Request.Context()
	orderID, chargeID := c.Param("id"), c.Param("chargeId")

	var charge *models.OrderCharge
	var err error
	if req.hasFieldChanges() || req.Completed == nil {
		update := services.ChargeUpdate{
			PartID:          req.PartID,
			ClearPart:       req.PartID != nil && *req.PartID == "",
			DepartmentID:    req.DepartmentID,
			ClearDepartment: req.DepartmentID != nil && *req.DepartmentID == "",
			AddonID:         req.AddonID,
			ClearAddon:      req.AddonID != nil && *req.AddonID == "",
			Description:     req.Description,
			Quantity:        req.Quantity,
			UnitPrice:       req.UnitPrice,
			SortOrder:       req.SortOrder,
		}
		if req.Kind != nil {
			kind := models.ChargeKind(*req.Kind)
			update.Kind = &kind
		}
		if charge, err = svc.UpdateCharge(ctx, orderID, chargeID, update); err != nil {
			respondServiceError(c, err)
			return
		}
	}
	if req.Completed != nil {
		if charge, err = svc.SetChargeCompleted(ctx, orderID, chargeID, *req.Completed); err != nil {
			respondServiceError(c, err)
			return
		}
	}
	respondData(c, http.StatusOK, charge)
}

// DeleteCharge handles DELETE /api/v1/orders/:id/charges/:chargeId
func DeleteCharge(c *gin.Context) {
	if err := services.NewChargeService(config.GetDB()).DeleteCharge(c.Request.Context(), c.Param("id"), c.Param("chargeId")); err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"deleted": true})
}
