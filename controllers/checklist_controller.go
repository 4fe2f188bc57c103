package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/shopfloor-api/config"
	"github.com/kendall-kelly/shopfloor-api/services"
)

// ManualChecklistRequest adds a checklist-only item
type ManualChecklistRequest struct {
	PartID       *string `json:"part_id"`
	DepartmentID *string `json:"department_id"`
	Label        string  `json:"label" binding:"required"`
}

// ToggleChecklistRequest sets an item's completion
type ToggleChecklistRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

// ListChecklist handles GET /api/v1/orders/:id/checklist
func ListChecklist(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"

	rows, err := services.NewChecklistService(config.GetDB()).ListChecklist(c.Request.Context(), c.Param("id"), includeInactive)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, rows)
}

// AddChecklistItem handles POST /api/v1/orders/:id/checklist
func AddChecklistItem(c *gin.Context) {
	var req ManualChecklistRequest
	if !bindJSON(c, &req) {
		return
	}

	row, err := services.NewChecklistService(config.GetDB()).AddManualItem(c.Request.Context(), c.Param("id"), services.ManualItemInput{
		PartID:       req.PartID,
		DepartmentID: req.DepartmentID,
		Label:        req.Label,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, row)
}

// ToggleChecklistItem handles PATCH /api/v1/orders/:id/checklist/:itemId
func ToggleChecklistItem(c *gin.Context) {
	var req ToggleChecklistRequest
	if !bindJSON(c, &req) {
		return
	}

	row, err := services.NewChecklistService(config.GetDB()).SetItemCompleted(c.Request.Context(), c.Param("id"), c.Param("itemId"), *req.Completed)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, row)
}

// SyncChecklist handles POST /api/v1/orders/:id/checklist/sync
func SyncChecklist(c *gin.Context) {
	result, err := services.SyncChecklistForOrder(c.Request.Context(), config.GetDB(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}
