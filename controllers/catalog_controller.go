package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/shopfloor-api/config"
	"github.com/kendall-kelly/shopfloor-api/services"
	"github.com/shopspring/decimal"
)

// CreateDepartmentRequest represents the request body for creating a department
type CreateDepartmentRequest struct {
	Name      string `json:"name" binding:"required"`
	SortOrder int    `json:"sort_order" binding:"gte=0"`
}

// CreateAddonRequest represents the request body for creating an add-on
type CreateAddonRequest struct {
	Name            string           `json:"name" binding:"required"`
	DepartmentID    *string          `json:"department_id"`
	IsChecklistItem bool             `json:"is_checklist_item"`
	UnitPrice       *decimal.Decimal `json:"unit_price"`
}

// ListDepartments handles GET /api/v1/departments
func ListDepartments(c *gin.Context) {
	depts, err := services.NewCatalogService(config.GetDB()).ListDepartments(c.Request.Context(), c.Query("include_inactive") == "true")
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, depts)
}

// CreateDepartment handles POST /api/v1/departments (managers only)
func CreateDepartment(c *gin.Context) {
	var req CreateDepartmentRequest
	if !bindJSON(c, &req) {
		return
	}

	dept, err := services.NewCatalogService(config.GetDB()).CreateDepartment(c.Request.Context(), services.DepartmentInput{
		Name:      req.Name,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, dept)
}

// ListAddons handles GET /api/v1/addons
func ListAddons(c *gin.Context) {
	addons, err := services.NewCatalogService(config.GetDB()).ListAddons(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, addons)
}

// CreateAddon handles POST /api/v1/addons (managers only)
func CreateAddon(c *gin.Context) {
	var req CreateAddonRequest
	if !bindJSON(c, &req) {
		return
	}

	in := services.AddonInput{
		Name:            req.Name,
		DepartmentID:    req.DepartmentID,
		IsChecklistItem: req.IsChecklistItem,
	}
	if req.UnitPrice != nil {
		in.UnitPrice = *req.UnitPrice
	}

	addon, err := services.NewCatalogService(config.GetDB()).CreateAddon(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, addon)
}
