package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/shopfloor-api/config"
	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/kendall-kelly/shopfloor-api/services"
)

// AddPartRequest represents the request body for adding a part to an order
type AddPartRequest struct {
	PartNumber            string  `json:"part_number" binding:"required"`
	Quantity              int     `json:"quantity" binding:"required,gt=0"`
	Material              string  `json:"material"`
	CopyChargesFromPartID *string `json:"copy_charges_from_part_id"`
}

// AssignDepartmentRequest places a part in a department queue
type AssignDepartmentRequest struct {
	DepartmentID string `json:"department_id" binding:"required"`
}

// TransitionRequest moves parts between departments
type TransitionRequest struct {
	FromDepartmentID string   `json:"from_department_id" binding:"required"`
	ToDepartmentID   string   `json:"to_department_id" binding:"required"`
	PartIDs          []string `json:"part_ids" binding:"required,min=1"`
}

// NoteRequest adds a free-text note to a part's event log
type NoteRequest struct {
	Message string `json:"message" binding:"required"`
}

// AddPart handles POST /api/v1/orders/:id/parts
func AddPart(c *gin.Context) {
	var req AddPartRequest
	if !bindJSON(c, &req) {
		return
	}

	part, err := services.NewPartService(config.GetDB(), services.GetS3Service()).AddPart(c.Request.Context(), services.AddPartInput{
		OrderID:               c.Param("id"),
		PartNumber:            req.PartNumber,
		Quantity:              req.Quantity,
		Material:              req.Material,
		CopyChargesFromPartID: req.CopyChargesFromPartID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, part)
}

// DeletePart handles DELETE /api/v1/orders/:id/parts/:partId
func DeletePart(c *gin.Context) {
	err := services.NewPartService(config.GetDB(), services.GetS3Service()).DeletePart(c.Request.Context(), c.Param("id"), c.Param("partId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"deleted": true})
}

// AssignPartDepartment handles POST /api/v1/orders/:id/parts/:partId/department
func AssignPartDepartment(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req AssignDepartmentRequest
	if !bindJSON(c, &req) {
		return
	}

	part, err := services.NewTransitionService(config.GetDB()).AssignPartDepartment(c.Request.Context(), services.AssignInput{
		OrderID:      c.Param("id"),
		PartID:       c.Param("partId"),
		DepartmentID: req.DepartmentID,
		EmployeeName: user.Name,
		TogglerID:    userIDPtr(user),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, part)
}

// TransitionParts handles POST /api/v1/orders/:id/transitions
func TransitionParts(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req TransitionRequest
	if !bindJSON(c, &req) {
		return
	}

	parts, err := services.NewTransitionService(config.GetDB()).TransitionPartsDepartment(c.Request.Context(), services.TransitionInput{
		OrderID:          c.Param("id"),
		FromDepartmentID: req.FromDepartmentID,
		ToDepartmentID:   req.ToDepartmentID,
		PartIDs:          req.PartIDs,
		EmployeeName:     user.Name,
		TogglerID:        userIDPtr(user),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, parts)
}

// CompletePart handles POST /api/v1/orders/:id/parts/:partId/complete
func CompletePart(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	part, err := services.NewEventLog(config.GetDB()).CompleteOrderPart(c.Request.Context(), services.CompletePartInput{
		OrderID: c.Param("id"),
		PartID:  c.Param("partId"),
		UserID:  user.ID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, part)
}

// ListPartEvents handles GET /api/v1/orders/:id/parts/:partId/events
func ListPartEvents(c *gin.Context) {
	events, err := services.NewEventLog(config.GetDB()).ListPartEvents(c.Request.Context(), c.Param("id"), c.Param("partId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, events)
}

// AddPartNote handles POST /api/v1/orders/:id/parts/:partId/events
func AddPartNote(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req NoteRequest
	if !bindJSON(c, &req) {
		return
	}

	db := config.GetDB()
	ctx := c.Request.Context()
	orderID, partID := c.Param("id"), c.Param("partId")

	var part models.OrderPart
	if err := db.WithContext(ctx).Where("id = ? AND order_id = ?", partID, orderID).First(&part).Error; err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "part "+partID+" on order "+orderID+" not found")
		return
	}

	event, err := services.NewEventLog(db).LogPartEvent(ctx, services.LogEventInput{
		OrderID: orderID,
		PartID:  partID,
		UserID:  userIDPtr(user),
		Type:    models.EventNote,
		Message: req.Message,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, event)
}
