package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/shopfloor-api/config"
	"github.com/kendall-kelly/shopfloor-api/services"
)

// StartTimerRequest starts a timer on an order, optionally on one of its parts.
// Force switches away from a running timer instead of failing with 409.
type StartTimerRequest struct {
	OrderID   string  `json:"order_id" binding:"required"`
	PartID    *string `json:"part_id"`
	Operation string  `json:"operation" binding:"required"`
	Force     bool    `json:"force"`
}

// ResumeTimerRequest names the closed entry to resume
type ResumeTimerRequest struct {
	EntryID string `json:"entry_id" binding:"required"`
}

// GetActiveTimer handles GET /api/v1/timers/active; data is null when the user is idle
func GetActiveTimer(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	entry, err := services.NewTimeLedger(config.GetDB()).GetActiveTimeEntry(c.Request.Context(), user.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, entry)
}

// StartTimer handles POST /api/v1/timers/start
func StartTimer(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req StartTimerRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := services.NewTimerActions(config.GetDB()).Start(c.Request.Context(), user.ID, services.StartInput{
		OrderID:   req.OrderID,
		PartID:    req.PartID,
		Operation: req.Operation,
	}, req.Force)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, entry)
}

// PauseTimer handles POST /api/v1/timers/pause
func PauseTimer(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	entry, err := services.NewTimerActions(config.GetDB()).Pause(c.Request.Context(), user.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, entry)
}

// StopTimer handles POST /api/v1/timers/stop
func StopTimer(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	entry, err := services.NewTimerActions(config.GetDB()).Stop(c.Request.Context(), user.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, entry)
}

// FinishTimer handles POST /api/v1/timers/finish
func FinishTimer(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	result, err := services.NewTimerActions(config.GetDB()).Finish(c.Request.Context(), user.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

// ResumeTimer handles POST /api/v1/timers/resume
func ResumeTimer(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req ResumeTimerRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := services.NewTimerActions(config.GetDB()).Resume(c.Request.Context(), user.ID, services.ResumeInput{EntryID: req.EntryID})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, entry)
}
