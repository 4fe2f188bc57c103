package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/shopfloor-api/middleware"
	"github.com/kendall-kelly/shopfloor-api/models"
)

// RegisterRoutes mounts the authenticated API on v1. auth validates the caller and sets user_id.
func RegisterRoutes(v1 *gin.RouterGroup, auth gin.HandlerFunc) {
	operator := middleware.RequireRole(models.RoleMachinist, models.RoleManager)
	manager := middleware.RequireRole(models.RoleManager)

	api := v1.Group("", auth)

	users := api.Group("/users")
	{
		users.POST("", CreateUser)
		users.GET("/me", GetMyProfile)
		users.PUT("/me", UpdateMyProfile)
	}

	api.GET("/departments", ListDepartments)
	api.POST("/departments", manager, CreateDepartment)
	api.GET("/addons", ListAddons)
	api.POST("/addons", manager, CreateAddon)

	orders := api.Group("/orders")
	{
		orders.GET("", ListOrders)
		orders.POST("", operator, CreateOrder)
		orders.POST("/from-quote", operator, ConvertQuote)
		orders.GET("/:id", GetOrder)
		orders.POST("/:id/close", manager, CloseOrder)
		orders.GET("/:id/time", GetOrderTime)

		orders.POST("/:id/parts", operator, AddPart)
		orders.DELETE("/:id/parts/:partId", operator, DeletePart)
		orders.POST("/:id/parts/:partId/department", operator, AssignPartDepartment)
		orders.POST("/:id/parts/:partId/complete", operator, CompletePart)
		orders.GET("/:id/parts/:partId/events", ListPartEvents)
		orders.POST("/:id/parts/:partId/events", operator, AddPartNote)
		orders.GET("/:id/parts/:partId/attachments", ListAttachments)
		orders.POST("/:id/parts/:partId/attachments", operator, UploadAttachment)
		orders.DELETE("/:id/parts/:partId/attachments/:attachmentId", operator, DeleteAttachment)
		orders.POST("/:id/transitions", operator, TransitionParts)

		orders.GET("/:id/charges", ListCharges)
		orders.POST("/:id/charges", operator, CreateCharge)
		orders.PATCH("/:id/charges/:chargeId", operator, UpdateCharge)
		orders.DELETE("/:id/charges/:chargeId", operator, DeleteCharge)

		orders.GET("/:id/checklist", ListChecklist)
		orders.POST("/:id/checklist", operator, AddChecklistItem)
		orders.PATCH("/:id/checklist/:itemId", operator, ToggleChecklistItem)
		orders.POST("/:id/checklist/sync", operator, SyncChecklist)
	}

	timers := api.Group("/timers")
	{
		timers.GET("/active", GetActiveTimer)
		timers.POST("/start", operator, StartTimer)
		timers.POST("/pause", operator, PauseTimer)
		timers.POST("/stop", operator, StopTimer)
		timers.POST("/finish", operator, FinishTimer)
		timers.POST("/resume", operator, ResumeTimer)
	}
}
