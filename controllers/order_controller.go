package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/shopfloor-api/config"
	"github.com/kendall-kelly/shopfloor-api/services"
	"github.com/shopspring/decimal"
)

// OrderPartRequest is one part in an order creation request
type OrderPartRequest struct {
	PartNumber string `json:"part_number" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,gt=0"`
	Material   string `json:"material"`
}

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	Code         string             `json:"code"`
	CustomerName string             `json:"customer_name" binding:"required"`
	DueDate      *time.Time         `json:"due_date"`
	Priority     string             `json:"priority" binding:"omitempty,oneof=LOW NORMAL RUSH HOT"`
	Notes        string             `json:"notes"`
	Parts        []OrderPartRequest `json:"parts" binding:"required,min=1,dive"`
}

// QuoteSelectionRequest selects an add-on for the part at part_index (omit for order-level)
type QuoteSelectionRequest struct {
	PartIndex *int             `json:"part_index"`
	AddonID   string           `json:"addon_id" binding:"required"`
	Quantity  *decimal.Decimal `json:"quantity"`
}

// ConvertQuoteRequest represents an accepted quote to convert into an order
type ConvertQuoteRequest struct {
	QuoteID      string                  `json:"quote_id" binding:"required"`
	Code         string                  `json:"code"`
	CustomerName string                  `json:"customer_name" binding:"required"`
	DueDate      *time.Time              `json:"due_date"`
	Priority     string                  `json:"priority" binding:"omitempty,oneof=LOW NORMAL RUSH HOT"`
	Parts        []OrderPartRequest      `json:"parts" binding:"required,min=1,dive"`
	Selections   []QuoteSelectionRequest `json:"selections" binding:"dive"`
}

// ListOrdersQuery holds the filters of GET /orders
type ListOrdersQuery struct {
	Status       string `form:"status"`
	DepartmentID string `form:"department_id"`
	Search       string `form:"q"`
	Page         int    `form:"page" binding:"omitempty,gte=1"`
	PageSize     int    `form:"page_size" binding:"omitempty,gte=1"`
}

// CreateOrder handles POST /api/v1/orders
func CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	in := services.CreateOrderInput{
		Code:         req.Code,
		CustomerName: req.CustomerName,
		DueDate:      req.DueDate,
		Priority:     req.Priority,
		Notes:        req.Notes,
	}
	for _, p := range req.Parts {
		in.Parts = append(in.Parts, services.CreateOrderPart{
			PartNumber: p.PartNumber,
			Quantity:   p.Quantity,
			Material:   p.Material,
		})
	}

	order, err := services.NewOrderService(config.GetDB()).CreateOrder(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, order)
}

// ConvertQuote handles POST /api/v1/orders/from-quote
func ConvertQuote(c *gin.Context) {
	var req ConvertQuoteRequest
	if !bindJSON(c, &req) {
		return
	}

	in := services.ConvertQuoteInput{
		QuoteID:      req.QuoteID,
		Code:         req.Code,
		CustomerName: req.CustomerName,
		DueDate:      req.DueDate,
		Priority:     req.Priority,
	}
	for _, p := range req.Parts {
		in.Parts = append(in.Parts, services.ConvertQuotePart{
			PartNumber: p.PartNumber,
			Quantity:   p.Quantity,
			Material:   p.Material,
		})
	}
	for _, s := range req.Selections {
		sel := services.ConvertQuoteSelection{PartIndex: s.PartIndex, AddonID: s.AddonID}
		if s.Quantity != nil {
			sel.Quantity = *s.Quantity
		}
		in.Selections = append(in.Selections, sel)
	}

	db := config.GetDB()
	order, err := services.NewQuoteConverter(db).ConvertQuoteToOrder(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	view, err := services.NewOrderService(db).GetOrder(c.Request.Context(), order.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, view)
}

// ListOrders handles GET /api/v1/orders
func ListOrders(c *gin.Context) {
	var query ListOrdersQuery
	if !bindQuery(c, &query) {
		return
	}

	page, err := services.NewOrderService(config.GetDB()).ListOrders(c.Request.Context(), services.OrderFilter{
		Status:       query.Status,
		DepartmentID: query.DepartmentID,
		Search:       query.Search,
		Page:         query.Page,
		PageSize:     query.PageSize,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, page)
}

// GetOrder handles GET /api/v1/orders/:id
func GetOrder(c *gin.Context) {
	view, err := services.NewOrderService(config.GetDB()).GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, view)
}

// CloseOrder handles POST /api/v1/orders/:id/close
func CloseOrder(c *gin.Context) {
	order, err := services.NewOrderService(config.GetDB()).CloseOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

// GetOrderTime handles GET /api/v1/orders/:id/time
func GetOrderTime(c *gin.Context) {
	summary, err := services.NewTimeLedger(config.GetDB()).SummarizeOrderTime(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, summary)
}
