package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateOrderPart is a part created together with its order
type CreateOrderPart struct {
	PartNumber string
	Quantity   int
	Material   string
}

// CreateOrderInput holds the fields of an order created directly, not from a quote
type CreateOrderInput struct {
	Code         string
	CustomerName string
	DueDate      *time.Time
	Priority     string
	Notes        string
	Parts        []CreateOrderPart
}

// OrderFilter narrows ListOrders. DepartmentID matches orders with a part queued in that department.
type OrderFilter struct {
	Status       string
	DepartmentID string
	Search       string
	Page         int
	PageSize     int
}

// PendingDepartment is a department that still has open checklist work on the order
type PendingDepartment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	OpenItems int    `json:"open_items"`
}

// OrderView is an order decorated with its parts, charges and outstanding department work
type OrderView struct {
	models.Order
	Charges            []models.OrderCharge `json:"charges"`
	PendingDepartments []PendingDepartment  `json:"pending_departments"`
	ChargeTotal        decimal.Decimal      `json:"charge_total"`
	CompletedParts     int                  `json:"completed_parts"`
}

// OrderPage is one page of decorated orders
type OrderPage struct {
	Orders   []OrderView `json:"orders"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// OrderService creates, reads and closes orders
type OrderService struct {
	db *gorm.DB
}

// NewOrderService creates an order service
func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// CreateOrder creates an order and its initial parts
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	fields := FieldErrors{}
	fields.Required("customer_name", in.CustomerName)
	if in.Priority != "" && !models.IsValidPriority(in.Priority) {
		fields.Add("priority", "must be one of LOW, NORMAL, RUSH, HOT")
	}
	if len(in.Parts) == 0 {
		fields.Add("parts", "must contain at least one part")
	}
	for i, p := range in.Parts {
		fields.Required(fmt.Sprintf("parts[%d].part_number", i), p.PartNumber)
		if p.Quantity <= 0 {
			fields.Add(fmt.Sprintf("parts[%d].quantity", i), "must be greater than 0")
		}
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	order := models.Order{
		Code:         strings.TrimSpace(in.Code),
		CustomerName: strings.TrimSpace(in.CustomerName),
		DueDate:      in.DueDate,
		Priority:     in.Priority,
		Status:       models.OrderStatusReceived,
		Notes:        in.Notes,
	}
	if order.Priority == "" {
		order.Priority = models.PriorityNormal
	}
	for _, p := range in.Parts {
		order.Parts = append(order.Parts, models.OrderPart{
			PartNumber: strings.TrimSpace(p.PartNumber),
			Quantity:   p.Quantity,
			Material:   strings.TrimSpace(p.Material),
		})
	}

	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, Conflict("order code %s is already in use", order.Code)
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return &order, nil
}

// GetOrder returns the decorated order
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*OrderView, error) {
	db := s.db.WithContext(ctx)

	var order models.Order
	if err := db.First(&order, "id = ?", orderID).Error; err != nil {
		return nil, notFoundOr(err, "order", orderID)
	}

	return DecorateOrder(db, order)
}

// ListOrders returns a page of decorated orders, most urgent due date first
func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) (*OrderPage, error) {
	fields := FieldErrors{}
	if filter.Status != "" && !models.IsValidOrderStatus(filter.Status) {
		fields.Add("status", "is not a valid order status")
	}
	if filter.Page < 0 {
		fields.Add("page", "must not be negative")
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	page := filter.Page
	if page == 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	db := s.db.WithContext(ctx)
	query := db.Model(&models.Order{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.DepartmentID != "" {
		query = query.Where("id IN (?)", db.Model(&models.OrderPart{}).
			Select("order_id").
			Where("current_department_id = ?", filter.DepartmentID))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(code) LIKE ? OR LOWER(customer_name) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	if err := query.
		Order("due_date IS NULL, due_date ASC, created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	views, err := DecorateOrders(db, orders)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Orders: views, Total: total, Page: page, PageSize: pageSize}, nil
}

// CloseOrder moves the order to CLOSED. Closing twice is a conflict.
func (s *OrderService) CloseOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			return notFoundOr(err, "order", orderID)
		}
		if order.IsClosed() {
			return Conflict("order %s is already closed", order.Code)
		}
		if err := tx.Model(&order).Update("status", models.OrderStatusClosed).Error; err != nil {
			return fmt.Errorf("failed to close order: %w", err)
		}
		order.Status = models.OrderStatusClosed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// DecorateOrder attaches parts, charges, totals and pending departments to one order
func DecorateOrder(db *gorm.DB, order models.Order) (*OrderView, error) {
	views, err := DecorateOrders(db, []models.Order{order})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// DecorateOrders decorates a batch of orders with one query per related table
func DecorateOrders(db *gorm.DB, orders []models.Order) ([]OrderView, error) {
	views := make([]OrderView, len(orders))
	if len(orders) == 0 {
		return views, nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		views[i] = OrderView{
			Order:              o,
			Charges:            []models.OrderCharge{},
			PendingDepartments: []PendingDepartment{},
			ChargeTotal:        decimal.Zero,
		}
		views[i].Parts = []models.OrderPart{}
	}

	var parts []models.OrderPart
	if err := db.Preload("CurrentDepartment").
		Where("order_id IN ?", ids).
		Order("created_at ASC, id ASC").
		Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("failed to load parts: %w", err)
	}
	for _, p := range parts {
		v := &views[index[p.OrderID]]
		v.Parts = append(v.Parts, p)
		if p.CompletedAt != nil {
			v.CompletedParts++
		}
	}

	var charges []models.OrderCharge
	if err := db.Where("order_id IN ?", ids).
		Order("sort_order ASC, created_at ASC, id ASC").
		Find(&charges).Error; err != nil {
		return nil, fmt.Errorf("failed to load charges: %w", err)
	}
	for _, c := range charges {
		v := &views[index[c.OrderID]]
		v.Charges = append(v.Charges, c)
	}
	for i := range views {
		views[i].ChargeTotal = models.SumCharges(views[i].Charges)
	}

	var open []models.OrderChecklist
	if err := db.Preload("Department").
		Where("order_id IN ? AND is_active = ? AND completed = ? AND department_id IS NOT NULL", ids, true, false).
		Find(&open).Error; err != nil {
		return nil, fmt.Errorf("failed to load checklist: %w", err)
	}
	pending := make(map[string]map[string]*PendingDepartment, len(orders))
	for _, row := range open {
		if row.Department == nil {
			continue
		}
		byDept, ok := pending[row.OrderID]
		if !ok {
			byDept = map[string]*PendingDepartment{}
			pending[row.OrderID] = byDept
		}
		pd, ok := byDept[row.Department.ID]
		if !ok {
			pd = &PendingDepartment{ID: row.Department.ID, Name: row.Department.Name, SortOrder: row.Department.SortOrder}
			byDept[row.Department.ID] = pd
		}
		pd.OpenItems++
	}
	for orderID, byDept := range pending {
		v := &views[index[orderID]]
		for _, pd := range byDept {
			v.PendingDepartments = append(v.PendingDepartments, *pd)
		}
		sort.Slice(v.PendingDepartments, func(a, b int) bool {
			pa, pb := v.PendingDepartments[a], v.PendingDepartments[b]
			if pa.SortOrder != pb.SortOrder {
				return pa.SortOrder < pb.SortOrder
			}
			return pa.Name < pb.Name
		})
	}

	return views, nil
}
