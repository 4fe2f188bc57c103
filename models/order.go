package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Order pipeline stages
const (
	OrderStatusReceived     = "RECEIVED"
	OrderStatusProgramming  = "PROGRAMMING"
	OrderStatusInProduction = "IN_PRODUCTION"
	OrderStatusQualityCheck = "QUALITY_CHECK"
	OrderStatusShipped      = "SHIPPED"
	OrderStatusClosed       = "CLOSED"
)

// Order priorities
const (
	PriorityLow    = "LOW"
	PriorityNormal = "NORMAL"
	PriorityRush   = "RUSH"
	PriorityHot    = "HOT"
)

// Order represents a unit of work for a customer
type Order struct {
	ID           string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Code         string      `gorm:"uniqueIndex;not null" json:"code"`
	CustomerName string      `gorm:"not null" json:"customer_name"`
	DueDate      *time.Time  `json:"due_date"`
	Priority     string      `gorm:"not null;default:'NORMAL'" json:"priority"`
	Status       string      `gorm:"not null;default:'RECEIVED';index" json:"status"`
	QuoteID      *string     `gorm:"index" json:"quote_id,omitempty"` // set when converted from a quote
	Notes        string      `gorm:"type:text" json:"notes"`
	Parts        []OrderPart `gorm:"foreignKey:OrderID" json:"parts,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	assignID(&o.ID)
	if o.Code == "" {
		o.Code = fmt.Sprintf("ORD-%s", strings.ToUpper(newID()[:8]))
	}
	return nil
}

// IsClosed reports whether the order has left the pipeline
func (o *Order) IsClosed() bool {
	return o.Status == OrderStatusClosed
}

// IsValidOrderStatus reports whether status is a known pipeline stage
func IsValidOrderStatus(status string) bool {
	switch status {
	case OrderStatusReceived, OrderStatusProgramming, OrderStatusInProduction,
		OrderStatusQualityCheck, OrderStatusShipped, OrderStatusClosed:
		return true
	}
	return false
}

// IsValidPriority reports whether priority is a known order priority
func IsValidPriority(priority string) bool {
	switch priority {
	case PriorityLow, PriorityNormal, PriorityRush, PriorityHot:
		return true
	}
	return false
}
