package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusRefunded       OrderStatus = "refunded"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped,
	OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded,
}

// OrderStatuses returns the full enumerated set in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

func (s OrderStatus) Valid() bool {
	for _, v := range orderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal statuses end the order lifecycle.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

type Order struct {
	ID                 int64           `json:"id"`
	DisplayID          string          `json:"display_id"`
	ShopID             int64           `json:"shop_id"`
	UserID             int64           `json:"user_id"`
	Status             OrderStatus     `json:"order_status"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
	PaymentMethod      string          `json:"payment_method"`
	TotalPrice         decimal.Decimal `json:"total_price"`
	DeliveryAddress    string          `json:"delivery_address_snapshot"`
	AssignedTo         *int64          `json:"assigned_to,omitempty"`
	ActualDeliveryTime *time.Time      `json:"actual_delivery_time,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	CustomerEmail string      `json:"customer_email,omitempty"` // filled when LoadOptions.Customer is set
	Items         []OrderItem `json:"items,omitempty"`           // filled when LoadOptions.Items is set
}

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// LineTotal is quantity times the unit price captured at order time.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Position is a place in the (created_at DESC, id DESC) order.
type Position struct {
	CreatedAt time.Time
	ID        int64
}

// Before reports whether p sorts strictly after q in descending order,
// i.e. (p.CreatedAt, p.ID) < (q.CreatedAt, q.ID).
func (p Position) Before(q Position) bool {
	if p.CreatedAt.Equal(q.CreatedAt) {
		return p.ID < q.ID
	}
	return p.CreatedAt.Before(q.CreatedAt)
}

func (o Order) Position() Position {
	return Position{CreatedAt: o.CreatedAt, ID: o.ID}
}

// OrderFilter narrows a query. ShopID or UserID must be set.
type OrderFilter struct {
	ShopID        int64
	UserID        int64
	Statuses      []OrderStatus
	PaymentStatus PaymentStatus
	CreatedFrom   *time.Time // inclusive
	CreatedTo     *time.Time // exclusive
	AssignedTo    *int64
}

func (f OrderFilter) Scoped() bool {
	return f.ShopID > 0 || f.UserID > 0
}

// LoadOptions shapes what comes back with each order.
type LoadOptions struct {
	Items    bool
	Customer bool
}

var LoadDetails = LoadOptions{Items: true, Customer: true}

// StatusUpdate is one order status write.
type StatusUpdate struct {
	Status      OrderStatus
	AssignedTo  *int64
	DeliveredAt *time.Time
}

// StatusChange describes an applied status write for audit and notification consumers.
type StatusChange struct {
	OrderID int64       `json:"order_id"`
	ShopID  int64       `json:"shop_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
	At      time.Time   `json:"at"`
}
