package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus mirrors the server-side order lifecycle.
type OrderStatus string

// Order statuses the terminal distinguishes.
const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusApproving  OrderStatus = "APPROVING"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusReady      OrderStatus = "READY"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
)

// Settled reports whether the payment went through, i.e. PAID or any kitchen status after it.
func (s OrderStatus) Settled() bool {
	switch s {
	case OrderStatusPaid, OrderStatusInProgress, OrderStatusReady, OrderStatusDelivered:
		return true
	}
	return false
}

// OrderItem is one priced cart line.
type OrderItem struct {
	ItemID int64           `json:"itemId"`
	Name   string          `json:"name"`
	Amount int             `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

// Order is the cart of a session. It is read-only once placed.
type Order struct {
	ID         int64           `json:"id"`
	Items      []OrderItem     `json:"items"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     OrderStatus     `json:"status"`
	PlacedAt   *time.Time      `json:"placedAt,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Placed reports whether checkout has started. Nil-safe.
func (o *Order) Placed() bool {
	return o != nil && o.PlacedAt != nil
}

// Session is the customer session as reported by the server.
type Session struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"createdAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
	ExpiresInSeconds int       `json:"expiresInSeconds"`
	Expired          bool      `json:"expired"`
	Order            *Order    `json:"order,omitempty"`
}

// Checkout reports whether the session is in checkout. Nil-safe.
func (s *Session) Checkout() bool {
	return s != nil && s.Order.Placed()
}

// Items returns the cart as store-order input lines.
func (s *Session) Items() []ItemInput {
	if s == nil || s.Order == nil {
		return nil
	}
	out := make([]ItemInput, 0, len(s.Order.Items))
	for _, item := range s.Order.Items {
		out = append(out, ItemInput{ItemID: item.ItemID, Amount: item.Amount})
	}
	return out
}

// ItemInput is a requested cart line.
type ItemInput struct {
	ItemID int64 `json:"itemId"`
	Amount int   `json:"amount"`
}

// CatalogItem is an orderable menu entry.
type CatalogItem struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

// PaymentQR is a scannable payment reference.
type PaymentQR struct {
	Provider  string `json:"provider"`
	Reference string `json:"reference"`
	Payload   string `json:"payload"`
	Amount    string `json:"amount"`
	QRPNG     string `json:"qrPng"`
}
