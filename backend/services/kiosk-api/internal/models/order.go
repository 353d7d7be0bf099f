package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the server-side order lifecycle.
type OrderStatus string

// Order statuses in lifecycle order.
const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusApproving  OrderStatus = "APPROVING"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusReady      OrderStatus = "READY"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
)

var statusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusApproving:  1,
	OrderStatusPaid:       2,
	OrderStatusInProgress: 3,
	OrderStatusReady:      4,
	OrderStatusDelivered:  5,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank orders statuses along the lifecycle; unknown statuses rank -1.
func (s OrderStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// After reports whether s is strictly later in the lifecycle than other.
func (s OrderStatus) After(other OrderStatus) bool {
	return s.Valid() && s.Rank() > other.Rank()
}

// Next returns the kitchen follow-up status. Only paid orders move on the board.
func (s OrderStatus) Next() (OrderStatus, bool) {
	switch s {
	case OrderStatusPaid:
		return OrderStatusInProgress, true
	case OrderStatusInProgress:
		return OrderStatusReady, true
	case OrderStatusReady:
		return OrderStatusDelivered, true
	default:
		return "", false
	}
}

func (s OrderStatus) String() string {
	return string(s)
}

// OrderItem is one priced cart line.
type OrderItem struct {
	ItemID int64           `json:"itemId"`
	Name   string          `json:"name"`
	Amount int             `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

// Order is the priced cart held inside a customer session and, once placed, persisted.
type Order struct {
	ID         int64           `json:"id"`
	TerminalID string          `json:"-"`
	SessionID  string          `json:"-"`
	Items      []OrderItem     `json:"items"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     OrderStatus     `json:"status"`
	PlacedAt   *time.Time      `json:"placedAt,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Placed reports whether checkout has started for the order.
func (o *Order) Placed() bool {
	return o != nil && o.PlacedAt != nil
}

// Recalculate sets TotalPrice from the item prices.
func (o *Order) Recalculate() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Price)
	}
	o.TotalPrice = total
}

// OrderableItem is a catalog entry a customer can put into the cart.
type OrderableItem struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

// BoardEvent is pushed to kitchen/cashier boards on every status change.
type BoardEvent struct {
	OrderID   int64       `json:"orderId"`
	Status    OrderStatus `json:"status"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
