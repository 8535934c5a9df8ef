package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/electronicjova/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is queued when checkout persists a new pending order.
type OrderCreatedEvent struct {
	OrderID   uuid.UUID       `json:"order_id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty"`
	Total     decimal.Decimal `json:"total"`
	LineCount int             `json:"line_count"`
}

// OrderPaidEvent is queued when the payment webhook approves an order.
type OrderPaidEvent struct {
	OrderID         uuid.UUID       `json:"order_id"`
	PaymentIntentID string          `json:"payment_intent_id"`
	Total           decimal.Decimal `json:"total"`
	Shortfalls      []uuid.UUID     `json:"shortfall_product_ids,omitempty"`
}

// OrderStatusChangedEvent mirrors one order_status_logs row.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	ChangedBy string            `json:"changed_by"`
	Note      string            `json:"note,omitempty"`
}

// OrderCancelledEvent is queued on the transition into Cancelled.
type OrderCancelledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Refunded       bool              `json:"refunded"`
	RefundID       string            `json:"refund_id,omitempty"`
	StockReversed  bool              `json:"stock_reversed"`
	CancelledBy    string            `json:"cancelled_by"`
}

// StockShortfallEvent flags a paid line that drove stock negative.
type StockShortfallEvent struct {
	ProductID      uuid.UUID `json:"product_id"`
	OrderID        uuid.UUID `json:"order_id"`
	Requested      int       `json:"requested"`
	ResultingStock int       `json:"resulting_stock"`
}
