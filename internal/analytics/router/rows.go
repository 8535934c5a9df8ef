package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/electronicjova/storefront-backend/internal/analytics/types"
	analyticswriter "github.com/electronicjova/storefront-backend/internal/analytics/writer"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	"github.com/electronicjova/storefront-backend/pkg/logger"
	"github.com/electronicjova/storefront-backend/pkg/outbox/payloads"
)

type rowBuilder func(row *types.OrderEventRow, payload any) error

// rowHandler fills the common columns from the envelope and lets build fill
// the event specific ones.
type rowHandler struct {
	writer Writer
	logg   *logger.Logger
	build  rowBuilder
}

func newRowHandler(writer Writer, logg *logger.Logger, build rowBuilder) Handler {
	return &rowHandler{writer: writer, logg: logg, build: build}
}

func (h *rowHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	payloadJSON, err := analyticswriter.EncodeJSON(envelope.Payload)
	if err != nil {
		return fmt.Errorf("encode payload json: %w", err)
	}
	row := types.OrderEventRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: envelope.OccurredAt.UTC(),
		ActorID:    stringPtr(envelope.ActorID()),
		Payload:    payloadJSON,
	}
	if err := h.build(&row, payload); err != nil {
		return err
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"event_id":   envelope.EventID,
	})
	if err := h.writer.InsertOrderEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert order event row", err)
		return err
	}
	h.logg.Debug(logCtx, "order event row inserted")
	return nil
}

func orderCreatedRow(row *types.OrderEventRow, payload any) error {
	event, ok := payload.(*payloads.OrderCreatedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_created")
	}
	row.OrderID = uuidPtr(event.OrderID)
	if event.UserID != nil {
		row.UserID = uuidPtr(*event.UserID)
	}
	row.TotalCents = centsPtr(event.Total)
	row.LineCount = int64Ptr(int64(event.LineCount))
	row.ToStatus = stringPtr(enums.OrderStatusPending.String())
	return nil
}

func orderPaidRow(row *types.OrderEventRow, payload any) error {
	event, ok := payload.(*payloads.OrderPaidEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_paid")
	}
	row.OrderID = uuidPtr(event.OrderID)
	row.TotalCents = centsPtr(event.Total)
	row.FromStatus = stringPtr(enums.OrderStatusPending.String())
	row.ToStatus = stringPtr(enums.OrderStatusApproved.String())
	return nil
}

func statusChangedRow(row *types.OrderEventRow, payload any) error {
	event, ok := payload.(*payloads.OrderStatusChangedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_status_changed")
	}
	row.OrderID = uuidPtr(event.OrderID)
	row.FromStatus = stringPtr(event.From.String())
	row.ToStatus = stringPtr(event.To.String())
	if event.ChangedBy != "" {
		row.ActorID = stringPtr(event.ChangedBy)
	}
	return nil
}

func orderCancelledRow(row *types.OrderEventRow, payload any) error {
	event, ok := payload.(*payloads.OrderCancelledEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_cancelled")
	}
	row.OrderID = uuidPtr(event.OrderID)
	row.FromStatus = stringPtr(event.PreviousStatus.String())
	row.ToStatus = stringPtr(enums.OrderStatusCancelled.String())
	refunded := event.Refunded
	row.Refunded = &refunded
	if event.CancelledBy != "" {
		row.ActorID = stringPtr(event.CancelledBy)
	}
	return nil
}

func stockShortfallRow(row *types.OrderEventRow, payload any) error {
	event, ok := payload.(*payloads.StockShortfallEvent)
	if !ok {
		return fmt.Errorf("invalid payload for stock_shortfall")
	}
	row.OrderID = uuidPtr(event.OrderID)
	row.ProductID = uuidPtr(event.ProductID)
	row.Quantity = int64Ptr(int64(event.Requested))
	row.ResultingStock = int64Ptr(int64(event.ResultingStock))
	return nil
}

func stringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func uuidPtr(id uuid.UUID) *string {
	if id == uuid.Nil {
		return nil
	}
	return stringPtr(id.String())
}

func int64Ptr(value int64) *int64 {
	return &value
}

func centsPtr(amount decimal.Decimal) *int64 {
	return int64Ptr(amount.Shift(2).Round(0).IntPart())
}
