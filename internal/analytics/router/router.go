package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/electronicjova/storefront-backend/internal/analytics/types"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	"github.com/electronicjova/storefront-backend/pkg/logger"
	"github.com/electronicjova/storefront-backend/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error
}

// Handler receives an envelope plus its decoded payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type handlerEntry struct {
	factory func() any
	handler Handler
}

// Router dispatches order event envelopes to the handler for their type.
type Router struct {
	handlers map[enums.OutboxEventType]handlerEntry
	logg     *logger.Logger
}

// NewRouter wires one row builder per order event type and allows overrides.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	entries := map[enums.OutboxEventType]handlerEntry{
		enums.EventOrderCreated: {
			factory: func() any { return &payloads.OrderCreatedEvent{} },
			handler: newRowHandler(writer, logg, orderCreatedRow),
		},
		enums.EventOrderPaid: {
			factory: func() any { return &payloads.OrderPaidEvent{} },
			handler: newRowHandler(writer, logg, orderPaidRow),
		},
		enums.EventOrderStatusChanged: {
			factory: func() any { return &payloads.OrderStatusChangedEvent{} },
			handler: newRowHandler(writer, logg, statusChangedRow),
		},
		enums.EventOrderCancelled: {
			factory: func() any { return &payloads.OrderCancelledEvent{} },
			handler: newRowHandler(writer, logg, orderCancelledRow),
		},
		enums.EventStockShortfall: {
			factory: func() any { return &payloads.StockShortfallEvent{} },
			handler: newRowHandler(writer, logg, stockShortfallRow),
		},
	}

	for event, custom := range overrides {
		entry, ok := entries[event]
		if !ok || custom == nil {
			continue
		}
		entry.handler = custom
		entries[event] = entry
	}

	return &Router{
		handlers: entries,
		logg:     logg,
	}, nil
}

// Handle decodes the payload and dispatches it to the configured handler.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	entry, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if !envelope.HasPayload() {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	payload := entry.factory()
	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	return entry.handler.Handle(ctx, envelope, payload)
}
