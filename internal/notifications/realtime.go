package notifications

import (
	"context"
	"encoding/json"
	"fmt"
)

type orderPublisher interface {
	PublishOrderUpdate(ctx context.Context, orderID string, payload []byte) error
}

// StatusUpdate is the message pushed on the order:{id} channel. StatusCode
// is the persisted integer value of Status.
type StatusUpdate struct {
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Label      string `json:"label"`
	Icon       string `json:"icon"`
}

// RealtimeHook pushes the new status to clients watching the order.
type RealtimeHook struct {
	publisher orderPublisher
}

func NewRealtimeHook(publisher orderPublisher) *RealtimeHook {
	return &RealtimeHook{publisher: publisher}
}

func (h *RealtimeHook) Name() string { return "realtime" }

func (h *RealtimeHook) Run(ctx context.Context, change Change) error {
	if h.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(StatusUpdate{
		OrderID:    change.Order.ID.String(),
		Status:     change.To.String(),
		StatusCode: int(change.To),
		Label:      change.To.Label(),
		Icon:       change.To.Icon(),
	})
	if err != nil {
		return fmt.Errorf("encode status update: %w", err)
	}
	return h.publisher.PublishOrderUpdate(ctx, change.Order.ID.String(), payload)
}
