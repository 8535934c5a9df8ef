package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/electronicjova/storefront-backend/api/controllers"
	"github.com/electronicjova/storefront-backend/api/middleware"
	"github.com/electronicjova/storefront-backend/api/responses"
	"github.com/electronicjova/storefront-backend/api/validators"
	"github.com/electronicjova/storefront-backend/internal/notifications"
	internalorders "github.com/electronicjova/storefront-backend/internal/orders"
	"github.com/electronicjova/storefront-backend/pkg/auth"
	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
	"github.com/electronicjova/storefront-backend/pkg/logger"
)

// heartbeatInterval keeps idle event streams open through proxies.
var heartbeatInterval = 25 * time.Second

// OrderSubscriber opens the pub/sub channel of one order.
type OrderSubscriber interface {
	SubscribeOrder(ctx context.Context, orderID string) (<-chan *redis.Message, func() error, error)
}

// List returns the caller's own orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		identity, err := identityFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := controllers.PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := identity.UserID
		page, err := svc.List(r.Context(), identity, internalorders.ListFilters{UserID: &userID}, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// Detail renders one order. Orders of other customers read as not found.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		identity, err := identityFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), identity, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.ToView(*order))
	}
}

// Events streams status changes of one order as server-sent events. The
// current status is sent first; the stream ends once the order is delivered
// or cancelled.
func Events(svc internalorders.Service, subscriber OrderSubscriber, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || subscriber == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order events unavailable"))
			return
		}
		identity, err := identityFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}

		// Subscribe before reading the snapshot so no change falls in between.
		messages, closeSub, err := subscriber.SubscribeOrder(ctx, orderID.String())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe to order updates"))
			return
		}
		defer func() {
			if err := closeSub(); err != nil && logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "order.events.close_failed")
			}
		}()

		order, err := svc.Get(ctx, identity, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		header := w.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		if err := writeEvent(w, snapshot(order)); err != nil {
			return
		}
		flusher.Flush()
		if order.OrderStatus.IsTerminal() {
			return
		}

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var update notifications.StatusUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					if logg != nil {
						logg.Warn(logg.WithField(ctx, "error", err.Error()), "order.events.bad_payload")
					}
					continue
				}
				if err := writeEvent(w, update); err != nil {
					return
				}
				flusher.Flush()
				if status, err := enums.ParseOrderStatus(update.Status); err == nil && status.IsTerminal() {
					return
				}
			}
		}
	}
}

func snapshot(order *models.OrderHeader) notifications.StatusUpdate {
	return notifications.StatusUpdate{
		OrderID:    order.ID.String(),
		Status:     order.OrderStatus.String(),
		StatusCode: int(order.OrderStatus),
		Label:      order.OrderStatus.Label(),
		Icon:       order.OrderStatus.Icon(),
	}
}

func writeEvent(w http.ResponseWriter, update notifications.StatusUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload)
	return err
}

func identityFrom(r *http.Request) (auth.Identity, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok || identity.UserID == uuid.Nil {
		return auth.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return identity, nil
}
