package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/electronicjova/storefront-backend/api/responses"
	"github.com/electronicjova/storefront-backend/api/validators"
	"github.com/electronicjova/storefront-backend/internal/orders"
	"github.com/electronicjova/storefront-backend/pkg/auth"
	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
	"github.com/electronicjova/storefront-backend/pkg/logger"
	"github.com/electronicjova/storefront-backend/pkg/pagination"
)

// AdminOrderList pages through every order, newest first. Optional filters:
// ?status=<order status>&payment=<payment status>.
func AdminOrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		identity, err := requireIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := listFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), identity, filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminDashboard returns the admin landing figures.
func AdminDashboard(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		identity, err := requireIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		totals, err := svc.Dashboard(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, totals)
	}
}

func AdminOrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminOrderAction(svc, logg, func(ctx context.Context, identity auth.Identity, orderID uuid.UUID, _ *http.Request) (*models.OrderHeader, error) {
		return svc.Get(ctx, identity, orderID)
	})
}

func AdminStartProcessing(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminOrderAction(svc, logg, func(ctx context.Context, identity auth.Identity, orderID uuid.UUID, _ *http.Request) (*models.OrderHeader, error) {
		return svc.StartProcessing(ctx, identity, orderID)
	})
}

func AdminShipOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminOrderAction(svc, logg, func(ctx context.Context, identity auth.Identity, orderID uuid.UUID, r *http.Request) (*models.OrderHeader, error) {
		var payload orders.ShipInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		payload.Carrier = validators.SanitizeString(payload.Carrier, 64)
		payload.TrackingNumber = validators.SanitizeString(payload.TrackingNumber, 128)
		return svc.Ship(ctx, identity, orderID, payload)
	})
}

func AdminDeliverOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminOrderAction(svc, logg, func(ctx context.Context, identity auth.Identity, orderID uuid.UUID, _ *http.Request) (*models.OrderHeader, error) {
		return svc.Deliver(ctx, identity, orderID)
	})
}

type cancelRequest struct {
	Note string `json:"note" validate:"max=500"`
}

// AdminCancelOrder cancels an order, refunding it first when it was paid.
// The body is optional.
func AdminCancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminOrderAction(svc, logg, func(ctx context.Context, identity auth.Identity, orderID uuid.UUID, r *http.Request) (*models.OrderHeader, error) {
		var payload cancelRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				return nil, err
			}
		}
		return svc.Cancel(ctx, identity, orderID, validators.SanitizeString(payload.Note, 500))
	})
}

func AdminUpdateShipping(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminOrderAction(svc, logg, func(ctx context.Context, identity auth.Identity, orderID uuid.UUID, r *http.Request) (*models.OrderHeader, error) {
		var payload orders.ShippingContactInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.UpdateShippingContact(ctx, identity, orderID, payload)
	})
}

type orderAction func(ctx context.Context, identity auth.Identity, orderID uuid.UUID, r *http.Request) (*models.OrderHeader, error)

func adminOrderAction(svc orders.Service, logg *logger.Logger, action orderAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		identity, err := requireIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}
		order, err := action(ctx, identity, orderID, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.ToView(*order))
	}
}

// PageParams reads ?limit= and ?cursor=.
func PageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

func listFilters(r *http.Request) (orders.ListFilters, error) {
	var filters orders.ListFilters
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filters.OrderStatus = &status
	}
	if raw := strings.TrimSpace(q.Get("payment")); raw != "" {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment filter")
		}
		filters.PaymentStatus = &status
	}
	return filters, nil
}
