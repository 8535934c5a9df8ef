package controllers

import (
	"net/http"

	"github.com/electronicjova/storefront-backend/api/middleware"
	"github.com/electronicjova/storefront-backend/api/responses"
	"github.com/electronicjova/storefront-backend/api/validators"
	checkoutsvc "github.com/electronicjova/storefront-backend/internal/checkout"
	"github.com/electronicjova/storefront-backend/internal/orders"
	"github.com/electronicjova/storefront-backend/pkg/auth"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
	"github.com/electronicjova/storefront-backend/pkg/logger"
)

// Checkout turns the caller's cart into a pending order and returns the
// hosted payment page to redirect to.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		identity, err := requireIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutsvc.ShippingInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload.Name = validators.SanitizeString(payload.Name, 120)
		payload.StreetAddress = validators.SanitizeString(payload.StreetAddress, 200)
		payload.City = validators.SanitizeString(payload.City, 80)
		payload.State = validators.SanitizeString(payload.State, 80)

		result, err := svc.Submit(r.Context(), identity, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutConfirmation renders the order the payment page redirected back to.
// It never changes payment or stock state.
func CheckoutConfirmation(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
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

		order, err := svc.Confirmation(r.Context(), identity, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.ToView(*order))
	}
}

// CheckoutCancelled handles the payment page's cancel redirect.
func CheckoutCancelled(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
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

		order, err := svc.Abandon(r.Context(), identity, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.ToView(*order))
	}
}

func requireIdentity(r *http.Request) (auth.Identity, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return auth.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return identity, nil
}
