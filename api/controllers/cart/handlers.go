package cart

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/electronicjova/storefront-backend/api/middleware"
	"github.com/electronicjova/storefront-backend/api/responses"
	"github.com/electronicjova/storefront-backend/api/validators"
	cartsvc "github.com/electronicjova/storefront-backend/internal/cart"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
	"github.com/electronicjova/storefront-backend/pkg/logger"
)

// CartFetch returns the caller's cart lines priced at their current tier.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartAddItem adds a product with its option selection, merging into an
// existing identical line.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		line, err := svc.Add(r.Context(), userID, toAddInput(payload))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, line)
	}
}

func CartPlus(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return lineAction(svc, logg, func(ctx context.Context, userID, lineID uuid.UUID) (any, error) {
		return svc.Plus(ctx, userID, lineID)
	})
}

func CartMinus(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return lineAction(svc, logg, func(ctx context.Context, userID, lineID uuid.UUID) (any, error) {
		return svc.Minus(ctx, userID, lineID)
	})
}

// CartRemove deletes one line. Responds 204.
func CartRemove(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return lineAction(svc, logg, func(ctx context.Context, userID, lineID uuid.UUID) (any, error) {
		return nil, svc.Remove(ctx, userID, lineID)
	})
}

// CartClear empties the cart. Responds 204.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Clear(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CartCount returns the number of lines for the header badge.
func CartCount(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		count, err := svc.Count(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, countResponse{Count: count})
	}
}

type lineFunc func(ctx context.Context, userID, lineID uuid.UUID) (any, error)

// lineAction resolves the caller and {lineId}. A nil result is written as 204.
func lineAction(svc cartsvc.Service, logg *logger.Logger, fn lineFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lineID, err := validators.ParseUUIDParam(r, "lineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := fn(r.Context(), userID, lineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if isNilResult(result) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func isNilResult(v any) bool {
	if v == nil {
		return true
	}
	line, ok := v.(*cartsvc.LineView)
	return ok && line == nil
}

func userIDFromContext(r *http.Request) (uuid.UUID, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok || identity.UserID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return identity.UserID, nil
}

func serviceUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable")
}
