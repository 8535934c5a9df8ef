package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electronicjova/storefront-backend/api/middleware"
	checkoutsvc "github.com/electronicjova/storefront-backend/internal/checkout"
	"github.com/electronicjova/storefront-backend/pkg/auth"
	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
)

type stubCheckoutService struct {
	result       *checkoutsvc.Result
	order        *models.OrderHeader
	err          error
	lastShipping checkoutsvc.ShippingInput
	lastOrderID  uuid.UUID
	abandoned    bool
}

func (s *stubCheckoutService) Submit(_ context.Context, _ auth.Identity, shipping checkoutsvc.ShippingInput) (*checkoutsvc.Result, error) {
	s.lastShipping = shipping
	return s.result, s.err
}

func (s *stubCheckoutService) Confirmation(_ context.Context, _ auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error) {
	s.lastOrderID = orderID
	return s.order, s.err
}

func (s *stubCheckoutService) Abandon(_ context.Context, _ auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error) {
	s.lastOrderID = orderID
	s.abandoned = true
	return s.order, s.err
}

const validShipping = `{"name":"  Ana López ","phoneNumber":"5512345678","email":"ana@example.com","streetAddress":"Av. Reforma 1","city":"CDMX","state":"CDMX","postalCode":"06600"}`

func customer() auth.Identity {
	return auth.Identity{UserID: uuid.New(), Email: "ana@example.com", Role: enums.UserRoleCustomer}
}

func admin() auth.Identity {
	return auth.Identity{UserID: uuid.New(), Role: enums.UserRoleAdmin}
}

func serve(t *testing.T, method, pattern, target string, body string, identity *auth.Identity, handler http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, handler)

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != nil {
		req = req.WithContext(middleware.WithIdentity(req.Context(), *identity))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, map[string]any) {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code, envelope.Error.Details
}

func TestCheckoutReturnsRedirect(t *testing.T) {
	orderID := uuid.New()
	svc := &stubCheckoutService{result: &checkoutsvc.Result{
		OrderID:     orderID,
		RedirectURL: "https://checkout.stripe.com/c/pay/cs_test_1",
		Total:       decimal.RequireFromString("560"),
	}}
	identity := customer()

	rec := serve(t, http.MethodPost, "/api/v1/checkout", "/api/v1/checkout", validShipping, &identity, Checkout(svc, nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	assert.Equal(t, orderID.String(), data["orderId"])
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", data["redirectUrl"])
	assert.Equal(t, "Ana López", svc.lastShipping.Name)
}

func TestCheckoutValidatesShipping(t *testing.T) {
	svc := &stubCheckoutService{}
	identity := customer()
	rec := serve(t, http.MethodPost, "/api/v1/checkout", "/api/v1/checkout", `{"name":"Ana"}`, &identity, Checkout(svc, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	code, details := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeValidation), code)
	assert.Contains(t, details, "postalCode")
}

func TestCheckoutRequiresIdentity(t *testing.T) {
	rec := serve(t, http.MethodPost, "/api/v1/checkout", "/api/v1/checkout", validShipping, nil, Checkout(&stubCheckoutService{}, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutSessionFailureExposesOrderID(t *testing.T) {
	orderID := uuid.New()
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeDependency, "payment provider unavailable").
		WithDetails(map[string]any{"order_id": orderID})}
	identity := customer()

	rec := serve(t, http.MethodPost, "/api/v1/checkout", "/api/v1/checkout", validShipping, &identity, Checkout(svc, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	code, details := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeDependency), code)
	assert.Equal(t, orderID.String(), details["order_id"])
}

func TestCheckoutInsufficientStock(t *testing.T) {
	productID := uuid.New()
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock").
		WithDetails(map[string]any{"product_id": productID})}
	identity := customer()

	rec := serve(t, http.MethodPost, "/api/v1/checkout", "/api/v1/checkout", validShipping, &identity, Checkout(svc, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, details := decodeError(t, rec)
	assert.Equal(t, productID.String(), details["product_id"])
}

func TestCheckoutConfirmationRendersOrder(t *testing.T) {
	orderID := uuid.New()
	svc := &stubCheckoutService{order: &models.OrderHeader{
		ID:            orderID,
		OrderStatus:   enums.OrderStatusApproved,
		PaymentStatus: enums.PaymentStatusApproved,
		OrderTotal:    decimal.RequireFromString("540"),
	}}
	identity := customer()

	rec := serve(t, http.MethodGet, "/api/v1/checkout/{orderId}/confirmation", "/api/v1/checkout/"+orderID.String()+"/confirmation", "", &identity, CheckoutConfirmation(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, orderID, svc.lastOrderID)
	data := decodeData(t, rec)
	status := data["orderStatus"].(map[string]any)
	assert.Equal(t, "approved", status["value"])
}

func TestCheckoutConfirmationRejectsBadID(t *testing.T) {
	identity := customer()
	rec := serve(t, http.MethodGet, "/api/v1/checkout/{orderId}/confirmation", "/api/v1/checkout/nope/confirmation", "", &identity, CheckoutConfirmation(&stubCheckoutService{}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutCancelledAbandons(t *testing.T) {
	orderID := uuid.New()
	svc := &stubCheckoutService{order: &models.OrderHeader{ID: orderID, OrderStatus: enums.OrderStatusCancelled}}
	identity := customer()

	rec := serve(t, http.MethodPost, "/api/v1/checkout/{orderId}/cancelled", "/api/v1/checkout/"+orderID.String()+"/cancelled", "", &identity, CheckoutCancelled(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, svc.abandoned)
}
