package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electronicjova/storefront-backend/internal/orders"
	"github.com/electronicjova/storefront-backend/pkg/auth"
	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
	"github.com/electronicjova/storefront-backend/pkg/pagination"
	"github.com/electronicjova/storefront-backend/pkg/types"
)

type stubOrdersService struct {
	order      *models.OrderHeader
	dashboard  *orders.DashboardTotals
	page       *types.Page[orders.OrderSummary]
	err        error
	calls      []string
	lastFilter orders.ListFilters
	lastParams pagination.Params
	lastShip   orders.ShipInput
	lastNote   string
}

func (s *stubOrdersService) record(name string) (*models.OrderHeader, error) {
	s.calls = append(s.calls, name)
	return s.order, s.err
}

func (s *stubOrdersService) Get(context.Context, auth.Identity, uuid.UUID) (*models.OrderHeader, error) {
	return s.record("get")
}

func (s *stubOrdersService) List(_ context.Context, _ auth.Identity, filters orders.ListFilters, params pagination.Params) (*types.Page[orders.OrderSummary], error) {
	s.calls = append(s.calls, "list")
	s.lastFilter = filters
	s.lastParams = params
	return s.page, s.err
}

func (s *stubOrdersService) StartProcessing(context.Context, auth.Identity, uuid.UUID) (*models.OrderHeader, error) {
	return s.record("processing")
}

func (s *stubOrdersService) Ship(_ context.Context, _ auth.Identity, _ uuid.UUID, input orders.ShipInput) (*models.OrderHeader, error) {
	s.lastShip = input
	return s.record("ship")
}

func (s *stubOrdersService) Deliver(context.Context, auth.Identity, uuid.UUID) (*models.OrderHeader, error) {
	return s.record("deliver")
}

func (s *stubOrdersService) Cancel(_ context.Context, _ auth.Identity, _ uuid.UUID, note string) (*models.OrderHeader, error) {
	s.lastNote = note
	return s.record("cancel")
}

func (s *stubOrdersService) Abandon(context.Context, auth.Identity, uuid.UUID) (*models.OrderHeader, error) {
	return s.record("abandon")
}

func (s *stubOrdersService) UpdateShippingContact(context.Context, auth.Identity, uuid.UUID, orders.ShippingContactInput) (*models.OrderHeader, error) {
	return s.record("shipping")
}

func (s *stubOrdersService) Dashboard(context.Context, auth.Identity) (*orders.DashboardTotals, error) {
	s.calls = append(s.calls, "dashboard")
	return s.dashboard, s.err
}

func TestAdminOrderListParsesFilters(t *testing.T) {
	svc := &stubOrdersService{page: &types.Page[orders.OrderSummary]{Items: []orders.OrderSummary{}}}
	identity := admin()

	rec := serve(t, http.MethodGet, "/admin/orders", "/admin/orders?status=approved&payment=approved&limit=5&cursor=abc", "", &identity, AdminOrderList(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.lastFilter.OrderStatus)
	assert.Equal(t, enums.OrderStatusApproved, *svc.lastFilter.OrderStatus)
	require.NotNil(t, svc.lastFilter.PaymentStatus)
	assert.Equal(t, enums.PaymentStatusApproved, *svc.lastFilter.PaymentStatus)
	assert.Equal(t, 5, svc.lastParams.Limit)
	assert.Equal(t, "abc", svc.lastParams.Cursor)
}

func TestAdminOrderListRejectsUnknownStatus(t *testing.T) {
	svc := &stubOrdersService{}
	identity := admin()
	rec := serve(t, http.MethodGet, "/admin/orders", "/admin/orders?status=lost", "", &identity, AdminOrderList(svc, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.calls)
}

func TestAdminOrderListRejectsOversizedLimit(t *testing.T) {
	identity := admin()
	rec := serve(t, http.MethodGet, "/admin/orders", "/admin/orders?limit=1000", "", &identity, AdminOrderList(&stubOrdersService{}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminShipOrderPassesTracking(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{order: &models.OrderHeader{ID: orderID, OrderStatus: enums.OrderStatusShipped}}
	identity := admin()

	rec := serve(t, http.MethodPost, "/admin/orders/{orderId}/ship", "/admin/orders/"+orderID.String()+"/ship",
		`{"carrier":" DHL ","trackingNumber":"1Z999"}`, &identity, AdminShipOrder(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "DHL", svc.lastShip.Carrier)
	assert.Equal(t, "1Z999", svc.lastShip.TrackingNumber)
	status := decodeData(t, rec)["orderStatus"].(map[string]any)
	assert.Equal(t, "shipped", status["value"])
}

func TestAdminShipOrderRequiresTracking(t *testing.T) {
	svc := &stubOrdersService{}
	identity := admin()
	rec := serve(t, http.MethodPost, "/admin/orders/{orderId}/ship", "/admin/orders/"+uuid.NewString()+"/ship",
		`{"carrier":"DHL"}`, &identity, AdminShipOrder(svc, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.calls)
}

func TestAdminCancelOrderBodyIsOptional(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{order: &models.OrderHeader{ID: orderID, OrderStatus: enums.OrderStatusCancelled}}
	identity := admin()

	rec := serve(t, http.MethodPost, "/admin/orders/{orderId}/cancel", "/admin/orders/"+orderID.String()+"/cancel", "", &identity, AdminCancelOrder(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "", svc.lastNote)

	rec = serve(t, http.MethodPost, "/admin/orders/{orderId}/cancel", "/admin/orders/"+orderID.String()+"/cancel",
		`{"note":"customer asked"}`, &identity, AdminCancelOrder(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "customer asked", svc.lastNote)
}

func TestAdminTransitionConflictMaps422(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot move from delivered to processing")}
	identity := admin()

	rec := serve(t, http.MethodPost, "/admin/orders/{orderId}/processing", "/admin/orders/"+uuid.NewString()+"/processing", "", &identity, AdminStartProcessing(svc, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeStateConflict), code)
}

func TestAdminOrderActionsDispatch(t *testing.T) {
	orderID := uuid.New()
	identity := admin()
	cases := []struct {
		name    string
		path    string
		body    string
		handler func(orders.Service) http.HandlerFunc
		call    string
	}{
		{"detail", "/admin/orders/{orderId}", "", func(s orders.Service) http.HandlerFunc { return AdminOrderDetail(s, nil) }, "get"},
		{"processing", "/admin/orders/{orderId}/processing", "", func(s orders.Service) http.HandlerFunc { return AdminStartProcessing(s, nil) }, "processing"},
		{"deliver", "/admin/orders/{orderId}/deliver", "", func(s orders.Service) http.HandlerFunc { return AdminDeliverOrder(s, nil) }, "deliver"},
		{"shipping", "/admin/orders/{orderId}/shipping", `{"city":"Puebla"}`, func(s orders.Service) http.HandlerFunc { return AdminUpdateShipping(s, nil) }, "shipping"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrdersService{order: &models.OrderHeader{ID: orderID}}
			target := "/admin/orders/" + orderID.String()
			if tc.name != "detail" {
				target += "/" + tc.name
			}
			rec := serve(t, http.MethodPost, tc.path, target, tc.body, &identity, tc.handler(svc))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, []string{tc.call}, svc.calls)
		})
	}
}

func TestAdminOrderNotFound(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	identity := admin()
	rec := serve(t, http.MethodGet, "/admin/orders/{orderId}", "/admin/orders/"+uuid.NewString(), "", &identity, AdminOrderDetail(svc, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminDashboardRendersTotals(t *testing.T) {
	productID := uuid.New()
	svc := &stubOrdersService{dashboard: &orders.DashboardTotals{
		SalesToday:    decimal.RequireFromString("1299.50"),
		PendingOrders: 3,
		ProductCount:  12,
		TopProducts:   []orders.TopProduct{{ProductID: productID, Name: "Arduino Uno", UnitsSold: 40}},
	}}
	identity := admin()

	rec := serve(t, http.MethodGet, "/admin/dashboard", "/admin/dashboard", "", &identity, AdminDashboard(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	assert.Equal(t, "1299.5", data["salesToday"])
	assert.EqualValues(t, 3, data["pendingOrders"])
	assert.EqualValues(t, 12, data["productCount"])
	top := data["topProducts"].([]any)
	require.Len(t, top, 1)
	assert.Equal(t, productID.String(), top[0].(map[string]any)["productId"])
	assert.EqualValues(t, 40, top[0].(map[string]any)["unitsSold"])
}

func TestAdminDashboardForbiddenForCustomers(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")}
	identity := admin()
	rec := serve(t, http.MethodGet, "/admin/dashboard", "/admin/dashboard", "", &identity, AdminDashboard(svc, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, []string{"dashboard"}, svc.calls)
}
