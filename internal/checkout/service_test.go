package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/electronicjova/storefront-backend/internal/cart"
	"github.com/electronicjova/storefront-backend/internal/orders"
	"github.com/electronicjova/storefront-backend/internal/products"
	"github.com/electronicjova/storefront-backend/internal/stock"
	"github.com/electronicjova/storefront-backend/pkg/auth"
	"github.com/electronicjova/storefront-backend/pkg/db"
	"github.com/electronicjova/storefront-backend/pkg/db/dbtest"
	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
	"github.com/electronicjova/storefront-backend/pkg/logger"
	"github.com/electronicjova/storefront-backend/pkg/outbox"
	"github.com/electronicjova/storefront-backend/pkg/stripe"
)

type stubSessions struct {
	requests []stripe.SessionRequest
	err      error
	// beforeCreate runs when the session is requested, after the order exists.
	beforeCreate func()
}

func (s *stubSessions) CreateCheckoutSession(_ context.Context, req stripe.SessionRequest) (*stripe.Session, error) {
	if s.beforeCreate != nil {
		s.beforeCreate()
	}
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.Session{ID: "cs_test_" + req.OrderID[:8], URL: "https://checkout.stripe.test/" + req.OrderID}, nil
}

type noRefunds struct{}

func (noRefunds) Refund(context.Context, string, string) (string, error) {
	return "", errors.New("unexpected refund")
}

type fixture struct {
	client   *db.Client
	cart     cart.Service
	orders   orders.Repository
	outbox   *outbox.Repository
	sessions *stubSessions
	svc      Service
	user     auth.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	logg := logger.Nop()
	cartRepo := cart.NewRepository(client.DB())
	cartSvc, err := cart.NewService(cartRepo, client, products.NewRepository(client.DB()), nil, time.Hour, logg)
	require.NoError(t, err)

	ledger := stock.NewLedger(client.DB(), logg, nil)
	outboxRepo := outbox.NewRepository(client.DB())
	emitter := outbox.NewService(outboxRepo, logg)
	ordersRepo := orders.NewRepository(client.DB())
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo: ordersRepo, Tx: client, Outbox: emitter, Stock: ledger, Refunder: noRefunds{}, Logger: logg,
	})
	require.NoError(t, err)

	sessions := &stubSessions{}
	svc, err := NewService(ServiceParams{
		Tx:         client,
		Cart:       cartRepo,
		CartClear:  cartSvc,
		Stock:      ledger,
		OrdersRepo: ordersRepo,
		Orders:     orderSvc,
		Outbox:     emitter,
		Sessions:   sessions,
		BaseURL:    "https://jova.mx/",
		Logger:     logg,
	})
	require.NoError(t, err)

	return &fixture{
		client:   client,
		cart:     cartSvc,
		orders:   ordersRepo,
		outbox:   outboxRepo,
		sessions: sessions,
		svc:      svc,
		user:     auth.Identity{UserID: uuid.New(), Email: "ana@example.com", Role: enums.UserRoleCustomer},
	}
}

func (f *fixture) seedProduct(t *testing.T, name string, stockLevel int) models.Product {
	t.Helper()
	p := models.Product{
		Name:     name,
		Price:    decimal.NewFromInt(10),
		Price50:  decimal.NewFromInt(9),
		Price100: decimal.NewFromInt(8),
		Stock:    stockLevel,
	}
	require.NoError(t, f.client.DB().Create(&p).Error)
	return p
}

func (f *fixture) addToCart(t *testing.T, p models.Product, qty int) {
	t.Helper()
	_, err := f.cart.Add(context.Background(), f.user.UserID, cart.AddInput{ProductID: p.ID, Count: qty})
	require.NoError(t, err)
}

func (f *fixture) setStock(t *testing.T, id uuid.UUID, stockLevel int) {
	t.Helper()
	require.NoError(t, f.client.DB().Model(&models.Product{}).Where("id = ?", id).Update("stock", stockLevel).Error)
}

func (f *fixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.client.DB().Model(&models.OrderHeader{}).Count(&n).Error)
	return n
}

var shipping = ShippingInput{
	Name:          "Ana López",
	PhoneNumber:   "5512345678",
	StreetAddress: "Av. Reforma 1",
	City:          "CDMX",
	State:         "CDMX",
	PostalCode:    "06600",
}

func TestSubmitCreatesPendingOrderAndSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedProduct(t, "Sensor A", 100)
	b := f.seedProduct(t, "Sensor B", 5)
	f.addToCart(t, a, 60)
	f.addToCart(t, b, 2)

	result, err := f.svc.Submit(ctx, f.user, shipping)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(560).Equal(result.Total))
	assert.Equal(t, "https://checkout.stripe.test/"+result.OrderID.String(), result.RedirectURL)

	order, err := f.orders.FindByID(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.OrderStatus)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "ana@example.com", order.Email)
	require.NotNil(t, order.SessionID)
	assert.Equal(t, "cs_test_"+result.OrderID.String()[:8], *order.SessionID)
	require.Len(t, order.Details, 2)
	require.Len(t, order.StatusLogs, 1)
	assert.Nil(t, order.StatusLogs[0].FromStatus)
	assert.Equal(t, f.user.ActorID(), order.StatusLogs[0].ChangedBy)

	require.Len(t, f.sessions.requests, 1)
	req := f.sessions.requests[0]
	assert.ElementsMatch(t, []stripe.SessionLine{
		{Name: "Sensor A", UnitAmount: 900, Quantity: 60},
		{Name: "Sensor B", UnitAmount: 1000, Quantity: 2},
	}, req.Lines)
	assert.Equal(t, "https://jova.mx/checkout/confirmation?id="+result.OrderID.String(), req.SuccessURL)
	assert.Equal(t, "https://jova.mx/checkout/cancelled?id="+result.OrderID.String(), req.CancelURL)

	events, err := f.outbox.ListByAggregate(result.OrderID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderCreated, events[0].EventType)

	var stored models.Product
	require.NoError(t, f.client.DB().First(&stored, "id = ?", a.ID).Error)
	assert.Equal(t, 100, stored.Stock)
}

func TestSubmitRejectsInsufficientStockWithoutPersisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedProduct(t, "Sensor A", 10)
	f.addToCart(t, a, 5)
	f.setStock(t, a.ID, 3)

	_, err := f.svc.Submit(ctx, f.user, shipping)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, err.Error(), "Sensor A")
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, a.ID, details["product_id"])

	assert.Zero(t, f.orderCount(t))
	assert.Empty(t, f.sessions.requests)
}

func TestSubmitRechecksStockBeforeSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedProduct(t, "Sensor A", 10)
	f.addToCart(t, a, 5)

	f.sessions.beforeCreate = func() { t.Fatal("session must not be requested") }

	done := false
	f.svc.(*service).stock = stockFunc(func(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
		if done {
			return false, nil
		}
		done = true
		return true, nil
	})

	_, err := f.svc.Submit(ctx, f.user, shipping)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.NotNil(t, details["order_id"])
	assert.EqualValues(t, 1, f.orderCount(t))
}

type stockFunc func(ctx context.Context, id uuid.UUID, qty int) (bool, error)

func (f stockFunc) ReserveCheck(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	return f(ctx, id, qty)
}

func TestSubmitSessionFailureKeepsPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedProduct(t, "Sensor A", 10)
	f.addToCart(t, a, 2)
	f.sessions.err = errors.New("stripe timeout")

	_, err := f.svc.Submit(ctx, f.user, shipping)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	details := pkgerrors.As(err).Details().(map[string]any)
	orderID, ok := details["order_id"].(uuid.UUID)
	require.True(t, ok)

	order, err := f.orders.FindByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.OrderStatus)
	assert.Nil(t, order.SessionID)
}

func TestSubmitEmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), f.user, shipping)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestConfirmationClearsCartOnlyAfterPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedProduct(t, "Sensor A", 10)
	f.addToCart(t, a, 2)

	result, err := f.svc.Submit(ctx, f.user, shipping)
	require.NoError(t, err)

	order, err := f.svc.Confirmation(ctx, f.user, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	count, err := f.cart.Count(ctx, f.user.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.orders.WithTx(tx).ApprovePayment(ctx, result.OrderID, "pi_1")
		return err
	}))

	order, err = f.svc.Confirmation(ctx, f.user, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusApproved, order.PaymentStatus)
	count, err = f.cart.Count(ctx, f.user.UserID)
	require.NoError(t, err)
	assert.Zero(t, count)

	var stored models.Product
	require.NoError(t, f.client.DB().First(&stored, "id = ?", a.ID).Error)
	assert.Equal(t, 10, stored.Stock)
}

func TestConfirmationOfAnotherCustomersOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedProduct(t, "Sensor A", 10)
	f.addToCart(t, a, 1)
	result, err := f.svc.Submit(ctx, f.user, shipping)
	require.NoError(t, err)

	stranger := auth.Identity{UserID: uuid.New(), Role: enums.UserRoleCustomer}
	_, err = f.svc.Confirmation(ctx, stranger, result.OrderID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = f.svc.Abandon(ctx, stranger, result.OrderID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAbandonCancelsPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedProduct(t, "Sensor A", 10)
	f.addToCart(t, a, 1)
	result, err := f.svc.Submit(ctx, f.user, shipping)
	require.NoError(t, err)

	order, err := f.svc.Abandon(ctx, f.user, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, order.OrderStatus)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.Len(t, order.StatusLogs, 2)

	again, err := f.svc.Abandon(ctx, f.user, result.OrderID)
	require.NoError(t, err)
	assert.Len(t, again.StatusLogs, 2)
}
