package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/electronicjova/storefront-backend/internal/orders"
	"github.com/electronicjova/storefront-backend/internal/pricing"
	"github.com/electronicjova/storefront-backend/pkg/auth"
	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
	"github.com/electronicjova/storefront-backend/pkg/logger"
	"github.com/electronicjova/storefront-backend/pkg/outbox"
	"github.com/electronicjova/storefront-backend/pkg/outbox/payloads"
	"github.com/electronicjova/storefront-backend/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartLoader interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ShoppingCartLine, error)
}

type cartClearer interface {
	Clear(ctx context.Context, userID uuid.UUID) error
}

type stockChecker interface {
	ReserveCheck(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SessionCreator opens a hosted payment page for an order.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req stripe.SessionRequest) (*stripe.Session, error)
}

type orderService interface {
	Get(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error)
	Abandon(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error)
}

// Service turns a cart into a pending order and a payment session.
type Service interface {
	Submit(ctx context.Context, identity auth.Identity, shipping ShippingInput) (*Result, error)
	Confirmation(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error)
	Abandon(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error)
}

type ServiceParams struct {
	Tx         txRunner
	Cart       cartLoader
	CartClear  cartClearer
	Stock      stockChecker
	OrdersRepo orders.Repository
	Orders     orderService
	Outbox     outboxPublisher
	Sessions   SessionCreator
	BaseURL    string
	Logger     *logger.Logger
}

type service struct {
	tx         txRunner
	cart       cartLoader
	cartClear  cartClearer
	stock      stockChecker
	ordersRepo orders.Repository
	orders     orderService
	outbox     outboxPublisher
	sessions   SessionCreator
	baseURL    string
	logg       *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Cart == nil || params.CartClear == nil {
		return nil, fmt.Errorf("cart dependencies required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock checker required")
	}
	if params.OrdersRepo == nil || params.Orders == nil {
		return nil, fmt.Errorf("orders dependencies required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("payment session creator required")
	}
	if strings.TrimSpace(params.BaseURL) == "" {
		return nil, fmt.Errorf("storefront base url required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:         params.Tx,
		cart:       params.Cart,
		cartClear:  params.CartClear,
		stock:      params.Stock,
		ordersRepo: params.OrdersRepo,
		orders:     params.Orders,
		outbox:     params.Outbox,
		sessions:   params.Sessions,
		baseURL:    strings.TrimRight(params.BaseURL, "/"),
		logg:       logg,
	}, nil
}

// Submit persists a pending order from the caller's cart and requests a
// payment session for it. Stock is only checked here; it moves when the
// payment is confirmed.
func (s *service) Submit(ctx context.Context, identity auth.Identity, shipping ShippingInput) (*Result, error) {
	if identity.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	lines, err := s.cart.ListByUser(ctx, identity.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if err := s.checkStock(ctx, lines); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(shipping.Email)
	if email == "" {
		email = identity.Email
	}
	userID := identity.UserID
	order := &models.OrderHeader{
		UserID:        &userID,
		OrderStatus:   enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		Name:          strings.TrimSpace(shipping.Name),
		PhoneNumber:   strings.TrimSpace(shipping.PhoneNumber),
		Email:         email,
		StreetAddress: strings.TrimSpace(shipping.StreetAddress),
		City:          strings.TrimSpace(shipping.City),
		State:         strings.TrimSpace(shipping.State),
		PostalCode:    strings.TrimSpace(shipping.PostalCode),
		Details:       make([]models.OrderDetail, 0, len(lines)),
	}
	total := decimal.Zero
	sessionLines := make([]stripe.SessionLine, 0, len(lines))
	for _, line := range lines {
		unit := pricing.UnitPrice(*line.Product, line.Count, line.Options)
		total = total.Add(pricing.LineTotal(unit, line.Count))
		order.Details = append(order.Details, models.OrderDetail{
			ProductID: line.ProductID,
			Count:     line.Count,
			Price:     unit,
			Options:   line.Options,
			Note:      line.Note,
		})
		sessionLines = append(sessionLines, stripe.SessionLine{
			Name:       line.Product.Name,
			UnitAmount: stripe.MinorUnits(unit),
			Quantity:   int64(line.Count),
		})
	}
	order.OrderTotal = total

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ordersRepo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := repo.AppendStatusLog(ctx, &models.OrderStatusLog{
			OrderHeaderID: order.ID,
			ToStatus:      enums.OrderStatusPending,
			ChangedBy:     identity.ActorID(),
			Note:          "order created",
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status log")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{ID: identity.ActorID(), Role: identity.Role.String()},
			Data: payloads.OrderCreatedEvent{
				OrderID:   order.ID,
				UserID:    order.UserID,
				Total:     total,
				LineCount: len(order.Details),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(s.logg.WithField(ctx, "total", total.StringFixed(2)), "order created")

	if err := s.checkStock(ctx, lines); err != nil {
		return nil, withOrderID(err, order.ID)
	}

	session, err := s.sessions.CreateCheckoutSession(ctx, stripe.SessionRequest{
		OrderID:       order.ID.String(),
		CustomerEmail: email,
		Lines:         sessionLines,
		SuccessURL:    s.returnURL("confirmation", order.ID),
		CancelURL:     s.returnURL("cancelled", order.ID),
	})
	if err != nil {
		s.logg.Error(ctx, "payment session creation failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment session").
			WithDetails(map[string]any{"order_id": order.ID})
	}
	if err := s.ordersRepo.SetSessionID(ctx, order.ID, session.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment session").
			WithDetails(map[string]any{"order_id": order.ID})
	}
	s.logg.Info(s.logg.WithField(ctx, "session_id", session.ID), "payment session created")

	return &Result{OrderID: order.ID, RedirectURL: session.URL, Total: total}, nil
}

// Confirmation shows the order after the payment redirect. It never changes
// payment or stock; once the payment left Pending the cart is emptied.
func (s *service) Confirmation(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error) {
	order, err := s.ownedOrder(ctx, identity, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		if err := s.cartClear.Clear(ctx, identity.UserID); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_id": order.ID.String(),
				"error":    err.Error(),
			}), "cart clear after payment failed")
		}
	}
	return order, nil
}

// Abandon handles the return from a cancelled payment page.
func (s *service) Abandon(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error) {
	if _, err := s.ownedOrder(ctx, identity, orderID); err != nil {
		return nil, err
	}
	return s.orders.Abandon(ctx, identity, orderID)
}

func (s *service) ownedOrder(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error) {
	if identity.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.orders.Get(ctx, identity, orderID)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(identity.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	return order, nil
}

// checkStock verifies every product against the summed quantity of the
// lines that reference it, in cart order.
func (s *service) checkStock(ctx context.Context, lines []models.ShoppingCartLine) error {
	totals := map[uuid.UUID]int{}
	for _, line := range lines {
		if line.Product == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product no longer available").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		totals[line.ProductID] += line.Count
	}
	checked := map[uuid.UUID]bool{}
	for _, line := range lines {
		if checked[line.ProductID] {
			continue
		}
		checked[line.ProductID] = true
		ok, err := s.stock.ReserveCheck(ctx, line.ProductID, totals[line.ProductID])
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%q no longer has enough stock", line.Product.Name)).
				WithDetails(map[string]any{"product_id": line.ProductID, "product_name": line.Product.Name})
		}
	}
	return nil
}

func (s *service) returnURL(kind string, orderID uuid.UUID) string {
	q := url.Values{"id": []string{orderID.String()}}
	return fmt.Sprintf("%s/checkout/%s?%s", s.baseURL, kind, q.Encode())
}

func withOrderID(err error, orderID uuid.UUID) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return err
	}
	details, _ := typed.Details().(map[string]any)
	if details == nil {
		details = map[string]any{}
	}
	details["order_id"] = orderID
	return typed.WithDetails(details)
}
