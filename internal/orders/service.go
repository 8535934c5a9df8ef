package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/electronicjova/storefront-backend/internal/notifications"
	"github.com/electronicjova/storefront-backend/internal/stock"
	"github.com/electronicjova/storefront-backend/pkg/auth"
	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
	"github.com/electronicjova/storefront-backend/pkg/logger"
	"github.com/electronicjova/storefront-backend/pkg/outbox"
	"github.com/electronicjova/storefront-backend/pkg/outbox/payloads"
	"github.com/electronicjova/storefront-backend/pkg/pagination"
	"github.com/electronicjova/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockReverser interface {
	ReverseOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]stock.Adjustment, error)
}

// Refunder returns the captured amount of a payment intent.
type Refunder interface {
	Refund(ctx context.Context, paymentIntentID, idempotencyKey string) (string, error)
}

type statusNotifier interface {
	OrderStatusChanged(ctx context.Context, change notifications.Change) error
}

type transitionRecorder interface {
	Transition(to string)
}

// Service defines the order state machine and order reads.
type Service interface {
	Get(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error)
	List(ctx context.Context, identity auth.Identity, filters ListFilters, params pagination.Params) (*types.Page[OrderSummary], error)
	StartProcessing(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error)
	Ship(ctx context.Context, identity auth.Identity, orderID uuid.UUID, input ShipInput) (*models.OrderHeader, error)
	Deliver(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error)
	Cancel(ctx context.Context, identity auth.Identity, orderID uuid.UUID, note string) (*models.OrderHeader, error)
	Abandon(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error)
	UpdateShippingContact(ctx context.Context, identity auth.Identity, orderID uuid.UUID, input ShippingContactInput) (*models.OrderHeader, error)
	Dashboard(ctx context.Context, identity auth.Identity) (*DashboardTotals, error)
}

type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Stock    stockReverser
	Refunder Refunder
	Notifier statusNotifier
	Metrics  transitionRecorder
	Logger   *logger.Logger
	// Location decides where "today" starts for the dashboard. Defaults to
	// America/Mexico_City, or UTC when the zone database is unavailable.
	Location *time.Location
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	stock    stockReverser
	refunder Refunder
	notifier statusNotifier
	metrics  transitionRecorder
	logg     *logger.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Refunder == nil {
		return nil, fmt.Errorf("refunder required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		stock:    params.Stock,
		refunder: params.Refunder,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     logg,
		loc:      storeLocation(params.Location),
		now:      time.Now,
	}, nil
}

// Get returns the order when the caller owns it or is an admin. Orders of
// other customers are reported as missing.
func (s *service) Get(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() && !order.OwnedBy(identity.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, identity auth.Identity, filters ListFilters, params pagination.Params) (*types.Page[OrderSummary], error) {
	if identity.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !identity.IsAdmin() {
		userID := identity.UserID
		filters.UserID = &userID
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.List(ctx, filters, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page := &types.Page[OrderSummary]{Items: make([]OrderSummary, 0, len(rows))}
	for _, row := range rows {
		page.Items = append(page.Items, summarize(row))
	}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

func (s *service) StartProcessing(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error) {
	order, err := s.loadForAdmin(ctx, identity, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, identity, order, transitionRequest{to: enums.OrderStatusProcessing})
}

func (s *service) Ship(ctx context.Context, identity auth.Identity, orderID uuid.UUID, input ShipInput) (*models.OrderHeader, error) {
	carrier := strings.TrimSpace(input.Carrier)
	tracking := strings.TrimSpace(input.TrackingNumber)
	if carrier == "" || tracking == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier and tracking number are required")
	}
	order, err := s.loadForAdmin(ctx, identity, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, identity, order, transitionRequest{
		to:   enums.OrderStatusShipped,
		note: fmt.Sprintf("%s %s", carrier, tracking),
		updates: map[string]any{
			"carrier":         carrier,
			"tracking_number": tracking,
			"shipping_date":   time.Now().UTC(),
		},
	})
}

func (s *service) Deliver(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error) {
	order, err := s.loadForAdmin(ctx, identity, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, identity, order, transitionRequest{to: enums.OrderStatusDelivered})
}

// Cancel refunds an approved payment before touching the database. A refund
// failure leaves the order exactly as it was. Cancelling a cancelled order
// returns it unchanged.
func (s *service) Cancel(ctx context.Context, identity auth.Identity, orderID uuid.UUID, note string) (*models.OrderHeader, error) {
	order, err := s.loadForAdmin(ctx, identity, orderID)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus == enums.OrderStatusCancelled {
		return order, nil
	}
	if !CanTransition(order.OrderStatus, enums.OrderStatusCancelled) {
		return nil, invalidTransition(order.OrderStatus, enums.OrderStatusCancelled)
	}

	req := transitionRequest{to: enums.OrderStatusCancelled, note: strings.TrimSpace(note), reverseStock: true}
	if order.PaymentStatus == enums.PaymentStatusApproved {
		if order.PaymentIntentID == nil || *order.PaymentIntentID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "approved order has no payment intent to refund").
				WithDetails(map[string]any{"order_id": order.ID})
		}
		refundID, err := s.refunder.Refund(ctx, *order.PaymentIntentID, "refund-"+order.ID.String())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund payment").
				WithDetails(map[string]any{"order_id": order.ID})
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id":  order.ID.String(),
			"refund_id": refundID,
		}), "payment refunded")
		req.refundID = refundID
		req.refunded = true
		req.updates = map[string]any{"payment_status": enums.PaymentStatusRefunded}
		return s.cancelRefunded(ctx, identity, order, req)
	}
	return s.transition(ctx, identity, order, req)
}

// cancelRefunded records a cancellation whose refund already went through.
// A concurrent transition that commits during the refund only moves the
// starting status, so the cancel is retried from whatever status the order
// reached while it can still be cancelled.
func (s *service) cancelRefunded(ctx context.Context, identity auth.Identity, order *models.OrderHeader, req transitionRequest) (*models.OrderHeader, error) {
	for attempt := 1; ; attempt++ {
		updated, err := s.transition(ctx, identity, order, req)
		if err == nil || !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) || attempt >= maxCancelAttempts {
			if err != nil {
				s.logg.Error(s.logg.WithFields(ctx, map[string]any{
					"order_id":  order.ID.String(),
					"refund_id": req.refundID,
				}), "refund issued but cancellation not recorded; manual follow-up required", err)
			}
			return updated, err
		}

		current, loadErr := s.load(ctx, order.ID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.OrderStatus == enums.OrderStatusCancelled {
			return current, nil
		}
		if !CanTransition(current.OrderStatus, enums.OrderStatusCancelled) {
			conflict := pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order moved to %s while the refund was issued", current.OrderStatus)).
				WithDetails(map[string]any{"order_id": order.ID, "refund_id": req.refundID, "status": current.OrderStatus.String()})
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{
				"order_id":  order.ID.String(),
				"refund_id": req.refundID,
			}), "refund issued for an order that can no longer be cancelled", conflict)
			return nil, conflict
		}
		order = current
	}
}

// Abandon cancels an unpaid order when the customer returns from a cancelled
// payment page. Anything else returns the order as it is.
func (s *service) Abandon(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error) {
	order, err := s.Get(ctx, identity, orderID)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
		return order, nil
	}
	updated, err := s.transition(ctx, identity, order, transitionRequest{
		to:   enums.OrderStatusCancelled,
		note: "payment abandoned",
	})
	if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		return s.load(ctx, orderID)
	}
	return updated, err
}

func (s *service) UpdateShippingContact(ctx context.Context, identity auth.Identity, orderID uuid.UUID, input ShippingContactInput) (*models.OrderHeader, error) {
	order, err := s.loadForAdmin(ctx, identity, orderID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	for column, value := range map[string]*string{
		"name":           input.Name,
		"phone_number":   input.PhoneNumber,
		"street_address": input.StreetAddress,
		"city":           input.City,
		"state":          input.State,
		"postal_code":    input.PostalCode,
	} {
		if value == nil {
			continue
		}
		trimmed := strings.TrimSpace(*value)
		if trimmed == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, column+" cannot be blank")
		}
		updates[column] = trimmed
	}
	if len(updates) == 0 {
		return order, nil
	}
	if err := s.repo.UpdateShippingContact(ctx, order.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipping contact")
	}
	return s.load(ctx, order.ID)
}

type transitionRequest struct {
	to           enums.OrderStatus
	note         string
	updates      map[string]any
	reverseStock bool
	refunded     bool
	refundID     string
}

func (s *service) transition(ctx context.Context, identity auth.Identity, order *models.OrderHeader, req transitionRequest) (*models.OrderHeader, error) {
	from := order.OrderStatus
	if from == req.to {
		return order, nil
	}
	if !CanTransition(from, req.to) {
		return nil, invalidTransition(from, req.to)
	}

	actor := identity.ActorID()
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":    order.ID.String(),
		"from_status": from.String(),
		"to_status":   req.to.String(),
		"actor":       actor,
	})

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		updates := map[string]any{"order_status": req.to}
		for k, v := range req.updates {
			updates[k] = v
		}
		changed, err := repo.CompareAndSetStatus(ctx, order.ID, from, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
				WithDetails(map[string]any{"order_id": order.ID, "expected_status": from.String()})
		}

		fromStatus := from
		if err := repo.AppendStatusLog(ctx, &models.OrderStatusLog{
			OrderHeaderID: order.ID,
			FromStatus:    &fromStatus,
			ToStatus:      req.to,
			ChangedBy:     actor,
			Note:          req.note,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status log")
		}

		stockReversed := false
		if req.reverseStock {
			adjustments, err := s.stock.ReverseOrder(ctx, tx, order.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse stock")
			}
			for _, adj := range adjustments {
				if adj.Applied {
					stockReversed = true
				}
			}
		}

		actorRef := &outbox.ActorRef{ID: actor, Role: identity.Role.String()}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:   order.ID,
				From:      from,
				To:        req.to,
				ChangedBy: actor,
				Note:      req.note,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status event")
		}
		if req.to == enums.OrderStatusCancelled {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCancelled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         actorRef,
				Data: payloads.OrderCancelledEvent{
					OrderID:        order.ID,
					PreviousStatus: from,
					Refunded:       req.refunded,
					RefundID:       req.refundID,
					StockReversed:  stockReversed,
					CancelledBy:    actor,
				},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit cancellation event")
			}
		}
		return nil
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			s.logg.Warn(ctx, "order transition lost race")
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Transition(req.to.String())
	}
	s.logg.Info(ctx, "order status changed")

	updated, err := s.load(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, notifications.Change{Order: *updated, From: &from, To: req.to, Refunded: req.refunded})
	return updated, nil
}

func (s *service) afterCommit(ctx context.Context, change notifications.Change) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.OrderStatusChanged(ctx, change); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "post-commit hooks reported failures")
	}
}

func (s *service) loadForAdmin(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error) {
	if !identity.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return s.load(ctx, orderID)
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.OrderHeader, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

const (
	maxCancelAttempts  = 3
	dashboardTopN      = 5
	defaultStoreZoneID = "America/Mexico_City"
)

// Dashboard returns today's approved sales, the pending order count, the
// catalog size and the best sellers.
func (s *service) Dashboard(ctx context.Context, identity auth.Identity) (*DashboardTotals, error) {
	if !identity.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	local := s.now().In(s.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	totals, err := s.repo.Dashboard(ctx, dayStart.UTC(), dayStart.AddDate(0, 0, 1).UTC(), dashboardTopN)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dashboard")
	}
	return totals, nil
}

func storeLocation(loc *time.Location) *time.Location {
	if loc != nil {
		return loc
	}
	if zone, err := time.LoadLocation(defaultStoreZoneID); err == nil {
		return zone
	}
	return time.UTC
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}
