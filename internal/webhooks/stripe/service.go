package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/electronicjova/storefront-backend/internal/notifications"
	"github.com/electronicjova/storefront-backend/internal/orders"
	"github.com/electronicjova/storefront-backend/internal/stock"
	"github.com/electronicjova/storefront-backend/pkg/auth"
	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
	"github.com/electronicjova/storefront-backend/pkg/logger"
	"github.com/electronicjova/storefront-backend/pkg/metrics"
	"github.com/electronicjova/storefront-backend/pkg/outbox"
	"github.com/electronicjova/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockDecrementer interface {
	DecrementOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []models.OrderDetail) ([]stock.Adjustment, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type statusNotifier interface {
	OrderStatusChanged(ctx context.Context, change notifications.Change) error
}

type outcomeRecorder interface {
	WebhookOutcome(outcome string)
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type ServiceParams struct {
	OrdersRepo        orders.Repository
	Stock             stockDecrementer
	Outbox            outboxPublisher
	Notifier          statusNotifier
	Metrics           outcomeRecorder
	Guard             eventGuard
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service reconciles Stripe payment events with orders.
type Service struct {
	orders   orders.Repository
	stock    stockDecrementer
	outbox   outboxPublisher
	notifier statusNotifier
	metrics  outcomeRecorder
	guard    eventGuard
	txRunner txRunner
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Stock == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock ledger required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		orders:   params.OrdersRepo,
		stock:    params.Stock,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		guard:    params.Guard,
		txRunner: params.TransactionRunner,
		logg:     logg,
	}, nil
}

// HandleEvent applies one verified Stripe event. A nil error means the
// delivery can be acknowledged, including for events that changed nothing.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	if s.guard != nil && event.ID != "" {
		seen, err := s.guard.CheckAndMark(ctx, event.ID)
		switch {
		case err != nil:
			// The approval CAS keeps a redelivery harmless without the guard.
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "stripe idempotency guard unavailable")
		case seen:
			s.record(metrics.WebhookDuplicate)
			return nil
		}
	}

	outcome, err := s.dispatch(ctx, event)
	if err != nil {
		s.record(metrics.WebhookFailed)
		if s.guard != nil && event.ID != "" {
			if relErr := s.guard.Release(ctx, event.ID); relErr != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", relErr.Error()), "release stripe idempotency key")
			}
		}
		return err
	}
	s.record(outcome)
	return nil
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) (string, error) {
	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return metrics.WebhookIgnored, nil
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return metrics.WebhookIgnored, nil
	}
	if session.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	paymentIntentID := ""
	if session.PaymentIntent != nil {
		paymentIntentID = session.PaymentIntent.ID
	}
	return s.approve(ctx, session.ID, paymentIntentID)
}

func (s *Service) approve(ctx context.Context, sessionID, paymentIntentID string) (string, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"session_id":        sessionID,
		"payment_intent_id": paymentIntentID,
	})
	order, err := s.orders.FindBySessionID(ctx, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logg.Warn(ctx, "no order for checkout session")
		return metrics.WebhookOrderNotFound, nil
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by session")
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	approved := false
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		ok, err := repo.ApprovePayment(ctx, order.ID, paymentIntentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve payment")
		}
		if !ok {
			return nil
		}
		approved = true

		from := enums.OrderStatusPending
		if err := repo.AppendStatusLog(ctx, &models.OrderStatusLog{
			OrderHeaderID: order.ID,
			FromStatus:    &from,
			ToStatus:      enums.OrderStatusApproved,
			ChangedBy:     auth.SystemWebhookActor,
			Note:          "payment confirmed",
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status log")
		}

		adjustments, err := s.stock.DecrementOrder(ctx, tx, order.ID, order.Details)
		if err != nil {
			return err
		}
		var shortfalls []uuid.UUID
		for _, adj := range adjustments {
			if !adj.Shortfall {
				continue
			}
			shortfalls = append(shortfalls, adj.ProductID)
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventStockShortfall,
				AggregateType: enums.AggregateProduct,
				AggregateID:   adj.ProductID,
				Actor:         &outbox.ActorRef{ID: auth.SystemWebhookActor},
				Data: payloads.StockShortfallEvent{
					ProductID:      adj.ProductID,
					OrderID:        order.ID,
					Requested:      -adj.Delta,
					ResultingStock: adj.ResultingStock,
				},
			}); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{ID: auth.SystemWebhookActor},
			Data: payloads.OrderPaidEvent{
				OrderID:         order.ID,
				PaymentIntentID: paymentIntentID,
				Total:           order.OrderTotal,
				Shortfalls:      shortfalls,
			},
		})
	})
	if err != nil {
		s.logg.Error(ctx, "payment approval failed", err)
		return "", err
	}

	current, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		if !approved {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		// Approval is committed; only the notifications are lost.
		s.logg.Error(ctx, "reload approved order", err)
		return metrics.WebhookApproved, nil
	}

	if !approved {
		if current.OrderStatus == enums.OrderStatusCancelled && current.PaymentStatus == enums.PaymentStatusPending {
			s.logg.Warn(ctx, "payment received for cancelled order; manual follow-up required")
			return metrics.WebhookPaymentAfterCancel, nil
		}
		s.logg.Info(s.logg.WithField(ctx, "order_status", current.OrderStatus.String()), "payment already applied")
		return metrics.WebhookAlreadyApplied, nil
	}

	s.logg.Info(ctx, "order payment approved")
	if s.notifier != nil {
		from := enums.OrderStatusPending
		if err := s.notifier.OrderStatusChanged(ctx, notifications.Change{
			Order: *current,
			From:  &from,
			To:    enums.OrderStatusApproved,
		}); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "post-commit hooks failed")
		}
	}
	return metrics.WebhookApproved, nil
}

func (s *Service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.WebhookOutcome(outcome)
	}
}

