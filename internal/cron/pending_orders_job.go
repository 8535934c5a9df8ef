package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/electronicjova/storefront-backend/pkg/auth"
	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/logger"
)

const (
	defaultPendingOrderTTL = 48 * time.Hour
	pendingOrderBatch      = 100
)

type stalePendingReader interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.OrderHeader, error)
}

type orderAbandoner interface {
	Abandon(ctx context.Context, identity auth.Identity, orderID uuid.UUID) (*models.OrderHeader, error)
}

type PendingOrderJobParams struct {
	Logger *logger.Logger
	Reader stalePendingReader
	Orders orderAbandoner
	TTL    time.Duration
}

// NewPendingOrderJob cancels orders whose payment page was left without
// payment or a cancel redirect. Orders paid in the meantime are left alone by
// the abandon guard.
func NewPendingOrderJob(params PendingOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("pending order reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	return &pendingOrderJob{
		logg:   params.Logger,
		reader: params.Reader,
		orders: params.Orders,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

type pendingOrderJob struct {
	logg   *logger.Logger
	reader stalePendingReader
	orders orderAbandoner
	ttl    time.Duration
	now    func() time.Time
}

func (j *pendingOrderJob) Name() string { return "pending-order-expiry" }

func (j *pendingOrderJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.reader.ListStalePending(ctx, cutoff, pendingOrderBatch)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	identity := auth.SystemIdentity(auth.SystemSweeperActor)
	var errs error
	expired := 0
	for _, order := range stale {
		updated, err := j.orders.Abandon(ctx, identity, order.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("abandon order %s: %w", order.ID, err))
			continue
		}
		if updated != nil && updated.OrderStatus != order.OrderStatus {
			expired++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"scanned": len(stale),
		"expired": expired,
	}), "pending order expiry complete")
	return errs
}
