package notifications

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	"github.com/electronicjova/storefront-backend/pkg/logger"
)

// Change describes a committed order status change.
type Change struct {
	Order    models.OrderHeader
	From     *enums.OrderStatus
	To       enums.OrderStatus
	Refunded bool
}

// Hook is a side effect that runs after the status change has committed.
type Hook interface {
	Name() string
	Run(ctx context.Context, change Change) error
}

type failureRecorder interface {
	HookFailure(hook string)
}

// Dispatcher runs every hook for a change. A failing or panicking hook does
// not prevent the others from running.
type Dispatcher struct {
	hooks   []Hook
	logg    *logger.Logger
	metrics failureRecorder
}

func NewDispatcher(logg *logger.Logger, metrics failureRecorder, hooks ...Hook) *Dispatcher {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{hooks: hooks, logg: logg, metrics: metrics}
}

// OrderStatusChanged runs the hooks and returns their combined error.
func (d *Dispatcher) OrderStatusChanged(ctx context.Context, change Change) error {
	if d == nil {
		return nil
	}
	ctx = d.logg.WithFields(ctx, map[string]any{
		"order_id":  change.Order.ID.String(),
		"to_status": change.To.String(),
	})

	var combined error
	for _, hook := range d.hooks {
		if err := d.run(ctx, hook, change); err != nil {
			if d.metrics != nil {
				d.metrics.HookFailure(hook.Name())
			}
			d.logg.Error(d.logg.WithField(ctx, "hook", hook.Name()), "post-commit hook failed", err)
			combined = multierr.Append(combined, err)
		}
	}
	return combined
}

func (d *Dispatcher) run(ctx context.Context, hook Hook, change Change) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s hook panic: %v", hook.Name(), r)
		}
	}()
	return hook.Run(ctx, change)
}
