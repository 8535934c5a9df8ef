package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/refund"
)

// Refund returns the full amount of a payment intent as requested by the
// customer. The idempotency key makes retries of the same cancellation safe.
func (c *Client) Refund(ctx context.Context, paymentIntentID, idempotencyKey string) (string, error) {
	if paymentIntentID == "" {
		return "", errors.New("payment intent id is required")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	created, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("create refund: %w", err)
	}
	return created.ID, nil
}
