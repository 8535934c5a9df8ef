package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
)

// SessionLine is one priced line sent to Stripe Checkout.
type SessionLine struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// SessionRequest describes a hosted checkout session for one order.
type SessionRequest struct {
	OrderID       string
	CustomerEmail string
	Lines         []SessionLine
	SuccessURL    string
	CancelURL     string
}

// Session is the subset of the created session the storefront keeps.
type Session struct {
	ID  string
	URL string
}

// MinorUnits converts a decimal amount to the smallest currency unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// CreateCheckoutSession opens a payment-mode session bounded by the client timeout.
func (c *Client) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params, err := c.sessionParams(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + req.OrderID)

	created, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Session{ID: created.ID, URL: created.URL}, nil
}

func (c *Client) sessionParams(req SessionRequest) (*stripe.CheckoutSessionParams, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, errors.New("order id is required")
	}
	if len(req.Lines) == 0 {
		return nil, errors.New("at least one line is required")
	}

	currency := c.Currency()
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Lines))
	for _, line := range req.Lines {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(line.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
			},
			Quantity: stripe.Int64(line.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         items,
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata("order_id", req.OrderID)
	return params, nil
}
