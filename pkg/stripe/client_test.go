package stripe

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electronicjova/storefront-backend/pkg/config"
)

func TestNewClientValidatesKeys(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{Secret: "whsec"}, nil)
	require.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1"}, nil)
	require.ErrorIs(t, err, errSecretRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_live_1", Secret: "whsec", Env: "test"}, nil)
	require.Error(t, err)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec", Env: "staging"}, nil)
	require.ErrorIs(t, err, errInvalidStripeEnv)

	client, err := NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec", Currency: " MXN "}, nil)
	require.NoError(t, err)
	assert.Equal(t, "test", client.Environment())
	assert.Equal(t, "whsec", client.SigningSecret())
	assert.Equal(t, "mxn", client.Currency())
	assert.Equal(t, defaultTimeout, client.timeout)
}

func TestMinorUnits(t *testing.T) {
	assert.EqualValues(t, 1050, MinorUnits(decimal.RequireFromString("10.50")))
	assert.EqualValues(t, 1000, MinorUnits(decimal.RequireFromString("9.995")))
	assert.EqualValues(t, 0, MinorUnits(decimal.Zero))
}

func TestSessionParams(t *testing.T) {
	client := &Client{currency: "mxn"}

	params, err := client.sessionParams(SessionRequest{
		OrderID:       "ord-1",
		CustomerEmail: "ana@example.com",
		Lines:         []SessionLine{{Name: "Resistor 10k", UnitAmount: 250, Quantity: 60}},
		SuccessURL:    "https://shop/confirm?id=ord-1",
		CancelURL:     "https://shop/cancelled?id=ord-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "payment", *params.Mode)
	assert.Equal(t, "ord-1", *params.ClientReferenceID)
	assert.Equal(t, "ana@example.com", *params.CustomerEmail)
	assert.Equal(t, "ord-1", params.Metadata["order_id"])
	require.Len(t, params.LineItems, 1)
	line := params.LineItems[0]
	assert.Equal(t, "mxn", *line.PriceData.Currency)
	assert.EqualValues(t, 250, *line.PriceData.UnitAmount)
	assert.EqualValues(t, 60, *line.Quantity)
	assert.Equal(t, "Resistor 10k", *line.PriceData.ProductData.Name)
}

func TestSessionParamsRejectsEmpty(t *testing.T) {
	client := &Client{}
	_, err := client.sessionParams(SessionRequest{OrderID: "ord-1"})
	require.Error(t, err)
	_, err = client.sessionParams(SessionRequest{Lines: []SessionLine{{Name: "x", UnitAmount: 1, Quantity: 1}}})
	require.Error(t, err)
}

func TestRefundRequiresPaymentIntent(t *testing.T) {
	_, err := (&Client{}).Refund(context.Background(), "", "refund-1")
	require.Error(t, err)
}
