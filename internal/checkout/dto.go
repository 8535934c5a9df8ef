package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShippingInput is the contact the order ships to. It is frozen on the
// order header at submission.
type ShippingInput struct {
	Name          string `json:"name" validate:"required,max=120"`
	PhoneNumber   string `json:"phoneNumber" validate:"required,min=7,max=32"`
	Email         string `json:"email" validate:"omitempty,email"`
	StreetAddress string `json:"streetAddress" validate:"required,max=200"`
	City          string `json:"city" validate:"required,max=80"`
	State         string `json:"state" validate:"required,max=80"`
	PostalCode    string `json:"postalCode" validate:"required,min=3,max=16"`
}

// Result is returned by a successful submission.
type Result struct {
	OrderID     uuid.UUID       `json:"orderId"`
	RedirectURL string          `json:"redirectUrl"`
	Total       decimal.Decimal `json:"total"`
}
