package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus tracks the money side of an order.
type PaymentStatus int

const (
	PaymentStatusPending PaymentStatus = iota
	PaymentStatusApproved
	PaymentStatusRefunded
)

var paymentStatusPresentation = map[PaymentStatus]statusPresentation{
	PaymentStatusPending:  {name: "pending", label: "Pendiente"},
	PaymentStatusApproved: {name: "approved", label: "Aprobado"},
	PaymentStatusRefunded: {name: "refunded", label: "Reembolsado"},
}

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusApproved,
	PaymentStatusRefunded,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	if pres, ok := paymentStatusPresentation[p]; ok {
		return pres.name
	}
	return fmt.Sprintf("payment_status(%d)", int(p))
}

func (p PaymentStatus) Label() string {
	return paymentStatusPresentation[p].label
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	_, ok := paymentStatusPresentation[p]
	return ok
}

func (p PaymentStatus) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid payment status %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *PaymentStatus) UnmarshalText(text []byte) error {
	parsed, err := ParsePaymentStatus(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentStatuses {
		if candidate.String() == normalized {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("invalid payment status %q", value)
}
