package enums

import (
	"fmt"
	"strings"
)

// OrderStatus is the fulfillment lifecycle of an order header. The integer
// value is what gets persisted and compared; labels are derived.
type OrderStatus int

const (
	OrderStatusPending OrderStatus = iota
	OrderStatusApproved
	OrderStatusProcessing
	OrderStatusShipped
	OrderStatusDelivered
	OrderStatusCancelled
)

type statusPresentation struct {
	name  string
	label string
	icon  string
}

var orderStatusPresentation = map[OrderStatus]statusPresentation{
	OrderStatusPending:    {name: "pending", label: "Pendiente de pago", icon: "bi-hourglass-split"},
	OrderStatusApproved:   {name: "approved", label: "Pago aprobado", icon: "bi-check-circle"},
	OrderStatusProcessing: {name: "processing", label: "En proceso", icon: "bi-gear"},
	OrderStatusShipped:    {name: "shipped", label: "Enviado", icon: "bi-truck"},
	OrderStatusDelivered:  {name: "delivered", label: "Entregado", icon: "bi-box-seam"},
	OrderStatusCancelled:  {name: "cancelled", label: "Cancelado", icon: "bi-x-circle"},
}

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusApproved,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	if p, ok := orderStatusPresentation[s]; ok {
		return p.name
	}
	return fmt.Sprintf("order_status(%d)", int(s))
}

// Label is the customer-facing display text.
func (s OrderStatus) Label() string {
	return orderStatusPresentation[s].label
}

// Icon is the UI icon hint pushed with real-time updates.
func (s OrderStatus) Icon() string {
	return orderStatusPresentation[s].icon
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	_, ok := orderStatusPresentation[s]
	return ok
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid order status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *OrderStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validOrderStatuses {
		if candidate.String() == normalized {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("invalid order status %q", value)
}
