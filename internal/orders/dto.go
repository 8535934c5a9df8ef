package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	"github.com/electronicjova/storefront-backend/pkg/types"
)

// ListFilters narrow order listings. UserID is forced for customer listings.
type ListFilters struct {
	UserID        *uuid.UUID
	OrderStatus   *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
}

// ShipInput carries the shipment data required to mark an order shipped.
type ShipInput struct {
	Carrier        string `json:"carrier" validate:"required,max=64"`
	TrackingNumber string `json:"trackingNumber" validate:"required,max=128"`
}

// ShippingContactInput edits the contact frozen on the order. Nil fields are
// left unchanged.
type ShippingContactInput struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=120"`
	PhoneNumber   *string `json:"phoneNumber" validate:"omitempty,min=7,max=32"`
	StreetAddress *string `json:"streetAddress" validate:"omitempty,min=1,max=200"`
	City          *string `json:"city" validate:"omitempty,min=1,max=80"`
	State         *string `json:"state" validate:"omitempty,min=1,max=80"`
	PostalCode    *string `json:"postalCode" validate:"omitempty,min=3,max=16"`
}

// DashboardTotals are the admin landing figures.
type DashboardTotals struct {
	SalesToday    decimal.Decimal `json:"salesToday"`
	PendingOrders int64           `json:"pendingOrders"`
	ProductCount  int64           `json:"productCount"`
	TopProducts   []TopProduct    `json:"topProducts"`
}

// TopProduct is one best seller ranked by units across all order lines.
type TopProduct struct {
	ProductID uuid.UUID `json:"productId" gorm:"column:product_id"`
	Name      string    `json:"name" gorm:"column:name"`
	UnitsSold int64     `json:"unitsSold" gorm:"column:units_sold"`
}

// StatusView renders a status with its customer-facing presentation.
type StatusView struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
}

type OrderSummary struct {
	ID            uuid.UUID       `json:"id"`
	OrderDate     time.Time       `json:"orderDate"`
	OrderTotal    decimal.Decimal `json:"orderTotal"`
	OrderStatus   StatusView      `json:"orderStatus"`
	PaymentStatus StatusView      `json:"paymentStatus"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
}

type LineView struct {
	ID        uuid.UUID             `json:"id"`
	ProductID uuid.UUID             `json:"productId"`
	Product   string                `json:"product,omitempty"`
	Count     int                   `json:"count"`
	Price     decimal.Decimal       `json:"price"`
	LineTotal decimal.Decimal       `json:"lineTotal"`
	Options   types.OptionSnapshots `json:"options"`
	Note      *string               `json:"note,omitempty"`
}

type StatusLogView struct {
	From      *string   `json:"from,omitempty"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changedAt"`
	ChangedBy string    `json:"changedBy"`
	Note      string    `json:"note,omitempty"`
}

type OrderView struct {
	OrderSummary
	ShippingDate    *time.Time      `json:"shippingDate,omitempty"`
	Carrier         *string         `json:"carrier,omitempty"`
	TrackingNumber  *string         `json:"trackingNumber,omitempty"`
	PhoneNumber     string          `json:"phoneNumber"`
	StreetAddress   string          `json:"streetAddress"`
	City            string          `json:"city"`
	State           string          `json:"state"`
	PostalCode      string          `json:"postalCode"`
	PaymentIntentID *string         `json:"paymentIntentId,omitempty"`
	Lines           []LineView      `json:"lines"`
	History         []StatusLogView `json:"history"`
}

func orderStatusView(s enums.OrderStatus) StatusView {
	return StatusView{Value: s.String(), Label: s.Label(), Icon: s.Icon()}
}

func summarize(o models.OrderHeader) OrderSummary {
	return OrderSummary{
		ID:            o.ID,
		OrderDate:     o.OrderDate,
		OrderTotal:    o.OrderTotal,
		OrderStatus:   orderStatusView(o.OrderStatus),
		PaymentStatus: StatusView{Value: o.PaymentStatus.String(), Label: o.PaymentStatus.Label()},
		Name:          o.Name,
		Email:         o.Email,
	}
}

// ToView flattens an order with its lines and history for API responses.
func ToView(o models.OrderHeader) OrderView {
	view := OrderView{
		OrderSummary:    summarize(o),
		ShippingDate:    o.ShippingDate,
		Carrier:         o.Carrier,
		TrackingNumber:  o.TrackingNumber,
		PhoneNumber:     o.PhoneNumber,
		StreetAddress:   o.StreetAddress,
		City:            o.City,
		State:           o.State,
		PostalCode:      o.PostalCode,
		PaymentIntentID: o.PaymentIntentID,
		Lines:           make([]LineView, 0, len(o.Details)),
		History:         make([]StatusLogView, 0, len(o.StatusLogs)),
	}
	for _, d := range o.Details {
		line := LineView{
			ID:        d.ID,
			ProductID: d.ProductID,
			Count:     d.Count,
			Price:     d.Price,
			LineTotal: d.LineTotal(),
			Options:   d.Options,
			Note:      d.Note,
		}
		if d.Product != nil {
			line.Product = d.Product.Name
		}
		view.Lines = append(view.Lines, line)
	}
	for _, l := range o.StatusLogs {
		entry := StatusLogView{
			To:        l.ToStatus.String(),
			ChangedAt: l.ChangedAt,
			ChangedBy: l.ChangedBy,
			Note:      l.Note,
		}
		if l.FromStatus != nil {
			from := l.FromStatus.String()
			entry.From = &from
		}
		view.History = append(view.History, entry)
	}
	return view
}
