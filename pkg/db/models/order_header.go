package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/electronicjova/storefront-backend/pkg/enums"
)

// OrderHeader is the aggregate root of one checkout. Shipping contact fields
// are frozen at creation so later profile edits never rewrite history.
type OrderHeader struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID          *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	OrderDate       time.Time           `gorm:"column:order_date;not null;index"`
	ShippingDate    *time.Time          `gorm:"column:shipping_date"`
	OrderTotal      decimal.Decimal     `gorm:"column:order_total;type:numeric(12,2);not null"`
	OrderStatus     enums.OrderStatus   `gorm:"column:order_status;not null"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;not null"`
	TrackingNumber  *string             `gorm:"column:tracking_number"`
	Carrier         *string             `gorm:"column:carrier"`
	SessionID       *string             `gorm:"column:session_id;uniqueIndex:ux_order_headers_session_id"`
	PaymentIntentID *string             `gorm:"column:payment_intent_id"`

	Name          string `gorm:"column:name;not null"`
	PhoneNumber   string `gorm:"column:phone_number;not null"`
	Email         string `gorm:"column:email;not null"`
	StreetAddress string `gorm:"column:street_address;not null"`
	City          string `gorm:"column:city;not null"`
	State         string `gorm:"column:state;not null"`
	PostalCode    string `gorm:"column:postal_code;not null"`

	Details    []OrderDetail    `gorm:"foreignKey:OrderHeaderID;constraint:OnDelete:CASCADE"`
	StatusLogs []OrderStatusLog `gorm:"foreignKey:OrderHeaderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *OrderHeader) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	if o.OrderDate.IsZero() {
		o.OrderDate = time.Now().UTC()
	}
	return nil
}

// OwnedBy reports whether the order belongs to the given user.
func (o *OrderHeader) OwnedBy(userID uuid.UUID) bool {
	return o != nil && o.UserID != nil && *o.UserID == userID
}
