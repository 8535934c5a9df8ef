package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/electronicjova/storefront-backend/pkg/enums"
	"github.com/electronicjova/storefront-backend/pkg/types"
)

// OrderDetail is a line item with its price and options frozen at checkout.
type OrderDetail struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderHeaderID uuid.UUID             `gorm:"column:order_header_id;type:uuid;not null;index"`
	ProductID     uuid.UUID             `gorm:"column:product_id;type:uuid;not null;index"`
	Product       *Product              `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	Count         int                   `gorm:"column:count;not null"`
	Price         decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null"`
	Options       types.OptionSnapshots `gorm:"column:options;type:text;not null"`
	Note          *string               `gorm:"column:note"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (d *OrderDetail) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}

// LineTotal is the frozen unit price times the quantity.
func (d OrderDetail) LineTotal() decimal.Decimal {
	return d.Price.Mul(decimal.NewFromInt(int64(d.Count)))
}

// OrderStatusLog is one append-only audit row of an order status change.
type OrderStatusLog struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderHeaderID uuid.UUID          `gorm:"column:order_header_id;type:uuid;not null;index"`
	FromStatus    *enums.OrderStatus `gorm:"column:from_status"`
	ToStatus      enums.OrderStatus  `gorm:"column:to_status;not null"`
	ChangedAt     time.Time          `gorm:"column:changed_at;not null"`
	ChangedBy     string             `gorm:"column:changed_by;not null"`
	Note          string             `gorm:"column:note;not null;default:''"`
}

func (l *OrderStatusLog) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	if l.ChangedAt.IsZero() {
		l.ChangedAt = time.Now().UTC()
	}
	return nil
}
