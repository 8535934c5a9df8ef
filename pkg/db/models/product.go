package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog item with quantity-tiered prices and an integer stock count.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name        string          `gorm:"column:name;not null"`
	Brand       string          `gorm:"column:brand;not null;default:''"`
	Model       string          `gorm:"column:model;not null;default:''"`
	Description *string         `gorm:"column:description"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Price50     decimal.Decimal `gorm:"column:price50;type:numeric(12,2);not null"`
	Price100    decimal.Decimal `gorm:"column:price100;type:numeric(12,2);not null"`
	Stock       int             `gorm:"column:stock;not null"`
	CategoryID  *uuid.UUID      `gorm:"column:category_id;type:uuid"`
	Options     []ProductOption `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// ProductOption is a selectable name/value pair with an optional surcharge.
type ProductOption struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID        `gorm:"column:product_id;type:uuid;not null;index"`
	Name            string           `gorm:"column:name;not null"`
	Value           string           `gorm:"column:value;not null"`
	AdditionalPrice *decimal.Decimal `gorm:"column:additional_price;type:numeric(12,2)"`
}

func (o *ProductOption) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
