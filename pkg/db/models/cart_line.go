package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/electronicjova/storefront-backend/pkg/types"
)

// ShoppingCartLine is one (user, product, options) entry of a cart.
type ShoppingCartLine struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID             `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_cart_lines_user_product_options,priority:1"`
	ProductID  uuid.UUID             `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_cart_lines_user_product_options,priority:2"`
	Product    *Product              `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Count      int                   `gorm:"column:count;not null"`
	Options    types.OptionSnapshots `gorm:"column:options;type:text;not null"`
	OptionsKey string                `gorm:"column:options_key;not null;default:'';uniqueIndex:ux_cart_lines_user_product_options,priority:3"`
	Note       *string               `gorm:"column:note"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (ShoppingCartLine) TableName() string {
	return "shopping_cart_lines"
}

func (l *ShoppingCartLine) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	l.OptionsKey = l.Options.Key()
	return nil
}
