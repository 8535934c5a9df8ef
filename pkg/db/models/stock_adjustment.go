package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/electronicjova/storefront-backend/pkg/enums"
)

// StockAdjustment records every stock movement. Order-driven rows are unique
// per (order, product, reason) so a paid decrement and its cancellation
// reversal each land at most once.
type StockAdjustment struct {
	ID             uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	ProductID      uuid.UUID                   `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_stock_adjustments_order_product_reason,priority:2"`
	OrderHeaderID  *uuid.UUID                  `gorm:"column:order_header_id;type:uuid;uniqueIndex:ux_stock_adjustments_order_product_reason,priority:1"`
	Delta          int                         `gorm:"column:delta;not null"`
	Reason         enums.StockAdjustmentReason `gorm:"column:reason;not null;uniqueIndex:ux_stock_adjustments_order_product_reason,priority:3"`
	ResultingStock int                         `gorm:"column:resulting_stock;not null"`
	Shortfall      bool                        `gorm:"column:shortfall;not null"`
	CreatedAt      time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

func (a *StockAdjustment) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
