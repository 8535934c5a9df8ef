// Package stock owns every change to products.stock. Each order-driven
// change is recorded as a stock_adjustments row, and the unique
// (order, product, reason) index makes each one apply at most once.
package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
	"github.com/electronicjova/storefront-backend/pkg/logger"
)

type shortfallRecorder interface {
	StockShortfall()
}

// Adjustment is the outcome of one applied stock change.
type Adjustment struct {
	ProductID      uuid.UUID
	Delta          int
	ResultingStock int
	Shortfall      bool
	// Applied is false when the same (order, product, reason) change was
	// already recorded and nothing happened.
	Applied bool
}

type Ledger struct {
	db      *gorm.DB
	logg    *logger.Logger
	metrics shortfallRecorder
}

func NewLedger(db *gorm.DB, logg *logger.Logger, metrics shortfallRecorder) *Ledger {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Ledger{db: db, logg: logg, metrics: metrics}
}

// ReserveCheck reports whether the product currently has at least qty units.
// It is a point-in-time read and reserves nothing.
func (l *Ledger) ReserveCheck(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	var product models.Product
	err := l.db.WithContext(ctx).Select("id", "stock").Where("id = ?", productID).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{"product_id": productID})
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stock")
	}
	return product.Stock >= qty, nil
}

// Decrement takes qty units for a paid order. It never refuses on
// insufficient stock: the money already moved, so the row goes negative,
// is flagged as a shortfall and a warning is logged.
func (l *Ledger) Decrement(ctx context.Context, tx *gorm.DB, productID, orderID uuid.UUID, qty int) (Adjustment, error) {
	adj, err := l.apply(ctx, tx, productID, orderID, -qty, enums.StockReasonOrderPaid)
	if err != nil || !adj.Applied {
		return adj, err
	}
	if adj.ResultingStock < 0 {
		adj.Shortfall = true
		if err := tx.WithContext(ctx).Model(&models.StockAdjustment{}).
			Where("order_header_id = ? AND product_id = ? AND reason = ?", orderID, productID, enums.StockReasonOrderPaid).
			Update("shortfall", true).Error; err != nil {
			return adj, fmt.Errorf("flag shortfall: %w", err)
		}
		if l.metrics != nil {
			l.metrics.StockShortfall()
		}
		l.logg.Warn(l.logg.WithFields(ctx, map[string]any{
			"product_id":      productID.String(),
			"order_id":        orderID.String(),
			"requested":       qty,
			"resulting_stock": adj.ResultingStock,
		}), "stock shortfall on paid order")
	}
	return adj, nil
}

// Increment returns qty units because an order was cancelled.
func (l *Ledger) Increment(ctx context.Context, tx *gorm.DB, productID, orderID uuid.UUID, qty int) (Adjustment, error) {
	return l.apply(ctx, tx, productID, orderID, qty, enums.StockReasonOrderCancelled)
}

// DecrementOrder decrements every line of a paid order. Lines of the same
// product are summed first. Products are visited in id order so concurrent
// orders lock rows in the same sequence.
func (l *Ledger) DecrementOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []models.OrderDetail) ([]Adjustment, error) {
	totals := map[uuid.UUID]int{}
	for _, line := range lines {
		totals[line.ProductID] += line.Count
	}
	ids := make([]uuid.UUID, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	out := make([]Adjustment, 0, len(ids))
	for _, id := range ids {
		adj, err := l.Decrement(ctx, tx, id, orderID, totals[id])
		if err != nil {
			return nil, err
		}
		out = append(out, adj)
	}
	return out, nil
}

// ReverseOrder credits back exactly what the order's payment took. Orders
// that were never paid have nothing recorded and nothing is reversed.
func (l *Ledger) ReverseOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]Adjustment, error) {
	var paid []models.StockAdjustment
	if err := tx.WithContext(ctx).
		Where("order_header_id = ? AND reason = ?", orderID, enums.StockReasonOrderPaid).
		Order("product_id ASC").
		Find(&paid).Error; err != nil {
		return nil, fmt.Errorf("load paid adjustments: %w", err)
	}

	out := make([]Adjustment, 0, len(paid))
	for _, row := range paid {
		adj, err := l.Increment(ctx, tx, row.ProductID, orderID, -row.Delta)
		if err != nil {
			return nil, err
		}
		if adj.Applied {
			out = append(out, adj)
		}
	}
	return out, nil
}

func (l *Ledger) apply(ctx context.Context, tx *gorm.DB, productID, orderID uuid.UUID, delta int, reason enums.StockAdjustmentReason) (Adjustment, error) {
	adj := Adjustment{ProductID: productID, Delta: delta}
	if tx == nil {
		return adj, errors.New("transaction required")
	}
	if delta == 0 {
		return adj, nil
	}
	tx = tx.WithContext(ctx)

	row := models.StockAdjustment{
		ProductID:     productID,
		OrderHeaderID: &orderID,
		Delta:         delta,
		Reason:        reason,
	}
	claim := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if claim.Error != nil {
		return adj, fmt.Errorf("record stock adjustment: %w", claim.Error)
	}
	if claim.RowsAffected == 0 {
		return adj, nil
	}

	res := tx.Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return adj, fmt.Errorf("update product stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return adj, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{"product_id": productID})
	}

	var stock int
	if err := tx.Model(&models.Product{}).Select("stock").Where("id = ?", productID).Scan(&stock).Error; err != nil {
		return adj, fmt.Errorf("read product stock: %w", err)
	}
	if err := tx.Model(&models.StockAdjustment{}).Where("id = ?", row.ID).Update("resulting_stock", stock).Error; err != nil {
		return adj, fmt.Errorf("record resulting stock: %w", err)
	}

	adj.ResultingStock = stock
	adj.Applied = true
	return adj, nil
}
