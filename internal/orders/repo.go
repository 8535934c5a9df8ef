package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	"github.com/electronicjova/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the header together with its detail lines.
func (r *repository) Create(ctx context.Context, order *models.OrderHeader) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.OrderHeader, error) {
	var order models.OrderHeader
	err := r.db.WithContext(ctx).
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Details.Product").
		Preload("StatusLogs", func(db *gorm.DB) *gorm.DB { return db.Order("changed_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.OrderHeader, error) {
	var order models.OrderHeader
	err := r.db.WithContext(ctx).
		Preload("Details").
		Where("session_id = ?", sessionID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns one page of headers, newest first, plus the cursor of the
// next page when there is one.
func (r *repository) List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.OrderHeader, *pagination.Cursor, error) {
	normalized := pagination.NormalizeLimit(limit)
	query := r.db.WithContext(ctx).Model(&models.OrderHeader{})
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.OrderStatus != nil {
		query = query.Where("order_status = ?", *filters.OrderStatus)
	}
	if filters.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filters.PaymentStatus)
	}
	if cursor != nil {
		query = query.Where("(order_date, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.OrderHeader
	if err := query.Order("order_date DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) > normalized {
		last := rows[normalized-1]
		return rows[:normalized], &pagination.Cursor{CreatedAt: last.OrderDate, ID: last.ID}, nil
	}
	return rows, nil, nil
}

// ListStalePending returns unpaid pending orders placed before cutoff,
// oldest first.
func (r *repository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.OrderHeader, error) {
	var rows []models.OrderHeader
	err := r.db.WithContext(ctx).
		Where("order_status = ? AND payment_status = ? AND order_date < ?", enums.OrderStatusPending, enums.PaymentStatusPending, cutoff).
		Order("order_date ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CompareAndSetStatus applies updates only while the order still has the
// observed status. It reports whether the row changed.
func (r *repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, observed enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderHeader{}).
		Where("id = ? AND order_status = ?", id, observed).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ApprovePayment moves a fully pending order to approved. Concurrent or
// repeated approvals change zero rows.
func (r *repository) ApprovePayment(ctx context.Context, id uuid.UUID, paymentIntentID string) (bool, error) {
	updates := map[string]any{
		"payment_status": enums.PaymentStatusApproved,
		"order_status":   enums.OrderStatusApproved,
	}
	if paymentIntentID != "" {
		updates["payment_intent_id"] = paymentIntentID
	}
	res := r.db.WithContext(ctx).
		Model(&models.OrderHeader{}).
		Where("id = ? AND payment_status = ? AND order_status = ?", id, enums.PaymentStatusPending, enums.OrderStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetSessionID(ctx context.Context, id uuid.UUID, sessionID string) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderHeader{}).
		Where("id = ?", id).
		Update("session_id", sessionID).Error
}

func (r *repository) UpdateShippingContact(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.OrderHeader{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) AppendStatusLog(ctx context.Context, entry *models.OrderStatusLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Dashboard aggregates the admin landing figures. Sales count approved
// payments of orders placed in [dayStart, dayEnd).
func (r *repository) Dashboard(ctx context.Context, dayStart, dayEnd time.Time, topN int) (*DashboardTotals, error) {
	db := r.db.WithContext(ctx)
	totals := &DashboardTotals{TopProducts: []TopProduct{}}

	var sales decimal.NullDecimal
	if err := db.Model(&models.OrderHeader{}).
		Select("SUM(order_total)").
		Where("payment_status = ? AND order_date >= ? AND order_date < ?", enums.PaymentStatusApproved, dayStart, dayEnd).
		Row().Scan(&sales); err != nil {
		return nil, err
	}
	if sales.Valid {
		totals.SalesToday = sales.Decimal
	}

	if err := db.Model(&models.OrderHeader{}).
		Where("order_status = ?", enums.OrderStatusPending).
		Count(&totals.PendingOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Product{}).Count(&totals.ProductCount).Error; err != nil {
		return nil, err
	}

	if topN > 0 {
		if err := db.Table("order_details AS d").
			Select("d.product_id AS product_id, p.name AS name, SUM(d.count) AS units_sold").
			Joins("JOIN products p ON p.id = d.product_id").
			Group("d.product_id, p.name").
			Order("units_sold DESC, p.name ASC").
			Limit(topN).
			Scan(&totals.TopProducts).Error; err != nil {
			return nil, err
		}
	}
	return totals, nil
}
