package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	"github.com/electronicjova/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for order headers, lines and
// their status history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.OrderHeader) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.OrderHeader, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.OrderHeader, error)
	List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.OrderHeader, *pagination.Cursor, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.OrderHeader, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, observed enums.OrderStatus, updates map[string]any) (bool, error)
	ApprovePayment(ctx context.Context, id uuid.UUID, paymentIntentID string) (bool, error)
	SetSessionID(ctx context.Context, id uuid.UUID, sessionID string) error
	UpdateShippingContact(ctx context.Context, id uuid.UUID, updates map[string]any) error
	AppendStatusLog(ctx context.Context, entry *models.OrderStatusLog) error
	Dashboard(ctx context.Context, dayStart, dayEnd time.Time, topN int) (*DashboardTotals, error)
}
