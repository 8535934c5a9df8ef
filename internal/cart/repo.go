package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/electronicjova/storefront-backend/pkg/db/models"
)

// Repository defines the persistence surface required by the cart service.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ShoppingCartLine, error)
	FindForUser(ctx context.Context, id, userID uuid.UUID) (*models.ShoppingCartLine, error)
	FindMergeTarget(ctx context.Context, userID, productID uuid.UUID, optionsKey string) (*models.ShoppingCartLine, error)
	Create(ctx context.Context, line *models.ShoppingCartLine) error
	UpdateCount(ctx context.Context, id uuid.UUID, count int) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ShoppingCartLine, error) {
	var lines []models.ShoppingCartLine
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

func (r *repository) FindForUser(ctx context.Context, id, userID uuid.UUID) (*models.ShoppingCartLine, error) {
	var line models.ShoppingCartLine
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("id = ? AND user_id = ?", id, userID).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// FindMergeTarget returns the existing line with the same product and option
// selection, or nil when the selection is new to the cart.
func (r *repository) FindMergeTarget(ctx context.Context, userID, productID uuid.UUID, optionsKey string) (*models.ShoppingCartLine, error) {
	var line models.ShoppingCartLine
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND options_key = ?", userID, productID, optionsKey).
		First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) Create(ctx context.Context, line *models.ShoppingCartLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

func (r *repository) UpdateCount(ctx context.Context, id uuid.UUID, count int) error {
	return r.db.WithContext(ctx).
		Model(&models.ShoppingCartLine{}).
		Where("id = ?", id).
		Update("count", count).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ShoppingCartLine{}).Error
}

func (r *repository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.ShoppingCartLine{})
	return res.RowsAffected, res.Error
}

func (r *repository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ShoppingCartLine{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
