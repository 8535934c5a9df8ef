package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/electronicjova/storefront-backend/pkg/db"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the product operations the order core depends on.
type Service interface {
	Delete(ctx context.Context, productID uuid.UUID) error
}

type service struct {
	repo Repository
	tx   txRunner
}

func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// Delete removes a product that was never sold. Any order line referencing
// it makes the delete a CONFLICT and leaves product and stock untouched.
func (s *service) Delete(ctx context.Context, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		refs, err := repo.CountOrderReferences(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count order references")
		}
		if refs > 0 {
			return referencedConflict(product.ID, product.Name, refs)
		}

		if _, err := repo.Delete(ctx, productID); err != nil {
			if db.IsForeignKeyViolation(err) {
				return referencedConflict(product.ID, product.Name, 0)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
		}
		return nil
	})
}

func referencedConflict(id uuid.UUID, name string, refs int64) error {
	details := map[string]any{
		"product_id":   id,
		"product_name": name,
	}
	if refs > 0 {
		details["order_lines"] = refs
	}
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("product %q has order history and cannot be deleted", name)).
		WithDetails(details)
}
