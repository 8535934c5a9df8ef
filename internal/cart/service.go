package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/electronicjova/storefront-backend/internal/pricing"
	"github.com/electronicjova/storefront-backend/pkg/db"
	"github.com/electronicjova/storefront-backend/pkg/db/models"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
	"github.com/electronicjova/storefront-backend/pkg/logger"
	"github.com/electronicjova/storefront-backend/pkg/redis"
	"github.com/electronicjova/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service exposes the shopping cart operations.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) (*View, error)
	Add(ctx context.Context, userID uuid.UUID, input AddInput) (*LineView, error)
	Plus(ctx context.Context, userID, lineID uuid.UUID) (*LineView, error)
	Minus(ctx context.Context, userID, lineID uuid.UUID) (*LineView, error)
	Remove(ctx context.Context, userID, lineID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
	Count(ctx context.Context, userID uuid.UUID) (int, error)
}

// AddInput selects a product, a quantity and option ids of that product.
type AddInput struct {
	ProductID uuid.UUID
	Count     int
	OptionIDs []uuid.UUID
	Note      *string
}

// LineView is a cart line priced at its current quantity tier.
type LineView struct {
	ID          uuid.UUID             `json:"id"`
	ProductID   uuid.UUID             `json:"productId"`
	ProductName string                `json:"productName"`
	Count       int                   `json:"count"`
	Stock       int                   `json:"stock"`
	Options     types.OptionSnapshots `json:"options"`
	Note        *string               `json:"note,omitempty"`
	UnitPrice   decimal.Decimal       `json:"unitPrice"`
	LineTotal   decimal.Decimal       `json:"lineTotal"`
}

type View struct {
	Lines []LineView      `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

type service struct {
	repo     Repository
	tx       txRunner
	products productLoader
	counts   redis.CartCountCache
	countTTL time.Duration
	logg     *logger.Logger
}

// NewService wires the cart service. counts may be nil, in which case the
// line count is always read from the database.
func NewService(repo Repository, tx txRunner, products productLoader, counts redis.CartCountCache, countTTL time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     repo,
		tx:       tx,
		products: products,
		counts:   counts,
		countTTL: countTTL,
		logg:     logg,
	}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	lines, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
	}
	view := &View{Lines: make([]LineView, 0, len(lines)), Total: decimal.Zero}
	for _, line := range lines {
		lv := toView(line)
		view.Total = view.Total.Add(lv.LineTotal)
		view.Lines = append(view.Lines, lv)
	}
	return view, nil
}

// Add merges into an existing line with the same option selection, capping
// the merged quantity at the product's stock.
func (s *service) Add(ctx context.Context, userID uuid.UUID, input AddInput) (*LineView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Count <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "count must be positive")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.Stock <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is out of stock", product.Name)).
			WithDetails(map[string]any{"product_id": product.ID})
	}
	options, err := selectOptions(*product, input.OptionIDs)
	if err != nil {
		return nil, err
	}

	var lineID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindMergeTarget(ctx, userID, product.ID, options.Key())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find cart line")
		}
		if existing != nil {
			lineID = existing.ID
			if err := repo.UpdateCount(ctx, existing.ID, min(existing.Count+input.Count, product.Stock)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
			}
			return nil
		}
		line := &models.ShoppingCartLine{
			UserID:    userID,
			ProductID: product.ID,
			Count:     min(input.Count, product.Stock),
			Options:   options,
			Note:      input.Note,
		}
		if err := repo.Create(ctx, line); err != nil {
			if db.IsUniqueViolation(err, "ux_cart_lines_user_product_options") {
				return pkgerrors.New(pkgerrors.CodeConflict, "cart line changed concurrently; retry")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
		}
		lineID = line.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return s.lineView(ctx, userID, lineID)
}

// Plus adds one unit unless the line already holds all available stock.
func (s *service) Plus(ctx context.Context, userID, lineID uuid.UUID) (*LineView, error) {
	line, err := s.ownedLine(ctx, userID, lineID)
	if err != nil {
		return nil, err
	}
	if line.Product == nil || line.Count >= line.Product.Stock {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock limit reached").
			WithDetails(map[string]any{"product_id": line.ProductID})
	}
	if err := s.repo.UpdateCount(ctx, line.ID, line.Count+1); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	s.invalidate(ctx, userID)
	return s.lineView(ctx, userID, line.ID)
}

// Minus removes one unit; the line disappears when it would reach zero and
// the returned view is nil.
func (s *service) Minus(ctx context.Context, userID, lineID uuid.UUID) (*LineView, error) {
	line, err := s.ownedLine(ctx, userID, lineID)
	if err != nil {
		return nil, err
	}
	if line.Count <= 1 {
		if err := s.repo.Delete(ctx, line.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
		}
		s.invalidate(ctx, userID)
		return nil, nil
	}
	if err := s.repo.UpdateCount(ctx, line.ID, line.Count-1); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	s.invalidate(ctx, userID)
	return s.lineView(ctx, userID, line.ID)
}

func (s *service) Remove(ctx context.Context, userID, lineID uuid.UUID) error {
	line, err := s.ownedLine(ctx, userID, lineID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, line.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	s.invalidate(ctx, userID)
	return nil
}

// Clear empties the cart after a paid checkout.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if _, err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	s.invalidate(ctx, userID)
	return nil
}

// Count returns the number of cart lines, served from the cache when warm.
func (s *service) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if s.counts != nil {
		cached, ok, err := s.counts.GetCartCount(ctx, userID.String())
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart count cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count cart lines")
	}
	if s.counts != nil {
		if err := s.counts.SetCartCount(ctx, userID.String(), int(count), s.countTTL); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart count cache write failed")
		}
	}
	return int(count), nil
}

func (s *service) ownedLine(ctx context.Context, userID, lineID uuid.UUID) (*models.ShoppingCartLine, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	line, err := s.repo.FindForUser(ctx, lineID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
	return line, nil
}

func (s *service) lineView(ctx context.Context, userID, lineID uuid.UUID) (*LineView, error) {
	line, err := s.ownedLine(ctx, userID, lineID)
	if err != nil {
		return nil, err
	}
	lv := toView(*line)
	return &lv, nil
}

func (s *service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.counts == nil {
		return
	}
	if err := s.counts.ClearCartCount(ctx, userID.String()); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart count cache invalidation failed")
	}
}

func selectOptions(product models.Product, ids []uuid.UUID) (types.OptionSnapshots, error) {
	out := make(types.OptionSnapshots, 0, len(ids))
	for _, id := range ids {
		found := false
		for _, opt := range product.Options {
			if opt.ID == id {
				out = append(out, types.OptionSnapshot{Name: opt.Name, Value: opt.Value, AdditionalPrice: opt.AdditionalPrice})
				found = true
				break
			}
		}
		if !found {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "option does not belong to product").
				WithDetails(map[string]any{"product_id": product.ID, "option_id": id})
		}
	}
	return out, nil
}

func toView(line models.ShoppingCartLine) LineView {
	lv := LineView{
		ID:        line.ID,
		ProductID: line.ProductID,
		Count:     line.Count,
		Options:   line.Options,
		Note:      line.Note,
		UnitPrice: decimal.Zero,
		LineTotal: decimal.Zero,
	}
	if line.Product != nil {
		lv.ProductName = line.Product.Name
		lv.Stock = line.Product.Stock
		lv.UnitPrice = pricing.UnitPrice(*line.Product, line.Count, line.Options)
		lv.LineTotal = pricing.LineTotal(lv.UnitPrice, line.Count)
	}
	return lv
}
