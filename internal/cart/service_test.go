package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electronicjova/storefront-backend/internal/products"
	"github.com/electronicjova/storefront-backend/pkg/db"
	"github.com/electronicjova/storefront-backend/pkg/db/dbtest"
	"github.com/electronicjova/storefront-backend/pkg/db/models"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
	"github.com/electronicjova/storefront-backend/pkg/logger"
)

type stubCountCache struct {
	counts  map[string]int
	cleared int
}

func newStubCountCache() *stubCountCache {
	return &stubCountCache{counts: map[string]int{}}
}

func (s *stubCountCache) GetCartCount(_ context.Context, userID string) (int, bool, error) {
	v, ok := s.counts[userID]
	return v, ok, nil
}

func (s *stubCountCache) SetCartCount(_ context.Context, userID string, count int, _ time.Duration) error {
	s.counts[userID] = count
	return nil
}

func (s *stubCountCache) ClearCartCount(_ context.Context, userID string) error {
	delete(s.counts, userID)
	s.cleared++
	return nil
}

type fixture struct {
	svc    Service
	client *db.Client
	cache  *stubCountCache
	user   uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	cache := newStubCountCache()
	svc, err := NewService(NewRepository(client.DB()), client, products.NewRepository(client.DB()), cache, time.Hour, logger.Nop())
	require.NoError(t, err)
	return fixture{svc: svc, client: client, cache: cache, user: uuid.New()}
}

func (f fixture) seedProduct(t *testing.T, stock int) models.Product {
	t.Helper()
	surcharge := decimal.NewFromInt(30)
	p := models.Product{
		Name:     "Arduino Uno",
		Price:    decimal.NewFromInt(200),
		Price50:  decimal.NewFromInt(180),
		Price100: decimal.NewFromInt(150),
		Stock:    stock,
		Options: []models.ProductOption{
			{Name: "color", Value: "azul", AdditionalPrice: &surcharge},
			{Name: "cable", Value: "usb"},
		},
	}
	require.NoError(t, f.client.DB().Create(&p).Error)
	return p
}

func TestAddMergesSameOptionSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, 10)

	first, err := f.svc.Add(ctx, f.user, AddInput{ProductID: p.ID, Count: 2, OptionIDs: []uuid.UUID{p.Options[0].ID, p.Options[1].ID}})
	require.NoError(t, err)
	second, err := f.svc.Add(ctx, f.user, AddInput{ProductID: p.ID, Count: 3, OptionIDs: []uuid.UUID{p.Options[1].ID, p.Options[0].ID}})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Count)
	assert.True(t, decimal.NewFromInt(230).Equal(second.UnitPrice))
	assert.True(t, decimal.NewFromInt(1150).Equal(second.LineTotal))

	other, err := f.svc.Add(ctx, f.user, AddInput{ProductID: p.ID, Count: 1})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	view, err := f.svc.List(ctx, f.user)
	require.NoError(t, err)
	assert.Len(t, view.Lines, 2)
	assert.True(t, decimal.NewFromInt(1350).Equal(view.Total))
}

func TestAddCapsAtStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, 4)

	line, err := f.svc.Add(ctx, f.user, AddInput{ProductID: p.ID, Count: 3})
	require.NoError(t, err)
	line, err = f.svc.Add(ctx, f.user, AddInput{ProductID: p.ID, Count: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, line.Count)
}

func TestAddRejectsForeignOptionAndOutOfStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, 2)

	_, err := f.svc.Add(ctx, f.user, AddInput{ProductID: p.ID, Count: 1, OptionIDs: []uuid.UUID{uuid.New()}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	empty := f.seedProduct(t, 0)
	_, err = f.svc.Add(ctx, f.user, AddInput{ProductID: empty.ID, Count: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Add(ctx, f.user, AddInput{ProductID: uuid.New(), Count: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPlusStopsAtStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, 2)

	line, err := f.svc.Add(ctx, f.user, AddInput{ProductID: p.ID, Count: 1})
	require.NoError(t, err)

	line, err = f.svc.Plus(ctx, f.user, line.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Count)

	_, err = f.svc.Plus(ctx, f.user, line.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMinusRemovesAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, 5)

	line, err := f.svc.Add(ctx, f.user, AddInput{ProductID: p.ID, Count: 2})
	require.NoError(t, err)

	line, err = f.svc.Minus(ctx, f.user, line.ID)
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Equal(t, 1, line.Count)

	removed, err := f.svc.Minus(ctx, f.user, line.ID)
	require.NoError(t, err)
	assert.Nil(t, removed)

	count, err := f.svc.Count(ctx, f.user)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLinesOfOtherUsersAreHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, 5)

	line, err := f.svc.Add(ctx, f.user, AddInput{ProductID: p.ID, Count: 1})
	require.NoError(t, err)

	stranger := uuid.New()
	_, err = f.svc.Plus(ctx, stranger, line.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(f.svc.Remove(ctx, stranger, line.ID), pkgerrors.CodeNotFound))
}

func TestCountCacheInvalidatedOnMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, 5)

	count, err := f.svc.Count(ctx, f.user)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 0, f.cache.counts[f.user.String()])

	line, err := f.svc.Add(ctx, f.user, AddInput{ProductID: p.ID, Count: 1})
	require.NoError(t, err)
	_, cached := f.cache.counts[f.user.String()]
	assert.False(t, cached)

	count, err = f.svc.Count(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, f.svc.Remove(ctx, f.user, line.ID))
	count, err = f.svc.Count(ctx, f.user)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = f.svc.Add(ctx, f.user, AddInput{ProductID: p.ID, Count: 1})
	require.NoError(t, err)
	require.NoError(t, f.svc.Clear(ctx, f.user))
	count, err = f.svc.Count(ctx, f.user)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 4, f.cache.cleared)
}
