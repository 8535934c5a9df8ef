package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electronicjova/storefront-backend/pkg/db"
	"github.com/electronicjova/storefront-backend/pkg/db/dbtest"
	"github.com/electronicjova/storefront-backend/pkg/db/models"
	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()), client)
	require.NoError(t, err)
	return svc, client
}

func createProduct(t *testing.T, client *db.Client, stock int) models.Product {
	t.Helper()
	ten := decimal.NewFromInt(10)
	p := models.Product{
		Name:     "Sensor DHT22",
		Price:    ten,
		Price50:  ten,
		Price100: ten,
		Stock:    stock,
		Options:  []models.ProductOption{{Name: "pack", Value: "x2"}},
	}
	require.NoError(t, client.DB().Create(&p).Error)
	return p
}

func TestDeleteUnreferencedProduct(t *testing.T) {
	svc, client := newTestService(t)
	p := createProduct(t, client, 4)

	require.NoError(t, svc.Delete(context.Background(), p.ID))

	var count int64
	require.NoError(t, client.DB().Model(&models.Product{}).Where("id = ?", p.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteReferencedProductConflicts(t *testing.T) {
	svc, client := newTestService(t)
	p := createProduct(t, client, 4)

	order := models.OrderHeader{
		OrderTotal: decimal.NewFromInt(10), Name: "Ana", PhoneNumber: "1", Email: "a@b.c",
		StreetAddress: "s", City: "c", State: "st", PostalCode: "1",
		Details: []models.OrderDetail{{ProductID: p.ID, Count: 1, Price: decimal.NewFromInt(10)}},
	}
	require.NoError(t, client.DB().Create(&order).Error)

	err := svc.Delete(context.Background(), p.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Contains(t, err.Error(), "Sensor DHT22")

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	details, ok := appErr.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, p.ID, details["product_id"])
	assert.EqualValues(t, 1, details["order_lines"])

	var stored models.Product
	require.NoError(t, client.DB().First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, 4, stored.Stock)
}

func TestDeleteMissingProduct(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Delete(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = svc.Delete(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
