package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/electronicjova/storefront-backend/pkg/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dsn := fmt.Sprintf("file:dbclient_%s?mode=memory&cache=shared", uuid.NewString())
	client, err := New(context.Background(), config.DBConfig{DSN: dsn, Driver: config.DriverSQLite}, nil)
	require.NoError(t, err)
	require.NoError(t, client.DB().AutoMigrate(&testModel{}))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}))

	var count int64
	require.NoError(t, client.DB().Model(&testModel{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	require.NoError(t, client.DB().Model(&testModel{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestPing(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.Ping(context.Background()))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{DSN: "x", Driver: "oracle"}, nil)
	require.Error(t, err)
}

func TestIsUniqueViolationOnSQLite(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.DB().Create(&testModel{Name: "dup"}).Error)
	err := client.DB().Create(&testModel{Name: "dup"}).Error
	require.Error(t, err)

	assert.True(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(errors.New("other"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestIsForeignKeyViolationMatchesDriverMessages(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(errors.New("FOREIGN KEY constraint failed")))
	assert.True(t, IsForeignKeyViolation(fmt.Errorf("delete: %w", errors.New(`update or delete on table "products" violates foreign key constraint`))))
	assert.False(t, IsForeignKeyViolation(errors.New("UNIQUE constraint failed")))
	assert.False(t, IsForeignKeyViolation(nil))
}
