package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	seen        map[string]bool
	setNXError  error
	lastTTL     time.Duration
	lastDeleted string
}

func newFakeStore() *fakeStore {
	return &fakeStore{seen: map[string]bool{}}
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	f.lastTTL = ttl
	if f.setNXError != nil {
		return false, f.setNXError
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "jova:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.seen, k)
		f.lastDeleted = k
	}
	return nil
}

func TestCheckAndMarkProcessed(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)

	ctx := context.Background()
	already, err := manager.CheckAndMarkProcessed(ctx, "analytics", "evt-1")
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, 24*time.Hour, store.lastTTL)
	assert.True(t, store.seen["jova:idempotency:evt:processed:analytics:evt-1"])

	already, err = manager.CheckAndMarkProcessed(ctx, "analytics", "evt-1")
	require.NoError(t, err)
	assert.True(t, already)

	already, err = manager.CheckAndMarkProcessed(ctx, "other", "evt-1")
	require.NoError(t, err)
	assert.False(t, already, "consumers are tracked independently")
}

func TestDeleteAllowsReprocessing(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = manager.CheckAndMarkProcessed(ctx, "analytics", "evt-2")
	require.NoError(t, err)
	require.NoError(t, manager.Delete(ctx, "analytics", "evt-2"))
	assert.Equal(t, "jova:idempotency:evt:processed:analytics:evt-2", store.lastDeleted)

	already, err := manager.CheckAndMarkProcessed(ctx, "analytics", "evt-2")
	require.NoError(t, err)
	assert.False(t, already)
}

func TestManagerValidation(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	require.Error(t, err)
	_, err = NewManager(newFakeStore(), -time.Second)
	require.Error(t, err)

	manager, err := NewManager(newFakeStore(), time.Hour)
	require.NoError(t, err)
	_, err = manager.CheckAndMarkProcessed(context.Background(), "", "evt")
	require.Error(t, err)
	_, err = manager.CheckAndMarkProcessed(context.Background(), "analytics", " ")
	require.Error(t, err)
}

func TestStoreErrorsPropagate(t *testing.T) {
	store := newFakeStore()
	store.setNXError = errors.New("redis down")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "analytics", "evt")
	require.Error(t, err)
}
