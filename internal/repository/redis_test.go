package repository

import (
	"context"
	"testing"
	"time"

	"foobar/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisRepo(t *testing.T, ttl time.Duration) (*RedisSnapshotRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSnapshotRepository(client, ttl), mr
}

func TestRedisSnapshotRoundTrip(t *testing.T) {
	repo, _ := setupRedisRepo(t, time.Minute)
	ctx := context.Background()

	snapshot := &models.AccountSnapshot{
		ID:                  "acc-1",
		Balance:             decimal.RequireFromString("931"),
		Currency:            "SEK",
		CanTakeCardPayments: true,
	}
	require.NoError(t, repo.SetSnapshot(ctx, 12345678, snapshot))

	got, err := repo.GetSnapshot(ctx, 12345678)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acc-1", got.ID)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("931")))
	assert.True(t, got.CanTakeCardPayments)

	require.NoError(t, repo.ClearSnapshot(ctx, 12345678))
	got, err = repo.GetSnapshot(ctx, 12345678)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSnapshotMiss(t *testing.T) {
	repo, _ := setupRedisRepo(t, time.Minute)

	got, err := repo.GetSnapshot(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSnapshotTTL(t *testing.T) {
	repo, mr := setupRedisRepo(t, time.Second)
	ctx := context.Background()

	snapshot := &models.AccountSnapshot{ID: "acc-1"}
	require.NoError(t, repo.SetSnapshot(ctx, 42, snapshot))

	mr.FastForward(2 * time.Second)

	got, err := repo.GetSnapshot(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisRateLimit(t *testing.T) {
	repo, mr := setupRedisRepo(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := repo.CheckRateLimit(ctx, 42, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := repo.CheckRateLimit(ctx, 42, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// The window expiring resets the counter.
	mr.FastForward(2 * time.Minute)
	allowed, err = repo.CheckRateLimit(ctx, 42, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestNilClientErrors(t *testing.T) {
	repo := NewRedisSnapshotRepository(nil, time.Minute)
	ctx := context.Background()

	_, err := repo.GetSnapshot(ctx, 1)
	assert.Error(t, err)
	assert.Error(t, repo.SetSnapshot(ctx, 1, &models.AccountSnapshot{}))
	assert.Error(t, repo.ClearSnapshot(ctx, 1))
	_, err = repo.CheckRateLimit(ctx, 1, 1, time.Minute)
	assert.Error(t, err)
}
