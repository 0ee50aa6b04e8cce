package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"foobar/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenRepository fails every call.
type brokenRepository struct{}

func (brokenRepository) GetSnapshot(ctx context.Context, cardNumber int64) (*models.AccountSnapshot, error) {
	return nil, errors.New("connection refused")
}

func (brokenRepository) SetSnapshot(ctx context.Context, cardNumber int64, snapshot *models.AccountSnapshot) error {
	return errors.New("connection refused")
}

func (brokenRepository) ClearSnapshot(ctx context.Context, cardNumber int64) error {
	return errors.New("connection refused")
}

func (brokenRepository) CheckRateLimit(ctx context.Context, cardNumber int64, limit int, window time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestFailoverSwitchesToFallback(t *testing.T) {
	logger := zerolog.Nop()
	fallback := NewMemorySnapshotRepository(time.Minute)
	repo := NewFailoverSnapshotRepository(brokenRepository{}, fallback, &logger)
	ctx := context.Background()

	snapshot := &models.AccountSnapshot{ID: "acc-1"}
	require.NoError(t, repo.SetSnapshot(ctx, 42, snapshot))

	got, err := repo.GetSnapshot(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acc-1", got.ID)

	allowed, err := repo.CheckRateLimit(ctx, 42, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, repo.ClearSnapshot(ctx, 42))
	got, err = repo.GetSnapshot(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFailoverPrefersHealthyPrimary(t *testing.T) {
	logger := zerolog.Nop()
	primary := NewMemorySnapshotRepository(time.Minute)
	fallback := NewMemorySnapshotRepository(time.Minute)
	repo := NewFailoverSnapshotRepository(primary, fallback, &logger)
	ctx := context.Background()

	require.NoError(t, repo.SetSnapshot(ctx, 42, &models.AccountSnapshot{ID: "acc-1"}))

	// The write landed in the primary, not the fallback.
	got, err := primary.GetSnapshot(ctx, 42)
	require.NoError(t, err)
	assert.NotNil(t, got)

	got, err = fallback.GetSnapshot(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}
