package repository

import (
	"context"
	"sync/atomic"
	"time"

	"foobar/internal/domain"
	"foobar/internal/models"

	"github.com/rs/zerolog"
)

// FailoverSnapshotRepository serves from the primary (Redis) until it
// errors, then switches to the fallback (memory) and probes the primary
// once a minute.
type FailoverSnapshotRepository struct {
	primary   domain.SnapshotRepository
	fallback  domain.SnapshotRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverSnapshotRepository(primary, fallback domain.SnapshotRepository, logger *zerolog.Logger) *FailoverSnapshotRepository {
	return &FailoverSnapshotRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSnapshotRepository) GetSnapshot(ctx context.Context, cardNumber int64) (*models.AccountSnapshot, error) {
	if !r.isDown.Load() {
		snapshot, err := r.primary.GetSnapshot(ctx, cardNumber)
		if err == nil {
			return snapshot, nil
		}
		r.markDown(err)
	}

	// Probe the primary periodically in case it came back.
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		snapshot, err := r.primary.GetSnapshot(ctx, cardNumber)
		if err == nil {
			r.isDown.Store(false)
			return snapshot, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetSnapshot(ctx, cardNumber)
}

func (r *FailoverSnapshotRepository) SetSnapshot(ctx context.Context, cardNumber int64, snapshot *models.AccountSnapshot) error {
	if !r.isDown.Load() {
		err := r.primary.SetSnapshot(ctx, cardNumber, snapshot)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetSnapshot(ctx, cardNumber, snapshot)
}

func (r *FailoverSnapshotRepository) ClearSnapshot(ctx context.Context, cardNumber int64) error {
	if !r.isDown.Load() {
		err := r.primary.ClearSnapshot(ctx, cardNumber)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.ClearSnapshot(ctx, cardNumber)
}

func (r *FailoverSnapshotRepository) CheckRateLimit(ctx context.Context, cardNumber int64, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, cardNumber, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, cardNumber, limit, window)
}

func (r *FailoverSnapshotRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary snapshot repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}
