package repository

import (
	"context"
	"sync"
	"time"

	"foobar/internal/models"
)

// MemorySnapshotRepository is the in-process fallback cache used when
// Redis is unavailable.
type MemorySnapshotRepository struct {
	snapshots  sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

func NewMemorySnapshotRepository(ttl time.Duration) *MemorySnapshotRepository {
	return &MemorySnapshotRepository{
		ttl: ttl,
	}
}

type snapshotEntry struct {
	snapshot  *models.AccountSnapshot
	expiresAt time.Time
}

func (r *MemorySnapshotRepository) GetSnapshot(ctx context.Context, cardNumber int64) (*models.AccountSnapshot, error) {
	val, ok := r.snapshots.Load(cardNumber)
	if !ok {
		return nil, nil
	}
	entry := val.(*snapshotEntry)
	if time.Now().After(entry.expiresAt) {
		r.snapshots.Delete(cardNumber)
		return nil, nil
	}
	return entry.snapshot, nil
}

func (r *MemorySnapshotRepository) SetSnapshot(ctx context.Context, cardNumber int64, snapshot *models.AccountSnapshot) error {
	r.snapshots.Store(cardNumber, &snapshotEntry{
		snapshot:  snapshot,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemorySnapshotRepository) ClearSnapshot(ctx context.Context, cardNumber int64) error {
	r.snapshots.Delete(cardNumber)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySnapshotRepository) CheckRateLimit(ctx context.Context, cardNumber int64, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(cardNumber)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(cardNumber, entry)
	return entry.count <= limit, nil
}
