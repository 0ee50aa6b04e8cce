package domain

import (
	"context"
	"time"

	"foobar/internal/models"
)

// SnapshotRepository caches kiosk-facing account snapshots keyed by
// card number, and throttles how often one card may be scanned.
type SnapshotRepository interface {
	GetSnapshot(ctx context.Context, cardNumber int64) (*models.AccountSnapshot, error)
	SetSnapshot(ctx context.Context, cardNumber int64, snapshot *models.AccountSnapshot) error
	ClearSnapshot(ctx context.Context, cardNumber int64) error
	CheckRateLimit(ctx context.Context, cardNumber int64, limit int, window time.Duration) (bool, error)
}

// EventPublisher fans application events out to whoever listens.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
