package worker

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"foobar/internal/database"
	"foobar/internal/events"
	"foobar/internal/models"

	"github.com/rs/zerolog"
)

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	forecasts := &fakeForecasts{}
	worker := newTestWorker(db, forecasts, &fakeOrders{}, RetryPolicy{})

	ctx := context.Background()
	if err := worker.EnqueueForecastUpdate(ctx, "prod-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.TaskStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if forecasts.updateCalls != 1 {
		t.Fatalf("expected 1 update call, got %d", forecasts.updateCalls)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	forecasts := &fakeForecasts{err: errors.New("boom")}
	worker := newTestWorker(db, forecasts, &fakeOrders{}, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second})

	ctx := context.Background()
	if err := worker.EnqueueForecastUpdate(ctx, "prod-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.TaskStatusRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	orders := &fakeOrders{err: errors.New("fatal")}
	worker := newTestWorker(db, &fakeForecasts{}, orders, RetryPolicy{MaxRetries: 1})

	ctx := context.Background()
	worker.EnqueueRefillOrder(ctx, "snacks")
	task, _ := worker.tryLocalQueue()
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.TaskStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestHandleTask(t *testing.T) {
	db := newTestDB(t)
	forecasts := &fakeForecasts{}
	orders := &fakeOrders{}
	worker := newTestWorker(db, forecasts, orders, RetryPolicy{MaxRetries: 3})

	ctx := context.Background()

	t.Run("ForecastSingleProduct", func(t *testing.T) {
		err := worker.handleTask(ctx, models.TaskForecastUpdate, taskPayload{ProductID: "prod-1"})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if forecasts.updateCalls != 1 {
			t.Fatalf("expected 1 update call, got %d", forecasts.updateCalls)
		}
	})

	t.Run("ForecastAll", func(t *testing.T) {
		err := worker.handleTask(ctx, models.TaskForecastUpdate, taskPayload{})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if forecasts.updateAllCalls != 1 {
			t.Fatalf("expected 1 update-all call, got %d", forecasts.updateAllCalls)
		}
	})

	t.Run("RefillOrder", func(t *testing.T) {
		err := worker.handleTask(ctx, models.TaskRefillOrder, taskPayload{Supplier: "snacks"})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if orders.refillCalls != 1 {
			t.Fatalf("expected 1 refill call, got %d", orders.refillCalls)
		}
		if orders.lastSupplier != "snacks" {
			t.Fatalf("expected supplier snacks, got %s", orders.lastSupplier)
		}
	})

	t.Run("RefillMissingSupplier", func(t *testing.T) {
		if err := worker.handleTask(ctx, models.TaskRefillOrder, taskPayload{}); err == nil {
			t.Fatalf("expected error for refill without supplier")
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		if err := worker.handleTask(ctx, "bogus", taskPayload{}); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})
}

func TestEnqueueRefillRequiresSupplier(t *testing.T) {
	db := newTestDB(t)
	worker := newTestWorker(db, &fakeForecasts{}, &fakeOrders{}, RetryPolicy{})

	if err := worker.EnqueueRefillOrder(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty supplier name")
	}
}

func TestStockEventsEnqueueForecastRefresh(t *testing.T) {
	db := newTestDB(t)
	worker := newTestWorker(db, &fakeForecasts{}, &fakeOrders{}, RetryPolicy{})

	bus := events.NewEventBus()
	worker.SubscribeEvents(bus)

	if err := bus.PublishJSON(events.EventDeliveryProcessed, events.DeliveryEventPayload{DeliveryID: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	tasks, err := db.GetPendingSyncTasks(context.Background(), 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].TaskType != models.TaskForecastUpdate {
		t.Fatalf("expected forecast task, got %s", tasks[0].TaskType)
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2}.withDefaults()
	if policy.MaxRetries != 2 {
		t.Fatalf("expected overridden max retries 2, got %d", policy.MaxRetries)
	}
	if policy.InitialDelay != 2*time.Second {
		t.Fatalf("expected default initial delay 2s, got %s", policy.InitialDelay)
	}
	if policy.MaxDelay != time.Minute {
		t.Fatalf("expected default max delay 1m, got %s", policy.MaxDelay)
	}
	if policy.BackoffFactor != 2 {
		t.Fatalf("expected default backoff factor 2, got %v", policy.BackoffFactor)
	}
}

func TestDecodePayload(t *testing.T) {
	worker := newTestWorker(nil, nil, nil, RetryPolicy{})

	t.Run("ValidPayload", func(t *testing.T) {
		decoded, err := worker.decodePayload(`{"product_id":"prod-1","supplier":"snacks"}`)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded.ProductID != "prod-1" || decoded.Supplier != "snacks" {
			t.Fatalf("unexpected decoded payload: %+v", decoded)
		}
	})

	t.Run("InvalidPayload", func(t *testing.T) {
		if _, err := worker.decodePayload(`invalid json`); err == nil {
			t.Fatalf("expected error for invalid json")
		}
	})
}

// Helpers

type fakeForecasts struct {
	err            error
	updateCalls    int
	updateAllCalls int
}

func (f *fakeForecasts) Update(ctx context.Context, productID string) (*time.Time, error) {
	f.updateCalls++
	return nil, f.err
}

func (f *fakeForecasts) UpdateAll(ctx context.Context) error {
	f.updateAllCalls++
	return f.err
}

type fakeOrders struct {
	err          error
	refillCalls  int
	lastSupplier string
}

func (f *fakeOrders) OrderRefill(ctx context.Context, supplierName string, now time.Time) ([]models.SupplierProduct, error) {
	f.refillCalls++
	f.lastSupplier = supplierName
	return nil, f.err
}

func newTestWorker(db *database.DB, forecasts ForecastRunner, orders RefillRunner, retry RetryPolicy) *Worker {
	logger := zerolog.Nop()
	return NewWorker(db, forecasts, orders, nil, retry, &logger)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.Nop()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
