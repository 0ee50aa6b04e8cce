package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"foobar/internal/database"
	"foobar/internal/events"
	"foobar/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// taskPayload is persisted in SyncTask.Payload as JSON. An empty
// product_id on a forecast task means "refresh everything".
type taskPayload struct {
	ProductID string `json:"product_id,omitempty"`
	Supplier  string `json:"supplier,omitempty"`
}

// ForecastRunner recomputes out-of-stock predictions.
type ForecastRunner interface {
	Update(ctx context.Context, productID string) (*time.Time, error)
	UpdateAll(ctx context.Context) error
}

// RefillRunner places refill orders with a supplier.
type RefillRunner interface {
	OrderRefill(ctx context.Context, supplierName string, now time.Time) ([]models.SupplierProduct, error)
}

// Worker consumes sync_queue tasks: forecast refreshes and refill
// orders. Tasks arrive via the in-memory channel, the Redis list, or
// the database poll loop, in that order of preference.
type Worker struct {
	db            *database.DB
	forecasts     ForecastRunner
	orders        RefillRunner
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewWorker builds a worker with sane defaults.
func NewWorker(db *database.DB, forecasts ForecastRunner, orders RefillRunner, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *Worker {
	retry = retry.withDefaults()

	return &Worker{
		db:            db,
		forecasts:     forecasts,
		orders:        orders,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.SyncTask, models.WorkerQueueSize),
		redisQueueKey: "foobar:sync:queue",
		deadLetterKey: "foobar:sync:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueForecastUpdate schedules a forecast refresh for one product,
// or for all active products when productID is empty.
func (w *Worker) EnqueueForecastUpdate(ctx context.Context, productID string) error {
	return w.enqueue(ctx, models.TaskForecastUpdate, taskPayload{ProductID: productID})
}

// EnqueueRefillOrder schedules a refill order run for a supplier.
func (w *Worker) EnqueueRefillOrder(ctx context.Context, supplierName string) error {
	if supplierName == "" {
		return errors.New("supplier name is required")
	}
	return w.enqueue(ctx, models.TaskRefillOrder, taskPayload{Supplier: supplierName})
}

// enqueue persists the task to the DB and schedules it via redis or the
// in-memory queue.
func (w *Worker) enqueue(ctx context.Context, taskType string, payload taskPayload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:  taskType,
		Payload:   string(payloadBytes),
		Status:    models.TaskStatusPending,
		CreatedAt: time.Now(),
	}

	if err := w.db.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	// Try redis first for durability.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Msg("Redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	// Fallback to in-memory queue if redis missing or failed.
	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("In-memory queue full, task dropped to polling")
	}

	return nil
}

// SubscribeEvents enqueues forecast refreshes whenever stock changes.
// Purchase, delivery, and stocktake events all move cached quantities,
// so each one invalidates the current predictions.
func (w *Worker) SubscribeEvents(bus *events.EventBus) {
	refresh := func(event *events.Event) error {
		if err := w.EnqueueForecastUpdate(context.Background(), ""); err != nil {
			w.logger.Warn().Err(err).Str("event", event.Type).Msg("Failed to enqueue forecast refresh")
		}
		return nil
	}
	bus.Subscribe(events.EventPurchaseFinalized, refresh)
	bus.Subscribe(events.EventPurchaseCanceled, refresh)
	bus.Subscribe(events.EventDeliveryProcessed, refresh)
	bus.Subscribe(events.EventStocktakeFinalized, refresh)
}

// Start launches main loop; stops when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info().Msg("Worker started")
	defer w.logger.Info().Msg("Worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetPendingSyncTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("Fetch pending tasks failed")
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *Worker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *Worker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.SyncTask{}, false
		}
		w.logger.Error().Err(err).Msg("Redis BRPOP error")
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("Decode redis task failed")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *Worker) processTask(ctx context.Context, task *models.SyncTask) {
	payload, err := w.decodePayload(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.handleTask(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Mark completed failed")
	}
}

func (w *Worker) handleTask(ctx context.Context, taskType string, payload taskPayload) error {
	switch taskType {
	case models.TaskForecastUpdate:
		if payload.ProductID == "" {
			return w.forecasts.UpdateAll(ctx)
		}
		_, err := w.forecasts.Update(ctx, payload.ProductID)
		return err
	case models.TaskRefillOrder:
		if payload.Supplier == "" {
			return errors.New("supplier missing")
		}
		_, err := w.orders.OrderRefill(ctx, payload.Supplier, time.Now())
		return err
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *Worker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Mark failed failed")
		}
		w.pushDeadLetter(ctx, task)
		return
	}

	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Mark retry failed")
	}
}

func (w *Worker) failTask(ctx context.Context, task *models.SyncTask, err error) {
	if updErr := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusFailed, err.Error(), nil); updErr != nil {
		w.logger.Error().Err(updErr).Int64("task_id", task.ID).Msg("Mark failed failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *Worker) decodePayload(raw string) (taskPayload, error) {
	var payload taskPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func (w *Worker) pushRedis(ctx context.Context, task models.SyncTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *Worker) pushDeadLetter(ctx context.Context, task *models.SyncTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Encode deadletter failed")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Deadletter push failed")
	}
}
