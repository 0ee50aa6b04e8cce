package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foobar/internal/api"
	"foobar/internal/config"
	"foobar/internal/database"
	"foobar/internal/domain"
	"foobar/internal/events"
	"foobar/internal/export"
	"foobar/internal/logging"
	"foobar/internal/repository"
	"foobar/internal/service"
	"foobar/internal/suppliers"
	"foobar/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snapshots := buildSnapshotRepository(redisClient, logger)
	tokens := service.NewTokenIssuer(cfg.API.Token.Secret, cfg.API.TokenTTL())
	registry := suppliers.NewRegistry(cfg.Suppliers, logger)
	bus := events.NewEventBus()

	accountService := service.NewAccountService(db, snapshots, tokens, cfg.Wallet.Currency, logger)
	purchaseService := service.NewPurchaseService(db, bus, cfg.Wallet, logger)
	productService := service.NewProductService(db, logger)
	deliveryService := service.NewDeliveryService(db, registry, bus, logger)
	stocktakeService := service.NewStocktakeService(db, bus, cfg.Stocktake.ChunkSize, logger)
	forecastService := service.NewForecastService(db, logger)
	orderingService := service.NewOrderingService(db, registry, bus, logger)
	exporter := export.NewExporter(db, cfg.Exports.Path, logger)

	taskWorker := worker.NewWorker(db, forecastService, orderingService, redisClient, worker.RetryPolicy{}, logger)
	taskWorker.SubscribeEvents(bus)
	go taskWorker.Start(ctx)

	scheduler := worker.NewScheduler(taskWorker, cfg.Schedule, cfg.Suppliers, logger)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer scheduler.Stop()

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, logger)
		go backup.Start(ctx)
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Accounts:   accountService,
		Purchases:  purchaseService,
		Products:   productService,
		Deliveries: deliveryService,
		Stocktakes: stocktakeService,
		Ordering:   orderingService,
		Exporter:   exporter,
		Tokens:     tokens,
	}, logger)

	var metricsServer *api.MetricsServer
	if cfg.Monitoring.PrometheusEnabled {
		metricsServer = api.NewMetricsServer(cfg.Monitoring.PrometheusPort, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, &logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// buildSnapshotRepository prefers Redis with an in-memory fallback
// behind the failover wrapper; without Redis the in-memory cache stands
// alone.
func buildSnapshotRepository(client *redis.Client, logger *zerolog.Logger) domain.SnapshotRepository {
	memory := repository.NewMemorySnapshotRepository(snapshotTTL)
	if client == nil {
		return memory
	}
	primary := repository.NewRedisSnapshotRepository(client, snapshotTTL)
	return repository.NewFailoverSnapshotRepository(primary, memory, logger)
}

const snapshotTTL = 5 * time.Minute
