package worker

import (
	"context"

	"foobar/internal/config"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler enqueues the recurring jobs: the nightly forecast refresh
// and one refill order run per configured supplier.
type Scheduler struct {
	cron      *cron.Cron
	worker    *Worker
	schedule  config.ScheduleConfig
	suppliers []config.SupplierConfig
	logger    *zerolog.Logger
}

func NewScheduler(worker *Worker, schedule config.ScheduleConfig, suppliers []config.SupplierConfig, logger *zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		worker:    worker,
		schedule:  schedule,
		suppliers: suppliers,
		logger:    logger,
	}
}

// Start registers the cron entries and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.schedule.ForecastRefresh != "" {
		_, err := s.cron.AddFunc(s.schedule.ForecastRefresh, func() {
			if err := s.worker.EnqueueForecastUpdate(ctx, ""); err != nil {
				s.logger.Error().Err(err).Msg("Failed to enqueue forecast refresh")
			}
		})
		if err != nil {
			return err
		}
	}

	if s.schedule.RefillOrders != "" {
		_, err := s.cron.AddFunc(s.schedule.RefillOrders, func() {
			for _, supplier := range s.suppliers {
				if err := s.worker.EnqueueRefillOrder(ctx, supplier.InternalName); err != nil {
					s.logger.Error().Err(err).Str("supplier", supplier.InternalName).Msg("Failed to enqueue refill order")
				}
			}
		})
		if err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info().Str("forecast_refresh", s.schedule.ForecastRefresh).Str("refill_orders", s.schedule.RefillOrders).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler; running jobs finish first.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
