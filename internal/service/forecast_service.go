package service

import (
	"context"
	"errors"
	"time"

	"foobar/internal/database"
	"foobar/internal/forecast"

	"github.com/rs/zerolog"
)

// ForecastService recomputes and persists out-of-stock predictions.
type ForecastService struct {
	db     *database.DB
	logger *zerolog.Logger
}

func NewForecastService(db *database.DB, logger *zerolog.Logger) *ForecastService {
	return &ForecastService{db: db, logger: logger}
}

// Update recomputes the out-of-stock forecast for one product and
// stores it. The forecast clears (nil) when the product is already at
// or below zero, was never restocked, or shows no downward trend since
// the last restock.
func (s *ForecastService) Update(ctx context.Context, productID string) (*time.Time, error) {
	product, err := s.db.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Qty <= 0 {
		return nil, s.db.SetOutOfStockForecast(ctx, productID, nil)
	}

	restockedAt, err := s.db.GetLastRestock(ctx, productID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, s.db.SetOutOfStockForecast(ctx, productID, nil)
	}
	if err != nil {
		return nil, err
	}

	initial, err := s.db.GetFinalizedQtySumUpTo(ctx, productID, restockedAt)
	if err != nil {
		return nil, err
	}

	daily, err := s.db.GetDailyQtyAfter(ctx, productID, restockedAt)
	if err != nil {
		return nil, err
	}
	if len(daily) == 0 {
		// No consumption since the restock to extrapolate from.
		return nil, s.db.SetOutOfStockForecast(ctx, productID, nil)
	}

	deltas := make(map[time.Time]int64, len(daily))
	for _, d := range daily {
		deltas[d.Day] = d.Qty
	}

	// The restock level anchors the series one day before the first
	// movement; quiet days up to today flatten the fitted slope.
	start := daily[0].Day.AddDate(0, 0, -1)
	samples := forecast.BuildSeries(start, initial, deltas, time.Now().UTC())

	predicted := forecast.PredictOutOfStock(samples)
	if err := s.db.SetOutOfStockForecast(ctx, productID, predicted); err != nil {
		return nil, err
	}

	if predicted != nil {
		s.logger.Debug().Str("product_id", productID).Time("out_of_stock", *predicted).Msg("Forecast updated")
	}
	return predicted, nil
}

// UpdateAll refreshes forecasts for every active product.
func (s *ForecastService) UpdateAll(ctx context.Context) error {
	products, err := s.db.ListProducts(ctx, false)
	if err != nil {
		return err
	}
	for _, product := range products {
		if _, err := s.Update(ctx, product.ID); err != nil {
			s.logger.Error().Err(err).Str("product_id", product.ID).Msg("Forecast update failed")
		}
	}
	return nil
}
