package service

import (
	"context"

	"foobar/internal/database"
	"foobar/internal/domain"
	"foobar/internal/events"
	"foobar/internal/models"

	"github.com/rs/zerolog"
)

// StocktakeService coordinates counting rounds. The chunk locking lives
// in the database layer; this layer adds configuration and events.
type StocktakeService struct {
	db        *database.DB
	eventBus  domain.EventPublisher
	chunkSize int
	logger    *zerolog.Logger
}

func NewStocktakeService(db *database.DB, eventBus domain.EventPublisher, chunkSize int, logger *zerolog.Logger) *StocktakeService {
	if chunkSize <= 0 {
		chunkSize = models.DefaultStocktakeChunkSize
	}
	return &StocktakeService{
		db:        db,
		eventBus:  eventBus,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

func (s *StocktakeService) Initiate(ctx context.Context) (*models.Stocktake, error) {
	stocktake, err := s.db.InitiateStocktake(ctx, s.chunkSize)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("stocktake_id", stocktake.ID).Int("chunks", len(stocktake.Chunks)).Msg("Stock-taking initiated")
	return stocktake, nil
}

func (s *StocktakeService) AssignChunk(ctx context.Context, stocktakeID int64, ownerID string) (*models.StocktakeChunk, error) {
	return s.db.AssignChunk(ctx, stocktakeID, ownerID)
}

func (s *StocktakeService) SetItemQty(ctx context.Context, itemID int64, ownerID string, qty int64) error {
	return s.db.SetStocktakeItemQty(ctx, itemID, ownerID, qty)
}

func (s *StocktakeService) FinalizeChunk(ctx context.Context, chunkID int64, ownerID string) error {
	return s.db.FinalizeChunk(ctx, chunkID, ownerID)
}

func (s *StocktakeService) Finalize(ctx context.Context, stocktakeID int64) error {
	if err := s.db.FinalizeStocktake(ctx, stocktakeID); err != nil {
		return err
	}
	s.logger.Info().Int64("stocktake_id", stocktakeID).Msg("Stock-taking finalized")

	err := s.eventBus.PublishJSON(events.EventStocktakeFinalized, map[string]int64{"stocktake_id": stocktakeID})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to publish stocktake event")
	}
	return nil
}

func (s *StocktakeService) GetOpen(ctx context.Context) (*models.Stocktake, error) {
	return s.db.GetOpenStocktake(ctx)
}
