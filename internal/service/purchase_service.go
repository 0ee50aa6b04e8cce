package service

import (
	"context"
	"errors"

	"foobar/internal/config"
	"foobar/internal/database"
	"foobar/internal/domain"
	"foobar/internal/events"
	"foobar/internal/metrics"
	"foobar/internal/models"

	"github.com/rs/zerolog"
)

// PurchaseService drives the purchase lifecycle. The money movement
// itself is transactional in the database layer; this layer adds
// events and bookkeeping around it.
type PurchaseService struct {
	db       *database.DB
	eventBus domain.EventPublisher
	wallets  config.WalletConfig
	logger   *zerolog.Logger
}

func NewPurchaseService(db *database.DB, eventBus domain.EventPublisher, wallets config.WalletConfig, logger *zerolog.Logger) *PurchaseService {
	return &PurchaseService{
		db:       db,
		eventBus: eventBus,
		wallets:  wallets,
		logger:   logger,
	}
}

// Create registers a pending purchase. An empty accountID means a cash
// purchase with no wallet involved until finalization.
func (s *PurchaseService) Create(ctx context.Context, accountID string, lines []models.PurchaseLine) (*models.Purchase, error) {
	purchase, err := s.db.CreatePurchase(ctx, accountID, lines)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("purchase_id", purchase.ID).
		Str("account_id", accountID).
		Str("amount", purchase.Amount.String()).
		Msg("Purchase created")

	metrics.IncPurchase(models.StatusPending)
	s.publishEvent(events.EventPurchaseCreated, purchase)
	return purchase, nil
}

func (s *PurchaseService) Finalize(ctx context.Context, purchaseID string) (*models.Purchase, error) {
	purchase, err := s.db.FinalizePurchase(ctx, purchaseID, s.wallets.MainWalletID, s.wallets.CashWalletID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("purchase_id", purchaseID).Msg("Purchase finalized")
	metrics.IncPurchase(models.StatusFinalized)
	s.publishEvent(events.EventPurchaseFinalized, purchase)
	s.checkStockLevels(ctx, purchase)
	return purchase, nil
}

// checkStockLevels raises a stock_low event for every purchased product
// now below its configured base stock level.
func (s *PurchaseService) checkStockLevels(ctx context.Context, purchase *models.Purchase) {
	for _, item := range purchase.Items {
		level, err := s.db.GetBaseStockLevel(ctx, item.ProductID)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("product_id", item.ProductID).Msg("Base stock level lookup failed")
			continue
		}

		product, err := s.db.GetProduct(ctx, item.ProductID)
		if err != nil {
			continue
		}
		if product.Qty >= level {
			continue
		}

		pubErr := s.eventBus.PublishJSON(events.EventStockLow, events.StockLowPayload{
			ProductID: product.ID,
			Qty:       product.Qty,
			Level:     level,
		})
		if pubErr != nil {
			s.logger.Warn().Err(pubErr).Str("product_id", product.ID).Msg("Failed to publish stock low event")
		}
	}
}

func (s *PurchaseService) Cancel(ctx context.Context, purchaseID string) (*models.Purchase, error) {
	purchase, err := s.db.CancelPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("purchase_id", purchaseID).Msg("Purchase canceled")
	metrics.IncPurchase(models.StatusCanceled)
	s.publishEvent(events.EventPurchaseCanceled, purchase)
	return purchase, nil
}

func (s *PurchaseService) Get(ctx context.Context, purchaseID string) (*models.Purchase, error) {
	return s.db.GetPurchase(ctx, purchaseID)
}

func (s *PurchaseService) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Purchase, error) {
	return s.db.ListPurchases(ctx, accountID, limit)
}

func (s *PurchaseService) publishEvent(eventType string, purchase *models.Purchase) {
	err := s.eventBus.PublishJSON(eventType, events.PurchaseEventPayload{
		PurchaseID: purchase.ID,
		AccountID:  purchase.AccountID,
		Amount:     purchase.Amount,
		Status:     purchase.Status,
		Items:      len(purchase.Items),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}
