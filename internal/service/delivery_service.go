package service

import (
	"context"
	"errors"
	"fmt"

	"foobar/internal/database"
	"foobar/internal/domain"
	"foobar/internal/events"
	"foobar/internal/models"
	"foobar/internal/suppliers"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DeliveryService registers incoming shipments, populates them from
// parsed PDF reports and books them into stock.
type DeliveryService struct {
	db       *database.DB
	registry *suppliers.Registry
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewDeliveryService(db *database.DB, registry *suppliers.Registry, eventBus domain.EventPublisher, logger *zerolog.Logger) *DeliveryService {
	return &DeliveryService{
		db:       db,
		registry: registry,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Create registers a delivery for a configured supplier, creating the
// supplier row on first sight.
func (s *DeliveryService) Create(ctx context.Context, supplierName, reportPath string) (*models.Delivery, error) {
	client, err := s.registry.Get(supplierName)
	if err != nil {
		return nil, err
	}

	supplier, err := s.db.GetSupplierByName(ctx, supplierName)
	if errors.Is(err, database.ErrNotFound) {
		supplier = &models.Supplier{
			Name:         supplierName,
			InternalName: supplierName,
			DeliversOn:   client.DeliversOn(),
		}
		err = s.db.CreateSupplier(ctx, supplier)
	}
	if err != nil {
		return nil, err
	}

	delivery := &models.Delivery{SupplierID: supplier.ID, ReportPath: reportPath}
	if err := s.db.CreateDelivery(ctx, delivery); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("delivery_id", delivery.ID).Str("supplier", supplierName).Msg("Delivery registered")
	return delivery, nil
}

// GetSupplierProduct returns the locally cached supplier product for an
// SKU, fetching it from the supplier's API when missing (or when a
// refresh is forced). Unknown SKUs yield suppliers.ErrProductNotFound.
func (s *DeliveryService) GetSupplierProduct(ctx context.Context, supplier *models.Supplier, sku string, refresh bool) (*models.SupplierProduct, error) {
	if !refresh {
		sp, err := s.db.GetSupplierProductBySKU(ctx, supplier.ID, sku)
		if err == nil {
			return sp, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	client, err := s.registry.Get(supplier.InternalName)
	if err != nil {
		return nil, err
	}
	data, err := client.RetrieveProduct(ctx, sku)
	if err != nil {
		return nil, err
	}

	sp := &models.SupplierProduct{
		SupplierID:    supplier.ID,
		SKU:           sku,
		Name:          data.Name,
		Price:         data.Price,
		Qty:           data.Qty,
		QtyMultiplier: 1,
	}
	if err := s.db.UpsertSupplierProduct(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// Populate parses the delivery's report and rebuilds its item list.
// Report rows count packages; items store stock units, so quantities
// scale up by the multiplier and prices scale down. SKUs the supplier
// does not recognize are skipped with a warning.
func (s *DeliveryService) Populate(ctx context.Context, deliveryID int64) (*models.Delivery, error) {
	delivery, err := s.db.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery.Locked {
		return nil, database.ErrDeliveryLocked
	}
	supplier, err := s.db.GetSupplier(ctx, delivery.SupplierID)
	if err != nil {
		return nil, err
	}
	client, err := s.registry.Get(supplier.InternalName)
	if err != nil {
		return nil, err
	}

	rows, err := client.ParseDeliveryReport(ctx, delivery.ReportPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse delivery report: %w", err)
	}

	var items []models.DeliveryItem
	for _, row := range rows {
		sp, err := s.GetSupplierProduct(ctx, supplier, row.SKU, false)
		if errors.Is(err, suppliers.ErrProductNotFound) {
			s.logger.Warn().Str("sku", row.SKU).Str("supplier", supplier.InternalName).Msg("Report row has unknown SKU, skipping")
			continue
		}
		if err != nil {
			return nil, err
		}

		multiplier := sp.QtyMultiplier
		if multiplier <= 0 {
			multiplier = 1
		}
		items = append(items, models.DeliveryItem{
			SupplierProductID: sp.ID,
			Qty:               row.Qty * multiplier,
			Price:             row.Price.Div(decimal.NewFromInt(multiplier)),
		})
	}

	if err := s.db.ReplaceDeliveryItems(ctx, deliveryID, items); err != nil {
		return nil, err
	}
	return s.db.GetDelivery(ctx, deliveryID)
}

// Process books the delivery into stock and locks it.
func (s *DeliveryService) Process(ctx context.Context, deliveryID int64) error {
	if err := s.db.ProcessDelivery(ctx, deliveryID); err != nil {
		return err
	}

	delivery, err := s.db.GetDelivery(ctx, deliveryID)
	if err != nil {
		return err
	}
	supplier, err := s.db.GetSupplier(ctx, delivery.SupplierID)
	if err != nil {
		return err
	}

	s.logger.Info().Int64("delivery_id", deliveryID).Int("items", len(delivery.Items)).Msg("Delivery processed")
	err = s.eventBus.PublishJSON(events.EventDeliveryProcessed, events.DeliveryEventPayload{
		DeliveryID: deliveryID,
		Supplier:   supplier.InternalName,
		Items:      len(delivery.Items),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to publish delivery event")
	}
	return nil
}

func (s *DeliveryService) Get(ctx context.Context, deliveryID int64) (*models.Delivery, error) {
	return s.db.GetDelivery(ctx, deliveryID)
}
