package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"foobar/internal/database"
	"foobar/internal/domain"
	"foobar/internal/events"
	"foobar/internal/models"
	"foobar/internal/suppliers"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OrderingService places supplier orders: one-off product orders and
// the recurring refill runs that keep forecasted-out products stocked.
type OrderingService struct {
	db       *database.DB
	registry *suppliers.Registry
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewOrderingService(db *database.DB, registry *suppliers.Registry, eventBus domain.EventPublisher, logger *zerolog.Logger) *OrderingService {
	return &OrderingService{
		db:       db,
		registry: registry,
		eventBus: eventBus,
		logger:   logger,
	}
}

// packagesFor is how many packages must be bought to reach qty units.
func packagesFor(sp models.SupplierProduct, qty int64) int64 {
	units := sp.Qty
	if units <= 0 {
		units = 1
	}
	return (qty + units - 1) / units
}

// orderCost is the total price of the packages needed to reach qty.
func orderCost(sp models.SupplierProduct, qty int64) decimal.Decimal {
	return sp.Price.Mul(decimal.NewFromInt(packagesFor(sp, qty)))
}

// OrderProduct orders at least qty units of a product, optionally from
// one specific supplier. Candidates are tried cheapest-total first;
// supplier API failures fall through to the next candidate.
func (s *OrderingService) OrderProduct(ctx context.Context, productID string, qty int64, supplierID int64) (*models.SupplierProduct, error) {
	candidates, err := s.db.GetSupplierProductsByProduct(ctx, productID, supplierID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no supplier carries product %s", productID)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return orderCost(candidates[i], qty).LessThan(orderCost(candidates[j], qty))
	})

	for _, sp := range candidates {
		supplier, err := s.db.GetSupplier(ctx, sp.SupplierID)
		if err != nil {
			return nil, err
		}
		client, err := s.registry.Get(supplier.InternalName)
		if err != nil {
			s.logger.Warn().Err(err).Int64("supplier_id", sp.SupplierID).Msg("Supplier not configured, skipping")
			continue
		}

		orderID, err := client.PlaceOrder(ctx, []suppliers.OrderLine{
			{SKU: sp.SKU, Qty: packagesFor(sp, qty)},
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("sku", sp.SKU).Str("supplier", supplier.InternalName).Msg("Order failed, trying next candidate")
			continue
		}

		pubErr := s.eventBus.PublishJSON(events.EventOrderPlaced, events.OrderEventPayload{
			Supplier: supplier.InternalName,
			OrderID:  orderID,
			Lines:    1,
		})
		if pubErr != nil {
			s.logger.Warn().Err(pubErr).Msg("Failed to publish order event")
		}
		return &sp, nil
	}

	return nil, fmt.Errorf("could not order product %s from any supplier", productID)
}

// nextWeekday is the first day strictly after d that falls on weekday.
func nextWeekday(d time.Time, weekday time.Weekday) time.Time {
	daysAhead := int(weekday) - int(d.Weekday())
	if daysAhead <= 0 {
		daysAhead += 7
	}
	return d.AddDate(0, 0, daysAhead)
}

// OrderRefill orders, from one supplier, every product forecasted to
// run out before the delivery after next. Missing this week's delivery
// means waiting for the one after, so the horizon is two delivery days
// out. Each product is topped up to its base stock level.
func (s *OrderingService) OrderRefill(ctx context.Context, supplierName string, now time.Time) ([]models.SupplierProduct, error) {
	supplier, err := s.db.GetSupplierByName(ctx, supplierName)
	if err != nil {
		return nil, err
	}

	firstDelivery := nextWeekday(now, time.Weekday(supplier.DeliversOn))
	secondDelivery := nextWeekday(firstDelivery, time.Weekday(supplier.DeliversOn))

	levels, err := s.db.GetBaseStockLevelsBelowForecast(ctx, secondDelivery)
	if err != nil {
		return nil, err
	}

	var ordered []models.SupplierProduct
	for _, level := range levels {
		sp, err := s.OrderProduct(ctx, level.ProductID, level.Level, supplier.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("product_id", level.ProductID).Msg("Refill order failed")
			continue
		}
		ordered = append(ordered, *sp)
	}

	s.logger.Info().Str("supplier", supplierName).Int("ordered", len(ordered)).Int("candidates", len(levels)).Msg("Refill run finished")
	return ordered, nil
}
