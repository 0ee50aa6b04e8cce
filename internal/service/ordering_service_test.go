package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"foobar/internal/config"
	"foobar/internal/database"
	"foobar/internal/events"
	"foobar/internal/models"
	"foobar/internal/suppliers"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSupplierServer records orders and answers with a fixed order id.
type fakeSupplierServer struct {
	*httptest.Server
	orders []suppliers.OrderLine
	fail   bool
}

func newFakeSupplier(t *testing.T) *fakeSupplierServer {
	fake := &fakeSupplierServer{}
	fake.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fake.fail {
			http.Error(w, "out of stock", http.StatusConflict)
			return
		}
		var body struct {
			Items []suppliers.OrderLine `json:"items"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fake.orders = append(fake.orders, body.Items...)
		json.NewEncoder(w).Encode(map[string]string{"order_id": "ORD-1"})
	}))
	t.Cleanup(fake.Close)
	return fake
}

func newOrderingFixture(t *testing.T, db *database.DB, servers map[string]*fakeSupplierServer) *OrderingService {
	logger := zerolog.Nop()
	var cfgs []config.SupplierConfig
	for name, server := range servers {
		cfgs = append(cfgs, config.SupplierConfig{InternalName: name, BaseURL: server.URL})
	}
	registry := suppliers.NewRegistry(cfgs, &logger)
	return NewOrderingService(db, registry, events.NewEventBus(), &logger)
}

func seedSupplierProduct(t *testing.T, db *database.DB, supplierID int64, sku, productID, price string, units int64) *models.SupplierProduct {
	t.Helper()
	sp := &models.SupplierProduct{
		SupplierID:    supplierID,
		SKU:           sku,
		Name:          "SP " + sku,
		Price:         decimal.RequireFromString(price),
		Qty:           units,
		QtyMultiplier: 1,
	}
	require.NoError(t, db.UpsertSupplierProduct(context.Background(), sp))
	require.NoError(t, db.LinkSupplierProduct(context.Background(), sp.ID, productID, 1))
	sp.ProductID = productID
	return sp
}

func TestOrderProductPicksCheapestTotal(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	cheap := newFakeSupplier(t)
	pricey := newFakeSupplier(t)
	svc := newOrderingFixture(t, db, map[string]*fakeSupplierServer{"cheap": cheap, "pricey": pricey})

	supplierA := &models.Supplier{Name: "Cheap AB", InternalName: "cheap"}
	require.NoError(t, db.CreateSupplier(ctx, supplierA))
	supplierB := &models.Supplier{Name: "Pricey AB", InternalName: "pricey"}
	require.NoError(t, db.CreateSupplier(ctx, supplierB))

	product := seedProduct(t, db, "7310865004703", "10", 0)
	// 25 units needed: 2 packs of 20 at 80 = 160 vs 3 packs of 10 at 60 = 180.
	seedSupplierProduct(t, db, supplierA.ID, "A-20", product.ID, "80", 20)
	seedSupplierProduct(t, db, supplierB.ID, "B-10", product.ID, "60", 10)

	ordered, err := svc.OrderProduct(ctx, product.ID, 25, 0)
	require.NoError(t, err)
	assert.Equal(t, "A-20", ordered.SKU)

	require.Len(t, cheap.orders, 1)
	assert.Equal(t, int64(2), cheap.orders[0].Qty)
	assert.Empty(t, pricey.orders)
}

func TestOrderProductFallsThroughOnFailure(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	broken := newFakeSupplier(t)
	broken.fail = true
	working := newFakeSupplier(t)
	svc := newOrderingFixture(t, db, map[string]*fakeSupplierServer{"broken": broken, "working": working})

	supplierA := &models.Supplier{Name: "Broken AB", InternalName: "broken"}
	require.NoError(t, db.CreateSupplier(ctx, supplierA))
	supplierB := &models.Supplier{Name: "Working AB", InternalName: "working"}
	require.NoError(t, db.CreateSupplier(ctx, supplierB))

	product := seedProduct(t, db, "7340131606003", "10", 0)
	seedSupplierProduct(t, db, supplierA.ID, "A-1", product.ID, "50", 10)
	seedSupplierProduct(t, db, supplierB.ID, "B-1", product.ID, "90", 10)

	ordered, err := svc.OrderProduct(ctx, product.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "B-1", ordered.SKU)
	require.Len(t, working.orders, 1)
}

func TestOrderProductAllFail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	broken := newFakeSupplier(t)
	broken.fail = true
	svc := newOrderingFixture(t, db, map[string]*fakeSupplierServer{"broken": broken})

	supplier := &models.Supplier{Name: "Broken AB", InternalName: "broken"}
	require.NoError(t, db.CreateSupplier(ctx, supplier))
	product := seedProduct(t, db, "7311070347272", "10", 0)
	seedSupplierProduct(t, db, supplier.ID, "A-1", product.ID, "50", 10)

	_, err := svc.OrderProduct(ctx, product.ID, 10, 0)
	assert.Error(t, err)
}

func TestOrderRefill(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	server := newFakeSupplier(t)
	svc := newOrderingFixture(t, db, map[string]*fakeSupplierServer{"snacks": server})

	// Delivers on Tuesdays; today is a Monday, so the delivery after
	// next is 8 days out.
	supplier := &models.Supplier{Name: "Snacks AB", InternalName: "snacks", DeliversOn: int(time.Tuesday)}
	require.NoError(t, db.CreateSupplier(ctx, supplier))

	soon := seedProduct(t, db, "7310865004703", "10", 5)
	later := seedProduct(t, db, "7340131606003", "10", 50)
	seedSupplierProduct(t, db, supplier.ID, "S-1", soon.ID, "50", 10)
	seedSupplierProduct(t, db, supplier.ID, "S-2", later.ID, "50", 10)

	monday := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	runsOutSoon := monday.AddDate(0, 0, 4)
	runsOutLater := monday.AddDate(0, 0, 30)
	require.NoError(t, db.SetOutOfStockForecast(ctx, soon.ID, &runsOutSoon))
	require.NoError(t, db.SetOutOfStockForecast(ctx, later.ID, &runsOutLater))
	require.NoError(t, db.SetBaseStockLevel(ctx, soon.ID, 40))
	require.NoError(t, db.SetBaseStockLevel(ctx, later.ID, 60))

	ordered, err := svc.OrderRefill(ctx, "snacks", monday)
	require.NoError(t, err)
	require.Len(t, ordered, 1)
	assert.Equal(t, "S-1", ordered[0].SKU)

	// Topped up to the base level of 40: 4 packs of 10.
	require.Len(t, server.orders, 1)
	assert.Equal(t, int64(4), server.orders[0].Qty)
}

func TestNextWeekday(t *testing.T) {
	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	tuesday := nextWeekday(monday, time.Tuesday)
	assert.Equal(t, monday.AddDate(0, 0, 1), tuesday)

	// Same weekday rolls a full week forward.
	nextMonday := nextWeekday(monday, time.Monday)
	assert.Equal(t, monday.AddDate(0, 0, 7), nextMonday)

	sunday := nextWeekday(monday, time.Sunday)
	assert.Equal(t, monday.AddDate(0, 0, 6), sunday)
}
