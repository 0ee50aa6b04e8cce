package service

import (
	"context"
	"testing"
	"time"

	"foobar/internal/database"
	"foobar/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// insertTrxAt backdates a finalized stock transaction and keeps the
// cached quantity in sync, so forecast math sees realistic history.
func insertTrxAt(t *testing.T, db *database.DB, productID, trxType string, qty int64, at time.Time) {
	t.Helper()
	ctx := context.Background()
	_, err := db.ExecContext(ctx,
		`INSERT INTO product_transactions (product_id, trx_type, qty, status, reference, created_at, updated_at)
         VALUES (?, ?, ?, 'finalized', 'history', ?, ?)`,
		productID, trxType, qty, at, at,
	)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `UPDATE products SET qty = qty + ? WHERE id = ?`, qty, productID)
	require.NoError(t, err)
}

func TestForecastUpdatePredictsDepletion(t *testing.T) {
	db := setupTestDB(t)
	logger := zerolog.Nop()
	svc := NewForecastService(db, &logger)
	ctx := context.Background()

	product := &models.Product{Code: "7310865004703", Name: "Loka", IsActive: true}
	require.NoError(t, db.CreateProduct(ctx, product))

	now := time.Now().UTC()
	insertTrxAt(t, db, product.ID, models.TrxInventory, 100, now.AddDate(0, 0, -10))
	for i := 9; i >= 5; i-- {
		insertTrxAt(t, db, product.ID, models.TrxPurchase, -10, now.AddDate(0, 0, -i))
	}

	predicted, err := svc.Update(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, predicted)

	// 50 left and roughly 5-10 units sold per fitted day: depletion
	// lands in the coming weeks, not the past.
	assert.True(t, predicted.After(now.AddDate(0, 0, -1)), "predicted %s", predicted)
	assert.True(t, predicted.Before(now.AddDate(0, 0, 60)), "predicted %s", predicted)

	stored, err := db.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.OutOfStockForecast)
}

func TestForecastClearsWhenOutOfStock(t *testing.T) {
	db := setupTestDB(t)
	logger := zerolog.Nop()
	svc := NewForecastService(db, &logger)
	ctx := context.Background()

	product := seedProduct(t, db, "7340131606003", "10", 0)
	forecast := time.Now().AddDate(0, 0, 7)
	require.NoError(t, db.SetOutOfStockForecast(ctx, product.ID, &forecast))

	predicted, err := svc.Update(ctx, product.ID)
	require.NoError(t, err)
	assert.Nil(t, predicted)

	stored, err := db.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.OutOfStockForecast)
}

func TestForecastNilWithoutRestock(t *testing.T) {
	db := setupTestDB(t)
	logger := zerolog.Nop()
	svc := NewForecastService(db, &logger)
	ctx := context.Background()

	product := &models.Product{Code: "7311070347272", Name: "Kex", IsActive: true}
	require.NoError(t, db.CreateProduct(ctx, product))
	// Stock without any inventory transaction (e.g. a correction).
	insertTrxAt(t, db, product.ID, models.TrxCorrection, 20, time.Now().AddDate(0, 0, -3))

	predicted, err := svc.Update(ctx, product.ID)
	require.NoError(t, err)
	assert.Nil(t, predicted)
}

func TestForecastNilWithoutConsumption(t *testing.T) {
	db := setupTestDB(t)
	logger := zerolog.Nop()
	svc := NewForecastService(db, &logger)
	ctx := context.Background()

	product := seedProduct(t, db, "7290115203868", "10", 40)

	predicted, err := svc.Update(ctx, product.ID)
	require.NoError(t, err)
	assert.Nil(t, predicted)
}
