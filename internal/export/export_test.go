package export

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"foobar/internal/database"
	"foobar/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestExporter(t *testing.T) (*Exporter, *database.DB) {
	t.Helper()
	dir := t.TempDir()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(dir, "export.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewExporter(db, filepath.Join(dir, "exports"), &logger), db
}

func TestStockReport(t *testing.T) {
	exporter, db := newTestExporter(t)
	ctx := context.Background()

	category, err := db.CreateCategory(ctx, "Drinks")
	require.NoError(t, err)

	forecast := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	product := &models.Product{
		Code: "7310865004703", Name: "Loka Citron", CategoryID: category.ID,
		Price: decimal.RequireFromString("10"), IsActive: true,
	}
	require.NoError(t, db.CreateProduct(ctx, product))
	require.NoError(t, db.SetOutOfStockForecast(ctx, product.ID, &forecast))

	path, err := exporter.StockReport(ctx)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(stockSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Code", "Name", "Category", "Qty", "Out of stock"}, rows[0])
	assert.Equal(t, "7310865004703", rows[1][0])
	assert.Equal(t, "Drinks", rows[1][2])
	assert.Equal(t, "2026-09-10", rows[1][4])
}

func TestPurchasesReport(t *testing.T) {
	exporter, db := newTestExporter(t)
	ctx := context.Background()

	product := &models.Product{Code: "7340131606003", Name: "Kex", Price: decimal.RequireFromString("15"), IsActive: true}
	require.NoError(t, db.CreateProduct(ctx, product))

	// Cash purchase; stock may go negative.
	_, err := db.CreatePurchase(ctx, "", []models.PurchaseLine{{ProductID: product.ID, Qty: 2}})
	require.NoError(t, err)

	start := time.Now().AddDate(0, 0, -1)
	end := time.Now().AddDate(0, 0, 1)
	path, err := exporter.PurchasesReport(ctx, start, end)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(purchasesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "cash", rows[1][1])
	assert.Equal(t, "30.00", rows[1][2])

	// A range with no purchases still produces a sheet with headers.
	empty, err := exporter.PurchasesReport(ctx, start.AddDate(-1, 0, 0), start)
	require.NoError(t, err)
	f2, err := excelize.OpenFile(empty)
	require.NoError(t, err)
	defer f2.Close()
	rows, err = f2.GetRows(purchasesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
