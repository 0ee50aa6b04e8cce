package service

import (
	"context"
	"testing"

	"foobar/internal/config"
	"foobar/internal/database"
	"foobar/internal/events"
	"foobar/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWallets = config.WalletConfig{
	Currency:     "SEK",
	MainWalletID: "wallet-main",
	CashWalletID: "wallet-cash",
}

func setupTestDB(t *testing.T) *database.DB {
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newPurchaseService(t *testing.T, db *database.DB) (*PurchaseService, *events.EventBus) {
	logger := zerolog.Nop()
	bus := events.NewEventBus()
	return NewPurchaseService(db, bus, testWallets, &logger), bus
}

func seedAccount(t *testing.T, db *database.DB, balance string) *models.Account {
	t.Helper()
	ctx := context.Background()
	account := &models.Account{}
	require.NoError(t, db.CreateAccount(ctx, account))
	if balance != "" {
		trx := &models.WalletTransaction{
			OwnerID: account.ID,
			TrxType: models.WalletTrxDeposit,
			Amount:  decimal.RequireFromString(balance),
			Status:  models.StatusFinalized,
		}
		require.NoError(t, db.CreateWalletTransaction(ctx, trx))
	}
	return account
}

func seedProduct(t *testing.T, db *database.DB, code, price string, qty int64) *models.Product {
	t.Helper()
	ctx := context.Background()
	product := &models.Product{Code: code, Name: "Product " + code, Price: decimal.RequireFromString(price), IsActive: true}
	require.NoError(t, db.CreateProduct(ctx, product))
	if qty != 0 {
		trx := &models.ProductTransaction{
			ProductID: product.ID,
			TrxType:   models.TrxInventory,
			Qty:       qty,
			Status:    models.StatusFinalized,
			Reference: "restock:init",
		}
		require.NoError(t, db.CreateProductTransaction(ctx, trx))
	}
	return product
}

func TestPurchaseServiceFullFlow(t *testing.T) {
	db := setupTestDB(t)
	svc, bus := newPurchaseService(t, db)
	ctx := context.Background()

	var published []string
	for _, eventType := range []string{events.EventPurchaseCreated, events.EventPurchaseFinalized, events.EventPurchaseCanceled} {
		et := eventType
		bus.Subscribe(et, func(event *events.Event) error {
			published = append(published, et)
			return nil
		})
	}

	account := seedAccount(t, db, "1000")
	product := seedProduct(t, db, "7310865004703", "23", 50)

	purchase, err := svc.Create(ctx, account.ID, []models.PurchaseLine{{ProductID: product.ID, Qty: 3}})
	require.NoError(t, err)

	balance, err := db.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("931")))

	_, err = svc.Finalize(ctx, purchase.ID)
	require.NoError(t, err)

	mainBalance, err := db.GetBalance(ctx, testWallets.MainWalletID)
	require.NoError(t, err)
	assert.True(t, mainBalance.Equal(decimal.RequireFromString("69")))

	assert.Equal(t, []string{events.EventPurchaseCreated, events.EventPurchaseFinalized}, published)
}

func TestPurchaseServiceCancelPublishes(t *testing.T) {
	db := setupTestDB(t)
	svc, bus := newPurchaseService(t, db)
	ctx := context.Background()

	canceled := 0
	bus.Subscribe(events.EventPurchaseCanceled, func(event *events.Event) error {
		canceled++
		return nil
	})

	account := seedAccount(t, db, "100")
	product := seedProduct(t, db, "7340131606003", "10", 5)

	purchase, err := svc.Create(ctx, account.ID, []models.PurchaseLine{{ProductID: product.ID, Qty: 1}})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, purchase.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, canceled)

	balance, err := db.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("100")))
}

func TestPurchaseServiceInsufficientFunds(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newPurchaseService(t, db)
	ctx := context.Background()

	account := seedAccount(t, db, "5")
	product := seedProduct(t, db, "7311070347272", "10", 5)

	_, err := svc.Create(ctx, account.ID, []models.PurchaseLine{{ProductID: product.ID, Qty: 1}})
	assert.ErrorIs(t, err, database.ErrInsufficientFunds)
}
