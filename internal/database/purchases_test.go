package database

import (
	"context"
	"testing"

	"foobar/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMainWallet = "wallet-main"
	testCashWallet = "wallet-cash"
)

func depositTo(t *testing.T, db *DB, ownerID, amount string) {
	t.Helper()
	trx := &models.WalletTransaction{
		OwnerID: ownerID,
		TrxType: models.WalletTrxDeposit,
		Amount:  decimal.RequireFromString(amount),
		Status:  models.StatusFinalized,
	}
	require.NoError(t, db.CreateWalletTransaction(context.Background(), trx))
}

func TestCardPurchaseLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	account := &models.Account{}
	require.NoError(t, db.CreateAccount(ctx, account))
	depositTo(t, db, account.ID, "1000")

	product := createTestProduct(t, db, "7310865004703", "23", 50)

	purchase, err := db.CreatePurchase(ctx, account.ID, []models.PurchaseLine{
		{ProductID: product.ID, Qty: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, purchase.Status)
	assert.True(t, purchase.Amount.Equal(decimal.RequireFromString("69")), "got %s", purchase.Amount)
	require.Len(t, purchase.Items, 1)

	// Stock drops and funds reserve while the purchase is pending.
	got, err := db.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(47), got.Qty)

	balance, err := db.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("931")))

	mainBalance, err := db.GetBalance(ctx, testMainWallet)
	require.NoError(t, err)
	assert.True(t, mainBalance.IsZero())

	finalized, err := db.FinalizePurchase(ctx, purchase.ID, testMainWallet, testCashWallet)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinalized, finalized.Status)

	mainBalance, err = db.GetBalance(ctx, testMainWallet)
	require.NoError(t, err)
	assert.True(t, mainBalance.Equal(decimal.RequireFromString("69")))

	balance, err = db.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("931")))

	// A finalized purchase cannot transition again.
	_, err = db.FinalizePurchase(ctx, purchase.ID, testMainWallet, testCashWallet)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = db.CancelPurchase(ctx, purchase.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelPurchaseRestoresEverything(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	account := &models.Account{}
	require.NoError(t, db.CreateAccount(ctx, account))
	depositTo(t, db, account.ID, "100")

	product := createTestProduct(t, db, "7340131606003", "12.50", 8)

	purchase, err := db.CreatePurchase(ctx, account.ID, []models.PurchaseLine{
		{ProductID: product.ID, Qty: 2},
	})
	require.NoError(t, err)

	canceled, err := db.CancelPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, canceled.Status)

	got, err := db.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.Qty)

	balance, err := db.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("100")))

	trxs, err := db.GetProductTransactionsByRef(ctx, purchase.ID)
	require.NoError(t, err)
	require.Len(t, trxs, 1)
	assert.Equal(t, models.StatusCanceled, trxs[0].Status)
}

func TestCashPurchaseCreditsCashWallet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	product := createTestProduct(t, db, "7311070347272", "7", 20)

	purchase, err := db.CreatePurchase(ctx, "", []models.PurchaseLine{
		{ProductID: product.ID, Qty: 4},
	})
	require.NoError(t, err)

	_, err = db.FinalizePurchase(ctx, purchase.ID, testMainWallet, testCashWallet)
	require.NoError(t, err)

	cashBalance, err := db.GetBalance(ctx, testCashWallet)
	require.NoError(t, err)
	assert.True(t, cashBalance.Equal(decimal.RequireFromString("28")))

	mainBalance, err := db.GetBalance(ctx, testMainWallet)
	require.NoError(t, err)
	assert.True(t, mainBalance.IsZero())
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	account := &models.Account{}
	require.NoError(t, db.CreateAccount(ctx, account))
	depositTo(t, db, account.ID, "10")

	product := createTestProduct(t, db, "7310070765680", "23", 10)

	_, err := db.CreatePurchase(ctx, account.ID, []models.PurchaseLine{
		{ProductID: product.ID, Qty: 1},
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Failed purchase leaves no stock movement behind.
	got, err := db.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Qty)

	purchases, err := db.ListPurchases(ctx, account.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, purchases)
}

func TestPurchaseUnknownProduct(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.CreatePurchase(ctx, "", []models.PurchaseLine{
		{ProductID: "does-not-exist", Qty: 1},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurchaseAllowsNegativeStock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	product := createTestProduct(t, db, "7290115203868", "5", 1)

	purchase, err := db.CreatePurchase(ctx, "", []models.PurchaseLine{
		{ProductID: product.ID, Qty: 3},
	})
	require.NoError(t, err)
	_, err = db.FinalizePurchase(ctx, purchase.ID, testMainWallet, testCashWallet)
	require.NoError(t, err)

	// The cached quantity goes negative rather than blocking the sale.
	got, err := db.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), got.Qty)
}
