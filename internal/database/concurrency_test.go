package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"foobar/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Concurrent purchases from one wallet must never overdraw it, whatever
// mix of successes, insufficient-funds and lock contention comes out.
func TestConcurrentPurchasesNeverOverdraw(t *testing.T) {
	logger := zerolog.Nop()
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	account := &models.Account{}
	require.NoError(t, db.CreateAccount(ctx, account))
	depositTo(t, db, account.ID, "100")

	product := createTestProduct(t, db, "7310865004703", "60", 100)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := db.CreatePurchase(ctx, account.ID, []models.PurchaseLine{
				{ProductID: product.ID, Qty: 1},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		// Lock contention shows up as a driver error; that is fine, the
		// purchase just did not happen.
		if errors.Is(err, ErrInsufficientFunds) {
			continue
		}
	}

	// 100 in the wallet, 60 per purchase: one success at most.
	assert.LessOrEqual(t, successes, 1)

	balance, err := db.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, balance.IsNegative(), "balance went negative: %s", balance)
	assert.True(t, balance.Equal(decimal.RequireFromString("100").Sub(decimal.NewFromInt(int64(successes)*60))))
}
