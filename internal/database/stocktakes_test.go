package database

import (
	"context"
	"fmt"
	"testing"

	"foobar/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiateStocktakeChunksProducts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		createTestProduct(t, db, fmt.Sprintf("code-%02d", i), "10", 5)
	}
	// Inactive products are not counted.
	inactive := &models.Product{Code: "inactive", Name: "Old", IsActive: false}
	require.NoError(t, db.CreateProduct(ctx, inactive))

	stocktake, err := db.InitiateStocktake(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stocktake.Chunks, 3)
	assert.Len(t, stocktake.Chunks[0].Items, 10)
	assert.Len(t, stocktake.Chunks[1].Items, 10)
	assert.Len(t, stocktake.Chunks[2].Items, 5)

	// Only one open round at a time.
	_, err = db.InitiateStocktake(ctx, 10)
	assert.ErrorIs(t, err, ErrStocktakeInProgress)
}

func TestAssignChunkIsSticky(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		createTestProduct(t, db, fmt.Sprintf("code-%02d", i), "10", 5)
	}
	stocktake, err := db.InitiateStocktake(ctx, 10)
	require.NoError(t, err)

	first, err := db.AssignChunk(ctx, stocktake.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", first.OwnerID)

	// Asking again returns the same unfinished chunk.
	again, err := db.AssignChunk(ctx, stocktake.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	second, err := db.AssignChunk(ctx, stocktake.ID, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// Both chunks taken; a third counter gets nothing.
	_, err = db.AssignChunk(ctx, stocktake.ID, "carol")
	assert.ErrorIs(t, err, ErrNotFound)

	// Once alice finishes hers, she moves on to... nothing either.
	require.NoError(t, db.FinalizeChunk(ctx, first.ID, "alice"))
	_, err = db.AssignChunk(ctx, stocktake.ID, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	// Finishing a chunk releases its owner.
	finished, err := db.GetChunk(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, finished.Locked)
	assert.Empty(t, finished.OwnerID)
}

func TestSetStocktakeItemQtyOwnership(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestProduct(t, db, "code-01", "10", 5)
	stocktake, err := db.InitiateStocktake(ctx, 10)
	require.NoError(t, err)

	chunk, err := db.AssignChunk(ctx, stocktake.ID, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, chunk.Items)

	require.NoError(t, db.SetStocktakeItemQty(ctx, chunk.Items[0].ID, "alice", 4))

	err = db.SetStocktakeItemQty(ctx, chunk.Items[0].ID, "bob", 7)
	assert.ErrorIs(t, err, ErrChunkLocked)

	require.NoError(t, db.FinalizeChunk(ctx, chunk.ID, "alice"))
	err = db.SetStocktakeItemQty(ctx, chunk.Items[0].ID, "alice", 9)
	assert.ErrorIs(t, err, ErrChunkLocked)
}

func TestFinalizeStocktakeWritesCorrections(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	matching := createTestProduct(t, db, "code-01", "10", 5)
	short := createTestProduct(t, db, "code-02", "10", 5)

	stocktake, err := db.InitiateStocktake(ctx, 10)
	require.NoError(t, err)

	chunk, err := db.AssignChunk(ctx, stocktake.ID, "alice")
	require.NoError(t, err)
	require.Len(t, chunk.Items, 2)

	// Finalizing with open chunks is refused.
	err = db.FinalizeStocktake(ctx, stocktake.ID)
	assert.ErrorIs(t, err, ErrUnfinishedChunks)

	for _, item := range chunk.Items {
		counted := int64(5)
		if item.ProductID == short.ID {
			counted = 3
		}
		require.NoError(t, db.SetStocktakeItemQty(ctx, item.ID, "alice", counted))
	}
	require.NoError(t, db.FinalizeChunk(ctx, chunk.ID, "alice"))

	require.NoError(t, db.FinalizeStocktake(ctx, stocktake.ID))

	got, err := db.GetProduct(ctx, short.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Qty)

	got, err = db.GetProduct(ctx, matching.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Qty)

	// Matching counts produce no correction transaction.
	reference := fmt.Sprintf("stocktake:%d", stocktake.ID)
	trxs, err := db.GetProductTransactionsByRef(ctx, reference)
	require.NoError(t, err)
	require.Len(t, trxs, 1)
	assert.Equal(t, short.ID, trxs[0].ProductID)
	assert.Equal(t, int64(-2), trxs[0].Qty)
	assert.Equal(t, models.TrxCorrection, trxs[0].TrxType)

	// The round is locked now.
	err = db.FinalizeStocktake(ctx, stocktake.ID)
	assert.ErrorIs(t, err, ErrStocktakeLocked)
	_, err = db.AssignChunk(ctx, stocktake.ID, "bob")
	assert.ErrorIs(t, err, ErrStocktakeLocked)
}
