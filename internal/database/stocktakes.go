package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"foobar/internal/models"
)

// InitiateStocktake opens a stock-taking round: active products are
// split into chunks of chunkSize, grouped by category so one counter
// walks one shelf. Only one unlocked round may exist at a time.
func (db *DB) InitiateStocktake(ctx context.Context, chunkSize int) (*models.Stocktake, error) {
	if chunkSize <= 0 {
		chunkSize = models.DefaultStocktakeChunkSize
	}

	var stocktake models.Stocktake
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var open int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM stocktakes WHERE locked = 0`).Scan(&open); err != nil {
			return fmt.Errorf("failed to count open stock-takings: %w", err)
		}
		if open > 0 {
			return ErrStocktakeInProgress
		}

		now := time.Now()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO stocktakes (locked, created_at, updated_at) VALUES (0, ?, ?)`, now, now)
		if err != nil {
			return fmt.Errorf("failed to create stock-taking: %w", err)
		}
		stocktake.ID, _ = res.LastInsertId()
		stocktake.CreatedAt = now
		stocktake.UpdatedAt = now

		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM products WHERE is_active = 1 ORDER BY category_id, name`)
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}
		var productIDs []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan product id: %w", err)
			}
			productIDs = append(productIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for start := 0; start < len(productIDs); start += chunkSize {
			end := start + chunkSize
			if end > len(productIDs) {
				end = len(productIDs)
			}

			res, err := tx.ExecContext(ctx,
				`INSERT INTO stocktake_chunks (stocktake_id, owner_id, locked, created_at, updated_at) VALUES (?, '', 0, ?, ?)`,
				stocktake.ID, now, now)
			if err != nil {
				return fmt.Errorf("failed to create chunk: %w", err)
			}
			chunkID, _ := res.LastInsertId()
			chunk := models.StocktakeChunk{
				ID:          chunkID,
				StocktakeID: stocktake.ID,
				CreatedAt:   now,
				UpdatedAt:   now,
			}

			for _, productID := range productIDs[start:end] {
				res, err := tx.ExecContext(ctx,
					`INSERT INTO stocktake_items (chunk_id, product_id, qty) VALUES (?, ?, 0)`,
					chunkID, productID)
				if err != nil {
					return fmt.Errorf("failed to create stock-taking item: %w", err)
				}
				itemID, _ := res.LastInsertId()
				chunk.Items = append(chunk.Items, models.StocktakeItem{
					ID: itemID, ChunkID: chunkID, ProductID: productID,
				})
			}
			stocktake.Chunks = append(stocktake.Chunks, chunk)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stocktake, nil
}

// GetOpenStocktake returns the unlocked round, if any.
func (db *DB) GetOpenStocktake(ctx context.Context) (*models.Stocktake, error) {
	var st models.Stocktake
	err := db.QueryRowContext(ctx,
		`SELECT id, locked, created_at, updated_at FROM stocktakes WHERE locked = 0 ORDER BY id DESC LIMIT 1`,
	).Scan(&st.ID, &st.Locked, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock-taking: %w", err)
	}
	return &st, nil
}

// AssignChunk hands the caller a chunk to count. The same owner always
// gets their unfinished chunk back; otherwise the oldest free chunk is
// claimed. The claim runs in a transaction so two counters never share
// a chunk.
func (db *DB) AssignChunk(ctx context.Context, stocktakeID int64, ownerID string) (*models.StocktakeChunk, error) {
	var chunkID int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var locked bool
		err := tx.QueryRowContext(ctx, `SELECT locked FROM stocktakes WHERE id = ?`, stocktakeID).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load stock-taking: %w", err)
		}
		if locked {
			return ErrStocktakeLocked
		}

		err = tx.QueryRowContext(ctx,
			`SELECT id FROM stocktake_chunks WHERE stocktake_id = ? AND owner_id = ? AND locked = 0 ORDER BY id LIMIT 1`,
			stocktakeID, ownerID,
		).Scan(&chunkID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to look up owned chunk: %w", err)
		}

		err = tx.QueryRowContext(ctx,
			`SELECT id FROM stocktake_chunks WHERE stocktake_id = ? AND owner_id = '' AND locked = 0 ORDER BY id LIMIT 1`,
			stocktakeID,
		).Scan(&chunkID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up free chunk: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE stocktake_chunks SET owner_id = ?, updated_at = ? WHERE id = ? AND owner_id = ''`,
			ownerID, time.Now(), chunkID)
		if err != nil {
			return fmt.Errorf("failed to claim chunk: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrChunkLocked
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetChunk(ctx, chunkID)
}

func (db *DB) GetChunk(ctx context.Context, id int64) (*models.StocktakeChunk, error) {
	var c models.StocktakeChunk
	query := `SELECT id, stocktake_id, owner_id, locked, created_at, updated_at FROM stocktake_chunks WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.StocktakeID, &c.OwnerID, &c.Locked, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, chunk_id, product_id, qty FROM stocktake_items WHERE chunk_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item models.StocktakeItem
		if err := rows.Scan(&item.ID, &item.ChunkID, &item.ProductID, &item.Qty); err != nil {
			return nil, fmt.Errorf("failed to scan chunk item: %w", err)
		}
		c.Items = append(c.Items, item)
	}
	return &c, rows.Err()
}

// SetStocktakeItemQty records a counted quantity. The chunk must belong
// to the counter and still be open.
func (db *DB) SetStocktakeItemQty(ctx context.Context, itemID int64, ownerID string, qty int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var chunkOwner string
		var chunkLocked bool
		query := `SELECT c.owner_id, c.locked FROM stocktake_items i
                  JOIN stocktake_chunks c ON c.id = i.chunk_id WHERE i.id = ?`
		err := tx.QueryRowContext(ctx, query, itemID).Scan(&chunkOwner, &chunkLocked)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load stock-taking item: %w", err)
		}
		if chunkLocked {
			return ErrChunkLocked
		}
		if chunkOwner != ownerID {
			return ErrChunkLocked
		}

		_, err = tx.ExecContext(ctx, `UPDATE stocktake_items SET qty = ? WHERE id = ?`, qty, itemID)
		if err != nil {
			return fmt.Errorf("failed to update counted quantity: %w", err)
		}
		return nil
	})
}

// FinalizeChunk closes a counted chunk and releases its owner.
func (db *DB) FinalizeChunk(ctx context.Context, chunkID int64, ownerID string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE stocktake_chunks SET locked = 1, owner_id = '', updated_at = ? WHERE id = ? AND owner_id = ? AND locked = 0`,
		time.Now(), chunkID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to finalize chunk: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChunkLocked
	}
	return nil
}

// FinalizeStocktake closes the round. Every chunk must be finished;
// each counted quantity that differs from the cached one produces a
// finalized correction transaction bringing the cache in line.
func (db *DB) FinalizeStocktake(ctx context.Context, stocktakeID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var locked bool
		err := tx.QueryRowContext(ctx, `SELECT locked FROM stocktakes WHERE id = ?`, stocktakeID).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load stock-taking: %w", err)
		}
		if locked {
			return ErrStocktakeLocked
		}

		var unfinished int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM stocktake_chunks WHERE stocktake_id = ? AND locked = 0`, stocktakeID,
		).Scan(&unfinished)
		if err != nil {
			return fmt.Errorf("failed to count chunks: %w", err)
		}
		if unfinished > 0 {
			return ErrUnfinishedChunks
		}

		query := `SELECT i.product_id, i.qty, p.qty FROM stocktake_items i
                  JOIN stocktake_chunks c ON c.id = i.chunk_id
                  JOIN products p ON p.id = i.product_id
                  WHERE c.stocktake_id = ?`
		rows, err := tx.QueryContext(ctx, query, stocktakeID)
		if err != nil {
			return fmt.Errorf("failed to load counted items: %w", err)
		}

		type correction struct {
			productID string
			diff      int64
		}
		var corrections []correction
		for rows.Next() {
			var productID string
			var counted, cached int64
			if err := rows.Scan(&productID, &counted, &cached); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan counted item: %w", err)
			}
			if diff := counted - cached; diff != 0 {
				corrections = append(corrections, correction{productID: productID, diff: diff})
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		reference := fmt.Sprintf("stocktake:%d", stocktakeID)
		for _, c := range corrections {
			trx := &models.ProductTransaction{
				ProductID: c.productID,
				TrxType:   models.TrxCorrection,
				Qty:       c.diff,
				Status:    models.StatusFinalized,
				Reference: reference,
			}
			if err := insertProductTrx(ctx, tx, trx); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE stocktakes SET locked = 1, updated_at = ? WHERE id = ?`, time.Now(), stocktakeID)
		if err != nil {
			return fmt.Errorf("failed to lock stock-taking: %w", err)
		}
		return nil
	})
}
