package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"foobar/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateProduct registers a product with zero stock. The cached qty is
// the sum of the product's transactions, so stock only enters through
// deliveries and corrections, never at creation.
func (db *DB) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	product.Qty = 0
	now := time.Now()
	query := `INSERT INTO products (id, code, name, description, category_id, price, qty, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		product.ID,
		product.Code,
		product.Name,
		product.Description,
		nullableInt64(product.CategoryID),
		product.Price.String(),
		product.IsActive,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return nil
}

func (db *DB) UpdateProduct(ctx context.Context, product *models.Product) error {
	now := time.Now()
	query := `UPDATE products SET code = ?, name = ?, description = ?, category_id = ?, price = ?, is_active = ?, updated_at = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, query,
		product.Code,
		product.Name,
		product.Description,
		nullableInt64(product.CategoryID),
		product.Price.String(),
		product.IsActive,
		now,
		product.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	product.UpdatedAt = now
	return nil
}

const productColumns = `id, code, name, description, COALESCE(category_id, 0), price, qty, is_active, out_of_stock_forecast, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	var priceStr string
	var forecast sql.NullTime
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.Description, &p.CategoryID,
		&priceStr, &p.Qty, &p.IsActive, &forecast, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Price, err = decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse product price: %w", err)
	}
	if forecast.Valid {
		t := forecast.Time
		p.OutOfStockForecast = &t
	}
	return &p, nil
}

func (db *DB) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`
	product, err := scanProduct(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (db *DB) GetProductByCode(ctx context.Context, code string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE code = ?`
	product, err := scanProduct(db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by code: %w", err)
	}
	return product, nil
}

// ListProducts returns products, active ones only unless includeInactive
// is set, ordered by category then name.
func (db *DB) ListProducts(ctx context.Context, includeInactive bool) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY COALESCE(category_id, 0), name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (db *DB) CreateCategory(ctx context.Context, name string) (*models.ProductCategory, error) {
	res, err := db.ExecContext(ctx, `INSERT INTO product_categories (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return &models.ProductCategory{ID: id, Name: name}, nil
}

func (db *DB) ListCategories(ctx context.Context) ([]models.ProductCategory, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM product_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.ProductCategory
	for rows.Next() {
		var c models.ProductCategory
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateProductTransaction inserts a stock movement and adjusts the
// cached product quantity in the same transaction.
func (db *DB) CreateProductTransaction(ctx context.Context, trx *models.ProductTransaction) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := insertProductTrx(ctx, tx, trx); err != nil {
		return err
	}

	return tx.Commit()
}

func insertProductTrx(ctx context.Context, tx *sql.Tx, trx *models.ProductTransaction) error {
	if trx.Status == "" {
		trx.Status = models.StatusPending
	}
	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO product_transactions (product_id, trx_type, qty, status, reference, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		trx.ProductID, trx.TrxType, trx.Qty, trx.Status, trx.Reference, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	trx.ID = id
	trx.CreatedAt = now
	trx.UpdatedAt = now

	// The cached qty tracks every non-canceled transaction.
	_, err = tx.ExecContext(ctx,
		`UPDATE products SET qty = qty + ?, updated_at = ? WHERE id = ?`,
		trx.Qty, now, trx.ProductID,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust product qty: %w", err)
	}
	return nil
}

// setProductTrxStatusByRef flips all transactions of a reference from
// one status to another. Canceling restores the cached quantities.
func setProductTrxStatusByRef(ctx context.Context, tx *sql.Tx, reference, from, to string) error {
	now := time.Now()
	if to == models.StatusCanceled {
		rows, err := tx.QueryContext(ctx,
			`SELECT product_id, qty FROM product_transactions WHERE reference = ? AND status = ?`,
			reference, from,
		)
		if err != nil {
			return fmt.Errorf("failed to load transactions for cancel: %w", err)
		}
		type adj struct {
			productID string
			qty       int64
		}
		var adjs []adj
		for rows.Next() {
			var a adj
			if err := rows.Scan(&a.productID, &a.qty); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan transaction: %w", err)
			}
			adjs = append(adjs, a)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, a := range adjs {
			if _, err := tx.ExecContext(ctx,
				`UPDATE products SET qty = qty - ?, updated_at = ? WHERE id = ?`,
				a.qty, now, a.productID,
			); err != nil {
				return fmt.Errorf("failed to restore product qty: %w", err)
			}
		}
	}

	_, err := tx.ExecContext(ctx,
		`UPDATE product_transactions SET status = ?, updated_at = ? WHERE reference = ? AND status = ?`,
		to, now, reference, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	return nil
}

// GetProductTransactionsByRef returns the stock movements recorded for
// a given reference (purchase id, delivery item, stocktake item).
func (db *DB) GetProductTransactionsByRef(ctx context.Context, reference string) ([]models.ProductTransaction, error) {
	query := `SELECT id, product_id, trx_type, qty, status, reference, created_at, updated_at
              FROM product_transactions WHERE reference = ? ORDER BY id`
	rows, err := db.QueryContext(ctx, query, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions by reference: %w", err)
	}
	defer rows.Close()

	var trxs []models.ProductTransaction
	for rows.Next() {
		var t models.ProductTransaction
		if err := rows.Scan(&t.ID, &t.ProductID, &t.TrxType, &t.Qty, &t.Status, &t.Reference, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		trxs = append(trxs, t)
	}
	return trxs, rows.Err()
}

// GetLastRestock returns the creation time of the most recent finalized
// inventory transaction for the product.
func (db *DB) GetLastRestock(ctx context.Context, productID string) (time.Time, error) {
	query := `SELECT created_at FROM product_transactions
              WHERE product_id = ? AND trx_type = ? AND status = ?
              ORDER BY created_at DESC LIMIT 1`
	var t time.Time
	err := db.QueryRowContext(ctx, query, productID, models.TrxInventory, models.StatusFinalized).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last restock: %w", err)
	}
	return t, nil
}

// GetFinalizedQtySumUpTo sums finalized transaction quantities created
// at or before the cutoff.
func (db *DB) GetFinalizedQtySumUpTo(ctx context.Context, productID string, cutoff time.Time) (int64, error) {
	query := `SELECT COALESCE(SUM(qty), 0) FROM product_transactions
              WHERE product_id = ? AND status = ? AND created_at <= ?`
	var sum int64
	err := db.QueryRowContext(ctx, query, productID, models.StatusFinalized, cutoff).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return sum, nil
}

// DailyQty is an aggregated stock delta for one calendar day.
type DailyQty struct {
	Day time.Time
	Qty int64
}

// GetDailyQtyAfter aggregates finalized transaction quantities per day
// for transactions created strictly after the cutoff.
func (db *DB) GetDailyQtyAfter(ctx context.Context, productID string, cutoff time.Time) ([]DailyQty, error) {
	query := `SELECT strftime('%Y-%m-%d', created_at) AS day, SUM(qty)
              FROM product_transactions
              WHERE product_id = ? AND status = ? AND created_at > ?
              GROUP BY day ORDER BY day`
	rows, err := db.QueryContext(ctx, query, productID, models.StatusFinalized, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily quantities: %w", err)
	}
	defer rows.Close()

	var result []DailyQty
	for rows.Next() {
		var dayStr string
		var d DailyQty
		if err := rows.Scan(&dayStr, &d.Qty); err != nil {
			return nil, fmt.Errorf("failed to scan daily qty: %w", err)
		}
		d.Day, err = time.Parse("2006-01-02", dayStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse day: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// SetOutOfStockForecast stores (or clears) the predicted depletion date.
func (db *DB) SetOutOfStockForecast(ctx context.Context, productID string, forecast *time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE products SET out_of_stock_forecast = ?, updated_at = ? WHERE id = ?`,
		forecast, time.Now(), productID,
	)
	if err != nil {
		return fmt.Errorf("failed to set forecast: %w", err)
	}
	return nil
}

func (db *DB) SetBaseStockLevel(ctx context.Context, productID string, level int64) error {
	query := `INSERT INTO base_stock_levels (product_id, level) VALUES (?, ?)
              ON CONFLICT(product_id) DO UPDATE SET level = excluded.level`
	if _, err := db.ExecContext(ctx, query, productID, level); err != nil {
		return fmt.Errorf("failed to set base stock level: %w", err)
	}
	return nil
}

// GetBaseStockLevel returns the configured restock level for a product,
// or ErrNotFound when none is set.
func (db *DB) GetBaseStockLevel(ctx context.Context, productID string) (int64, error) {
	var level int64
	err := db.QueryRowContext(ctx,
		`SELECT level FROM base_stock_levels WHERE product_id = ?`, productID,
	).Scan(&level)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get base stock level: %w", err)
	}
	return level, nil
}

// GetBaseStockLevelsBelowForecast returns base levels of products whose
// out-of-stock forecast falls strictly before the cutoff date.
func (db *DB) GetBaseStockLevelsBelowForecast(ctx context.Context, cutoff time.Time) ([]models.BaseStockLevel, error) {
	query := `SELECT b.product_id, b.level FROM base_stock_levels b
              JOIN products p ON p.id = b.product_id
              WHERE p.out_of_stock_forecast IS NOT NULL AND p.out_of_stock_forecast < ?`
	rows, err := db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get base stock levels: %w", err)
	}
	defer rows.Close()

	var levels []models.BaseStockLevel
	for rows.Next() {
		var l models.BaseStockLevel
		if err := rows.Scan(&l.ProductID, &l.Level); err != nil {
			return nil, fmt.Errorf("failed to scan base stock level: %w", err)
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
