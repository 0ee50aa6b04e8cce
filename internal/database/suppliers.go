package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"foobar/internal/models"

	"github.com/shopspring/decimal"
)

func (db *DB) CreateSupplier(ctx context.Context, supplier *models.Supplier) error {
	now := time.Now()
	res, err := db.ExecContext(ctx,
		`INSERT INTO suppliers (name, internal_name, delivers_on, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		supplier.Name, supplier.InternalName, supplier.DeliversOn, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create supplier: %w", err)
	}
	supplier.ID, _ = res.LastInsertId()
	supplier.CreatedAt = now
	supplier.UpdatedAt = now
	return nil
}

func (db *DB) GetSupplier(ctx context.Context, id int64) (*models.Supplier, error) {
	var s models.Supplier
	query := `SELECT id, name, internal_name, delivers_on, created_at, updated_at FROM suppliers WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Name, &s.InternalName, &s.DeliversOn, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	return &s, nil
}

func (db *DB) GetSupplierByName(ctx context.Context, internalName string) (*models.Supplier, error) {
	var s models.Supplier
	query := `SELECT id, name, internal_name, delivers_on, created_at, updated_at FROM suppliers WHERE internal_name = ?`
	err := db.QueryRowContext(ctx, query, internalName).Scan(
		&s.ID, &s.Name, &s.InternalName, &s.DeliversOn, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	return &s, nil
}

func (db *DB) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, internal_name, delivers_on, created_at, updated_at FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []models.Supplier
	for rows.Next() {
		var s models.Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.InternalName, &s.DeliversOn, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

// UpsertSupplierProduct inserts a supplier product or refreshes its
// price and package data when the (supplier, sku) pair already exists.
// The product link survives refreshes.
func (db *DB) UpsertSupplierProduct(ctx context.Context, sp *models.SupplierProduct) error {
	now := time.Now()
	query := `INSERT INTO supplier_products (supplier_id, sku, name, price, qty, qty_multiplier, product_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(supplier_id, sku) DO UPDATE SET
                  name = excluded.name,
                  price = excluded.price,
                  qty = excluded.qty,
                  qty_multiplier = excluded.qty_multiplier,
                  updated_at = excluded.updated_at`
	if _, err := db.ExecContext(ctx, query,
		sp.SupplierID, sp.SKU, sp.Name, sp.Price.String(), sp.Qty, sp.QtyMultiplier, sp.ProductID, now, now,
	); err != nil {
		return fmt.Errorf("failed to upsert supplier product: %w", err)
	}

	stored, err := db.GetSupplierProductBySKU(ctx, sp.SupplierID, sp.SKU)
	if err != nil {
		return err
	}
	sp.ID = stored.ID
	sp.ProductID = stored.ProductID
	sp.CreatedAt = stored.CreatedAt
	sp.UpdatedAt = stored.UpdatedAt
	return nil
}

const supplierProductColumns = `id, supplier_id, sku, name, price, qty, qty_multiplier, product_id, created_at, updated_at`

func scanSupplierProduct(row interface{ Scan(...any) error }) (*models.SupplierProduct, error) {
	var sp models.SupplierProduct
	var priceStr string
	err := row.Scan(
		&sp.ID, &sp.SupplierID, &sp.SKU, &sp.Name, &priceStr,
		&sp.Qty, &sp.QtyMultiplier, &sp.ProductID, &sp.CreatedAt, &sp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sp.Price, err = decimal.NewFromString(priceStr); err != nil {
		return nil, fmt.Errorf("failed to parse supplier product price: %w", err)
	}
	return &sp, nil
}

func (db *DB) GetSupplierProduct(ctx context.Context, id int64) (*models.SupplierProduct, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+supplierProductColumns+` FROM supplier_products WHERE id = ?`, id)
	sp, err := scanSupplierProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier product: %w", err)
	}
	return sp, nil
}

func (db *DB) GetSupplierProductBySKU(ctx context.Context, supplierID int64, sku string) (*models.SupplierProduct, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+supplierProductColumns+` FROM supplier_products WHERE supplier_id = ? AND sku = ?`, supplierID, sku)
	sp, err := scanSupplierProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier product: %w", err)
	}
	return sp, nil
}

// LinkSupplierProduct associates a supplier product with a stock product
// and records how many stock units one report package yields.
func (db *DB) LinkSupplierProduct(ctx context.Context, id int64, productID string, qtyMultiplier int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE supplier_products SET product_id = ?, qty_multiplier = ?, updated_at = ? WHERE id = ?`,
		productID, qtyMultiplier, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to link supplier product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSupplierProductsByProduct returns the supplier products linked to
// a stock product, optionally restricted to one supplier (0 = any).
func (db *DB) GetSupplierProductsByProduct(ctx context.Context, productID string, supplierID int64) ([]models.SupplierProduct, error) {
	query := `SELECT ` + supplierProductColumns + ` FROM supplier_products WHERE product_id = ?`
	args := []any{productID}
	if supplierID != 0 {
		query += ` AND supplier_id = ?`
		args = append(args, supplierID)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list supplier products: %w", err)
	}
	defer rows.Close()

	var products []models.SupplierProduct
	for rows.Next() {
		sp, err := scanSupplierProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan supplier product: %w", err)
		}
		products = append(products, *sp)
	}
	return products, rows.Err()
}
