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

func (db *DB) CreateDelivery(ctx context.Context, delivery *models.Delivery) error {
	now := time.Now()
	res, err := db.ExecContext(ctx,
		`INSERT INTO deliveries (supplier_id, report_path, locked, created_at, updated_at) VALUES (?, ?, 0, ?, ?)`,
		delivery.SupplierID, delivery.ReportPath, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create delivery: %w", err)
	}
	delivery.ID, _ = res.LastInsertId()
	delivery.Locked = false
	delivery.CreatedAt = now
	delivery.UpdatedAt = now
	return nil
}

func (db *DB) GetDelivery(ctx context.Context, id int64) (*models.Delivery, error) {
	var d models.Delivery
	query := `SELECT id, supplier_id, report_path, locked, created_at, updated_at FROM deliveries WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.SupplierID, &d.ReportPath, &d.Locked, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}

	items, err := db.getDeliveryItems(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Items = items
	return &d, nil
}

func (db *DB) getDeliveryItems(ctx context.Context, deliveryID int64) ([]models.DeliveryItem, error) {
	query := `SELECT id, delivery_id, supplier_product_id, qty, price FROM delivery_items WHERE delivery_id = ? ORDER BY id`
	rows, err := db.QueryContext(ctx, query, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery items: %w", err)
	}
	defer rows.Close()

	var items []models.DeliveryItem
	for rows.Next() {
		var item models.DeliveryItem
		var priceStr string
		if err := rows.Scan(&item.ID, &item.DeliveryID, &item.SupplierProductID, &item.Qty, &priceStr); err != nil {
			return nil, fmt.Errorf("failed to scan delivery item: %w", err)
		}
		if item.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("failed to parse delivery item price: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ReplaceDeliveryItems rewrites a delivery's item list, typically after
// re-parsing its report. Locked deliveries cannot change.
func (db *DB) ReplaceDeliveryItems(ctx context.Context, deliveryID int64, items []models.DeliveryItem) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		locked, err := deliveryLocked(ctx, tx, deliveryID)
		if err != nil {
			return err
		}
		if locked {
			return ErrDeliveryLocked
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM delivery_items WHERE delivery_id = ?`, deliveryID); err != nil {
			return fmt.Errorf("failed to clear delivery items: %w", err)
		}
		for i := range items {
			item := &items[i]
			res, err := tx.ExecContext(ctx,
				`INSERT INTO delivery_items (delivery_id, supplier_product_id, qty, price) VALUES (?, ?, ?, ?)`,
				deliveryID, item.SupplierProductID, item.Qty, item.Price.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert delivery item: %w", err)
			}
			item.ID, _ = res.LastInsertId()
			item.DeliveryID = deliveryID
		}
		_, err = tx.ExecContext(ctx, `UPDATE deliveries SET updated_at = ? WHERE id = ?`, time.Now(), deliveryID)
		return err
	})
}

// ProcessDelivery books a delivery into stock: every item must resolve
// to an associated product, each item becomes a finalized inventory
// transaction, and the delivery locks so it cannot be booked twice.
func (db *DB) ProcessDelivery(ctx context.Context, deliveryID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		locked, err := deliveryLocked(ctx, tx, deliveryID)
		if err != nil {
			return err
		}
		if locked {
			return ErrDeliveryLocked
		}

		// Item quantities are already in stock units; the report package
		// multiplier is applied when the delivery is populated.
		query := `SELECT di.qty, sp.product_id
                  FROM delivery_items di
                  JOIN supplier_products sp ON sp.id = di.supplier_product_id
                  WHERE di.delivery_id = ?`
		rows, err := tx.QueryContext(ctx, query, deliveryID)
		if err != nil {
			return fmt.Errorf("failed to load delivery items: %w", err)
		}

		type stockLine struct {
			productID string
			qty       int64
		}
		var lines []stockLine
		for rows.Next() {
			var qty int64
			var productID string
			if err := rows.Scan(&qty, &productID); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan delivery item: %w", err)
			}
			if productID == "" {
				rows.Close()
				return ErrDeliveryInvalid
			}
			lines = append(lines, stockLine{productID: productID, qty: qty})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrDeliveryInvalid
		}

		reference := fmt.Sprintf("delivery:%d", deliveryID)
		for _, line := range lines {
			trx := &models.ProductTransaction{
				ProductID: line.productID,
				TrxType:   models.TrxInventory,
				Qty:       line.qty,
				Status:    models.StatusFinalized,
				Reference: reference,
			}
			if err := insertProductTrx(ctx, tx, trx); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE deliveries SET locked = 1, updated_at = ? WHERE id = ?`, time.Now(), deliveryID)
		if err != nil {
			return fmt.Errorf("failed to lock delivery: %w", err)
		}
		return nil
	})
}

func deliveryLocked(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	var locked bool
	err := tx.QueryRowContext(ctx, `SELECT locked FROM deliveries WHERE id = ?`, id).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to load delivery: %w", err)
	}
	return locked, nil
}

func (db *DB) ListDeliveries(ctx context.Context, supplierID int64) ([]models.Delivery, error) {
	query := `SELECT id, supplier_id, report_path, locked, created_at, updated_at
              FROM deliveries WHERE supplier_id = ? ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []models.Delivery
	for rows.Next() {
		var d models.Delivery
		if err := rows.Scan(&d.ID, &d.SupplierID, &d.ReportPath, &d.Locked, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}
