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

// CreatePurchase writes a purchase, its items, the per-product stock
// transactions and, for card purchases, the buyer's wallet debit - all
// inside one transaction. Prices are snapshotted from the products at
// purchase time. Card purchases fail with ErrInsufficientFunds when the
// buyer cannot cover the total; stock levels never block a purchase.
func (db *DB) CreatePurchase(ctx context.Context, accountID string, lines []models.PurchaseLine) (*models.Purchase, error) {
	if len(lines) == 0 {
		return nil, errors.New("purchase requires at least one line")
	}

	purchase := &models.Purchase{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Status:    models.StatusPending,
		Version:   1,
	}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		total := decimal.Zero

		for _, line := range lines {
			if line.Qty <= 0 {
				return fmt.Errorf("invalid quantity %d for product %s", line.Qty, line.ProductID)
			}

			var priceStr string
			err := tx.QueryRowContext(ctx, `SELECT price FROM products WHERE id = ?`, line.ProductID).Scan(&priceStr)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("product %s: %w", line.ProductID, ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("failed to load product %s: %w", line.ProductID, err)
			}
			price, err := decimal.NewFromString(priceStr)
			if err != nil {
				return fmt.Errorf("failed to parse price of %s: %w", line.ProductID, err)
			}

			trx := &models.ProductTransaction{
				ProductID: line.ProductID,
				TrxType:   models.TrxPurchase,
				Qty:       -line.Qty,
				Status:    models.StatusPending,
				Reference: purchase.ID,
			}
			if err := insertProductTrx(ctx, tx, trx); err != nil {
				return err
			}

			purchase.Items = append(purchase.Items, models.PurchaseItem{
				PurchaseID: purchase.ID,
				ProductID:  line.ProductID,
				Qty:        line.Qty,
				Amount:     price,
			})
			total = total.Add(price.Mul(decimal.NewFromInt(line.Qty)))
		}
		purchase.Amount = total

		if accountID != "" {
			balance, err := walletBalance(ctx, tx, accountID)
			if err != nil {
				return err
			}
			if balance.LessThan(total) {
				return ErrInsufficientFunds
			}
			debit := &models.WalletTransaction{
				OwnerID:   accountID,
				TrxType:   models.WalletTrxPurchase,
				Amount:    total.Neg(),
				Status:    models.StatusPending,
				Reference: purchase.ID,
			}
			if err := insertWalletTrx(ctx, tx, debit); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO purchases (id, account_id, amount, status, version, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			purchase.ID, accountID, total.String(), purchase.Status, purchase.Version, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert purchase: %w", err)
		}
		purchase.CreatedAt = now
		purchase.UpdatedAt = now

		for i := range purchase.Items {
			item := &purchase.Items[i]
			res, err := tx.ExecContext(ctx,
				`INSERT INTO purchase_items (purchase_id, product_id, qty, amount) VALUES (?, ?, ?, ?)`,
				item.PurchaseID, item.ProductID, item.Qty, item.Amount.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert purchase item: %w", err)
			}
			item.ID, _ = res.LastInsertId()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// FinalizePurchase moves a pending purchase to finalized: stock
// transactions are finalized and the funds land in the main wallet
// (card purchases, where the buyer's pending debit is finalized too) or
// the cash wallet.
func (db *DB) FinalizePurchase(ctx context.Context, purchaseID, mainWalletID, cashWalletID string) (*models.Purchase, error) {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		purchase, err := lockPurchase(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		if purchase.Status != models.StatusPending {
			return ErrInvalidTransition
		}
		if err := bumpPurchaseStatus(ctx, tx, purchase, models.StatusFinalized); err != nil {
			return err
		}

		if err := setProductTrxStatusByRef(ctx, tx, purchaseID, models.StatusPending, models.StatusFinalized); err != nil {
			return err
		}

		if purchase.AccountID != "" {
			if err := setWalletTrxStatusByRef(ctx, tx, purchaseID, models.StatusPending, models.StatusFinalized); err != nil {
				return err
			}
			credit := &models.WalletTransaction{
				OwnerID:   mainWalletID,
				TrxType:   models.WalletTrxPurchase,
				Amount:    purchase.Amount,
				Status:    models.StatusFinalized,
				Reference: purchaseID,
			}
			return insertWalletTrx(ctx, tx, credit)
		}

		credit := &models.WalletTransaction{
			OwnerID:   cashWalletID,
			TrxType:   models.WalletTrxCashPayment,
			Amount:    purchase.Amount,
			Status:    models.StatusFinalized,
			Reference: purchaseID,
		}
		return insertWalletTrx(ctx, tx, credit)
	})
	if err != nil {
		return nil, err
	}
	return db.GetPurchase(ctx, purchaseID)
}

// CancelPurchase voids a pending purchase: stock transactions are
// canceled (restoring the cached quantities) and the buyer's debit, if
// any, is canceled so the balance recovers.
func (db *DB) CancelPurchase(ctx context.Context, purchaseID string) (*models.Purchase, error) {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		purchase, err := lockPurchase(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		if purchase.Status != models.StatusPending {
			return ErrInvalidTransition
		}
		if err := bumpPurchaseStatus(ctx, tx, purchase, models.StatusCanceled); err != nil {
			return err
		}

		if err := setProductTrxStatusByRef(ctx, tx, purchaseID, models.StatusPending, models.StatusCanceled); err != nil {
			return err
		}
		return setWalletTrxStatusByRef(ctx, tx, purchaseID, models.StatusPending, models.StatusCanceled)
	})
	if err != nil {
		return nil, err
	}
	return db.GetPurchase(ctx, purchaseID)
}

func lockPurchase(ctx context.Context, tx *sql.Tx, id string) (*models.Purchase, error) {
	var p models.Purchase
	var amountStr string
	query := `SELECT id, account_id, amount, status, version, created_at, updated_at FROM purchases WHERE id = ?`
	err := tx.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.AccountID, &amountStr, &p.Status, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase: %w", err)
	}
	p.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse purchase amount: %w", err)
	}
	return &p, nil
}

// bumpPurchaseStatus performs the optimistic status update; a stale
// version means a concurrent transition won.
func bumpPurchaseStatus(ctx context.Context, tx *sql.Tx, purchase *models.Purchase, status string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE purchases SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		status, time.Now(), purchase.ID, purchase.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update purchase status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	purchase.Status = status
	purchase.Version++
	return nil
}

func (db *DB) GetPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	var p models.Purchase
	var amountStr string
	query := `SELECT id, account_id, amount, status, version, created_at, updated_at FROM purchases WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.AccountID, &amountStr, &p.Status, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	if p.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse purchase amount: %w", err)
	}

	items, err := db.getPurchaseItems(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return &p, nil
}

func (db *DB) getPurchaseItems(ctx context.Context, purchaseID string) ([]models.PurchaseItem, error) {
	query := `SELECT id, purchase_id, product_id, qty, amount FROM purchase_items WHERE purchase_id = ? ORDER BY id`
	rows, err := db.QueryContext(ctx, query, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase items: %w", err)
	}
	defer rows.Close()

	var items []models.PurchaseItem
	for rows.Next() {
		var item models.PurchaseItem
		var amountStr string
		if err := rows.Scan(&item.ID, &item.PurchaseID, &item.ProductID, &item.Qty, &amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan purchase item: %w", err)
		}
		if item.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse item amount: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListPurchasesBetween returns all purchases created in [start, end),
// oldest first. Used by the report export.
func (db *DB) ListPurchasesBetween(ctx context.Context, start, end time.Time) ([]models.Purchase, error) {
	query := `SELECT id, account_id, amount, status, version, created_at, updated_at
              FROM purchases WHERE created_at >= ? AND created_at < ? ORDER BY created_at`
	rows, err := db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []models.Purchase
	for rows.Next() {
		var p models.Purchase
		var amountStr string
		if err := rows.Scan(&p.ID, &p.AccountID, &amountStr, &p.Status, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse purchase amount: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// ListPurchases returns an account's purchases, newest first.
func (db *DB) ListPurchases(ctx context.Context, accountID string, limit int) ([]models.Purchase, error) {
	query := `SELECT id, account_id, amount, status, version, created_at, updated_at
              FROM purchases WHERE account_id = ? ORDER BY created_at DESC`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []models.Purchase
	for rows.Next() {
		var p models.Purchase
		var amountStr string
		if err := rows.Scan(&p.ID, &p.AccountID, &amountStr, &p.Status, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse purchase amount: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}
