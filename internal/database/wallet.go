package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"foobar/internal/models"

	"github.com/shopspring/decimal"
)

// GetBalance sums non-canceled wallet transactions for an owner.
// Pending amounts count: a pending purchase already reserves funds.
func (db *DB) GetBalance(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		balance, err = walletBalance(ctx, tx, ownerID)
		return err
	})
	return balance, err
}

func walletBalance(ctx context.Context, tx *sql.Tx, ownerID string) (decimal.Decimal, error) {
	query := `SELECT amount FROM wallet_transactions WHERE owner_id = ? AND status != ?`
	rows, err := tx.QueryContext(ctx, query, ownerID, models.StatusCanceled)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query wallet transactions: %w", err)
	}
	defer rows.Close()

	balance := decimal.Zero
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse amount: %w", err)
		}
		balance = balance.Add(amount)
	}
	return balance, rows.Err()
}

// CreateWalletTransaction records a ledger row, capturing the owner's
// balance before the transaction.
func (db *DB) CreateWalletTransaction(ctx context.Context, trx *models.WalletTransaction) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return insertWalletTrx(ctx, tx, trx)
	})
}

func insertWalletTrx(ctx context.Context, tx *sql.Tx, trx *models.WalletTransaction) error {
	if trx.Status == "" {
		trx.Status = models.StatusPending
	}
	pre, err := walletBalance(ctx, tx, trx.OwnerID)
	if err != nil {
		return err
	}
	trx.PreBalance = pre

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (owner_id, trx_type, amount, pre_balance, status, reference, comment, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trx.OwnerID, trx.TrxType, trx.Amount.String(), pre.String(), trx.Status, trx.Reference, trx.Comment, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert wallet transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	trx.ID = id
	trx.CreatedAt = now
	trx.UpdatedAt = now
	return nil
}

func setWalletTrxStatusByRef(ctx context.Context, tx *sql.Tx, reference, from, to string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE wallet_transactions SET status = ?, updated_at = ? WHERE reference = ? AND status = ?`,
		to, time.Now(), reference, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet transaction status: %w", err)
	}
	return nil
}

// ListWalletTransactions returns an owner's ledger, newest first.
func (db *DB) ListWalletTransactions(ctx context.Context, ownerID string, limit int) ([]models.WalletTransaction, error) {
	query := `SELECT id, owner_id, trx_type, amount, pre_balance, status, reference, comment, created_at, updated_at
              FROM wallet_transactions WHERE owner_id = ? ORDER BY id DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	defer rows.Close()

	var trxs []models.WalletTransaction
	for rows.Next() {
		var t models.WalletTransaction
		var amountStr, preStr string
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.TrxType, &amountStr, &preStr, &t.Status, &t.Reference, &t.Comment, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		if t.PreBalance, err = decimal.NewFromString(preStr); err != nil {
			return nil, fmt.Errorf("failed to parse pre balance: %w", err)
		}
		trxs = append(trxs, t)
	}
	return trxs, rows.Err()
}

// withTx runs fn inside a transaction, committing on success. The
// connection's _txlock=immediate means the write lock is taken at
// BEGIN, not at the first write.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
