package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"foobar/internal/models"

	"github.com/google/uuid"
)

func (db *DB) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now()
	query := `INSERT INTO accounts (id, name, email, is_complete, can_take_card_payments, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		account.ID, account.Name, account.Email, account.IsComplete, account.CanTakeCardPayments, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

func (db *DB) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT id, name, email, is_complete, can_take_card_payments, created_at, updated_at
              FROM accounts WHERE id = ?`
	var a models.Account
	err := db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.Name, &a.Email, &a.IsComplete, &a.CanTakeCardPayments, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

// UpdateAccount overwrites name and email. An account with both set is
// considered complete.
func (db *DB) UpdateAccount(ctx context.Context, id, name, email string) error {
	complete := name != "" && email != ""
	query := `UPDATE accounts SET name = ?, email = ?, is_complete = ?, updated_at = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, query, name, email, complete, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) CreateCard(ctx context.Context, card *models.Card) error {
	now := time.Now()
	query := `INSERT INTO cards (number, account_id, date_used, created_at) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, query, card.Number, card.AccountID, now, now); err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	card.DateUsed = now
	card.CreatedAt = now
	return nil
}

// GetCard looks up a card and bumps its date_used.
func (db *DB) GetCard(ctx context.Context, number int64) (*models.Card, error) {
	now := time.Now()
	res, err := db.ExecContext(ctx, `UPDATE cards SET date_used = ? WHERE number = ?`, now, number)
	if err != nil {
		return nil, fmt.Errorf("failed to touch card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	var c models.Card
	query := `SELECT number, account_id, date_used, created_at FROM cards WHERE number = ?`
	err = db.QueryRowContext(ctx, query, number).Scan(&c.Number, &c.AccountID, &c.DateUsed, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return &c, nil
}

// GetCardsByAccount returns every card tied to an account.
func (db *DB) GetCardsByAccount(ctx context.Context, accountID string) ([]models.Card, error) {
	query := `SELECT number, account_id, date_used, created_at FROM cards WHERE account_id = ?`
	rows, err := db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		var c models.Card
		if err := rows.Scan(&c.Number, &c.AccountID, &c.DateUsed, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// GetAccountByCard resolves a card number to its account.
func (db *DB) GetAccountByCard(ctx context.Context, number int64) (*models.Account, error) {
	card, err := db.GetCard(ctx, number)
	if err != nil {
		return nil, err
	}
	return db.GetAccount(ctx, card.AccountID)
}
