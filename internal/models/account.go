package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email,omitempty"`
	IsComplete          bool      `json:"is_complete"`
	CanTakeCardPayments bool      `json:"can_take_card_payments"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Card is an RFID card tied to an account. Number is what the kiosk
// reader scans.
type Card struct {
	Number    int64     `json:"number"`
	AccountID string    `json:"account_id"`
	DateUsed  time.Time `json:"date_used"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountSnapshot is the kiosk-facing view of an account: balance and a
// short-lived signed token for follow-up requests.
type AccountSnapshot struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Balance             decimal.Decimal `json:"balance"`
	Currency            string          `json:"currency"`
	Token               string          `json:"token"`
	IsComplete          bool            `json:"is_complete"`
	CanTakeCardPayments bool            `json:"can_take_card_payments"`
}

// WalletTransaction is a ledger row. Balance of an owner is the sum of
// amounts over non-canceled rows.
type WalletTransaction struct {
	ID         int64           `json:"id"`
	OwnerID    string          `json:"owner_id"`
	TrxType    string          `json:"trx_type"`
	Amount     decimal.Decimal `json:"amount"`
	PreBalance decimal.Decimal `json:"pre_balance"`
	Status     string          `json:"status"`
	Reference  string          `json:"reference,omitempty"`
	Comment    string          `json:"comment,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
