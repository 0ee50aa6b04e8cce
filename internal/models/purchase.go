package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is a kiosk transaction. AccountID is empty for cash
// purchases.
type Purchase struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"` // pending, finalized, canceled
	Items     []PurchaseItem  `json:"items,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Version   int64           `json:"version"`
}

type PurchaseItem struct {
	ID         int64           `json:"id"`
	PurchaseID string          `json:"purchase_id"`
	ProductID  string          `json:"product_id"`
	Qty        int64           `json:"qty"`
	Amount     decimal.Decimal `json:"amount"` // unit price at purchase time
}

// PurchaseLine is the kiosk request to buy Qty units of a product.
type PurchaseLine struct {
	ProductID string `json:"product_id"`
	Qty       int64  `json:"qty"`
}
