package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID                  string          `json:"id"`
	Code                string          `json:"code"`
	Name                string          `json:"name"`
	Description         string          `json:"description,omitempty"`
	CategoryID          int64           `json:"category_id,omitempty"`
	Price               decimal.Decimal `json:"price"`
	Qty                 int64           `json:"qty"`
	IsActive            bool            `json:"is_active"`
	OutOfStockForecast  *time.Time      `json:"out_of_stock_forecast,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type ProductCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProductTransaction records a single stock movement. The cached
// Product.Qty is the sum of non-canceled transaction quantities.
type ProductTransaction struct {
	ID        int64     `json:"id"`
	ProductID string    `json:"product_id"`
	TrxType   string    `json:"trx_type"` // purchase, inventory, correction
	Qty       int64     `json:"qty"`
	Status    string    `json:"status"` // pending, finalized, canceled
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BaseStockLevel is the quantity a product should be restocked up to.
type BaseStockLevel struct {
	ProductID string `json:"product_id"`
	Level     int64  `json:"level"`
}
