package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Supplier struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	InternalName string    `json:"internal_name"`
	DeliversOn   int       `json:"delivers_on"` // time.Weekday
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SupplierProduct is a product as sold by a supplier, usually in
// multi-unit packages. QtyMultiplier converts package rows from
// delivery reports into stock units.
type SupplierProduct struct {
	ID            int64           `json:"id"`
	SupplierID    int64           `json:"supplier_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Qty           int64           `json:"qty"` // units per package
	QtyMultiplier int64           `json:"qty_multiplier"`
	ProductID     string          `json:"product_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// UnitPrice is the per-unit cost of the supplier product.
func (sp SupplierProduct) UnitPrice() decimal.Decimal {
	if sp.Qty <= 0 {
		return sp.Price
	}
	return sp.Price.Div(decimal.NewFromInt(sp.Qty))
}

// Delivery is an incoming shipment described by a report file.
type Delivery struct {
	ID         int64          `json:"id"`
	SupplierID int64          `json:"supplier_id"`
	ReportPath string         `json:"report_path"`
	Locked     bool           `json:"locked"`
	Items      []DeliveryItem `json:"items,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type DeliveryItem struct {
	ID                int64           `json:"id"`
	DeliveryID        int64           `json:"delivery_id"`
	SupplierProductID int64           `json:"supplier_product_id"`
	Qty               int64           `json:"qty"`
	Price             decimal.Decimal `json:"price"` // per stock unit
}

// ReportRow is one parsed line of a supplier delivery report.
type ReportRow struct {
	SKU   string          `json:"sku"`
	Name  string          `json:"name"`
	Qty   int64           `json:"qty"`
	Price decimal.Decimal `json:"price"`
}
