// Package catalog holds product master data and tax-rate resolution.
package catalog

import (
	"encoding/json"
	"errors"
	"time"
)

// Status and availability flags carried over from the upstream data model.
const (
	StatusActive   = 1
	StatusInactive = 0

	AvailabilityInStock    = 1
	AvailabilityOutOfStock = 0
)

// ProductSeriesPrefix is the identifier series for products.
const ProductSeriesPrefix = "PRO"

// Product is a long-lived catalog entry. StockQty is the current on-hand
// quantity; the storage column keeps its historical name opening_stock_qty.
type Product struct {
	ID             string    `json:"product_id"`
	Name           string    `json:"product_name"`
	Code           string    `json:"product_code"`
	Unit           int       `json:"unit"`
	Category       int       `json:"category"`
	Brand          int       `json:"brand"`
	TaxID          int       `json:"tax"`
	HSNSACCode     string    `json:"hsn_sac_code"`
	SupplierID     string    `json:"supplier"`
	MRP            float64   `json:"mrp"`
	RetailPrice    float64   `json:"retailsales_price"`
	PurchasePrice  float64   `json:"purchasesale_price"`
	WholesalePrice float64   `json:"wholesale_price"`
	StockQty       float64   `json:"opening_stock_qty"`
	MinStockQty    float64   `json:"min_stock_qty"`
	StoreLocation  string    `json:"store_location"`
	Status         int       `json:"status"`
	Availability   int       `json:"availability"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Sellable reports whether a product may appear on a new document.
func (p Product) Sellable() bool {
	return p.Status == StatusActive && p.Availability == AvailabilityInStock
}

// TaxSetting is a configured tax entry. Payload is stored as JSON and may be
// either a single rate object or an array of rate variants.
type TaxSetting struct {
	ID      int
	Payload json.RawMessage
	Active  bool
}

// TaxRate is the resolved rate applied to a line item.
type TaxRate struct {
	Percentage float64
}

// ListFilter narrows product listings.
type ListFilter struct {
	Search  string
	Page    int
	PerPage int
}

// ErrNotFound indicates a missing catalog record.
var ErrNotFound = errors.New("catalog: not found")

// ErrAlreadyExists indicates a duplicate product code or name.
var ErrAlreadyExists = errors.New("catalog: already exists")
