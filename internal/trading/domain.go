// Package trading records commercial documents: purchases from suppliers
// and sales to customers, together with their line items, inline payment,
// stock movement and party-ledger effect.
package trading

import (
	"errors"
	"time"

	"github.com/arcadia-retail/arcadia/internal/party"
)

// Kind selects the document variant. It decides the numbering series, the
// stock-delta sign and which party role the document references.
type Kind string

const (
	// KindPurchase records goods bought from a supplier (stock in).
	KindPurchase Kind = "purchase"
	// KindSale records goods sold to a customer (stock out).
	KindSale Kind = "sale"
)

// SeriesPrefix returns the document-number series for the kind.
func (k Kind) SeriesPrefix() string {
	if k == KindSale {
		return "BNO"
	}
	return "INV"
}

// StockSign is the multiplier applied to line quantities when adjusting
// stock: purchases add, sales subtract.
func (k Kind) StockSign() float64 {
	if k == KindSale {
		return -1
	}
	return 1
}

// PartyRole returns the counterparty role the kind transacts with.
func (k Kind) PartyRole() party.Role {
	if k == KindSale {
		return party.RoleCustomer
	}
	return party.RoleSupplier
}

// Valid reports whether the kind is a known value.
func (k Kind) Valid() bool {
	return k == KindPurchase || k == KindSale
}

// Document status values.
const (
	StatusActive    = 1
	StatusCancelled = 2
)

// Discount on a document. When only a percentage is supplied the amount is
// derived from the subtotal at recording time.
type Discount struct {
	Percentage float64 `json:"percentage"`
	Amount     float64 `json:"amount"`
}

// PriceSnapshot captures a product's price book at transaction time. Line
// items keep these values even if the product's prices later change.
type PriceSnapshot struct {
	Retail    float64 `json:"retail"`
	Wholesale float64 `json:"wholesale"`
	Purchase  float64 `json:"purchasesale"`
	MRP       float64 `json:"mrp"`
}

// LineTax is the resolved tax for one line.
type LineTax struct {
	Percentage float64 `json:"percentage"`
	Amount     float64 `json:"amount"`
}

// LineItem belongs to exactly one document; (document number, product) pairs
// are unique. Lines are priced at the retail price for both document kinds.
type LineItem struct {
	DocumentNumber string        `json:"document_number"`
	ProductID      string        `json:"product_id"`
	Quantity       float64       `json:"quantity"`
	PriceType      string        `json:"price_type"`
	Price          PriceSnapshot `json:"price"`
	Tax            LineTax       `json:"tax"`
	Total          float64       `json:"total"`
	HSNSACCode     string        `json:"hsn_sac_code,omitempty"`
	Unit           int           `json:"unit,omitempty"`
}

// Document is the header of one recorded purchase or sale.
type Document struct {
	Number      string    `json:"document_number"`
	Kind        Kind      `json:"kind"`
	PartyID     string    `json:"party_id"`
	Date        time.Time `json:"document_date"`
	Subtotal    float64   `json:"total"`
	TaxTotal    float64   `json:"tax"`
	Discount    Discount  `json:"discount"`
	NetTotal    float64   `json:"net_total"`
	Paid        float64   `json:"paid"`
	Outstanding float64   `json:"outstanding"`
	Remarks     string    `json:"remarks,omitempty"`
	Status      int       `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCredit PaymentMethod = "credit"
	PaymentDebit  PaymentMethod = "debit"
	PaymentOnline PaymentMethod = "online"
)

// Valid reports whether the method is a known value.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCredit, PaymentDebit, PaymentOnline:
		return true
	}
	return false
}

// Payment is the optional inline payment created with a document. At most
// one exists per document; later payments are a separate flow.
type Payment struct {
	Reference      string        `json:"reference"`
	DocumentNumber string        `json:"document_number"`
	PartyID        string        `json:"party_id"`
	Method         PaymentMethod `json:"payment_method"`
	Amount         float64       `json:"payment_amount"`
	Date           time.Time     `json:"payment_date"`
}

// ListFilter narrows document listings.
type ListFilter struct {
	Kind    Kind
	PartyID string
	Search  string
	Page    int
	PerPage int
}

// Failure modes of the recording workflow. The first four surface before
// any write; the rest follow a compensating cleanup of the rows already
// written under the document number.
var (
	ErrPartyNotFound       = errors.New("trading: party not found or inactive")
	ErrInvalidLineItems    = errors.New("trading: product lines missing or malformed")
	ErrProductsUnavailable = errors.New("trading: some products not found or out of stock")
	ErrInvalidPayment      = errors.New("trading: invalid paid amount or payment method")
	ErrDuplicateNumber     = errors.New("trading: document number already exists")
	ErrNotFound            = errors.New("trading: document not found")
	ErrPartialWrite        = errors.New("trading: line items not fully written, recording rolled back")
	ErrPaymentWrite        = errors.New("trading: payment not written, recording rolled back")
	ErrStockAdjust         = errors.New("trading: stock adjustment failed, recording rolled back")
	ErrLedgerUpdate        = errors.New("trading: ledger update failed, recording rolled back")
)
