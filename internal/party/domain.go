// Package party manages customers and suppliers and their running ledgers.
package party

import (
	"errors"
	"time"
)

// Role distinguishes the two counterparty kinds.
type Role string

const (
	// RoleCustomer buys from us (sales documents).
	RoleCustomer Role = "customer"
	// RoleSupplier sells to us (purchase documents).
	RoleSupplier Role = "supplier"
)

// SeriesPrefix returns the identifier series for the role.
func (r Role) SeriesPrefix() string {
	if r == RoleSupplier {
		return "SUP"
	}
	return "CUST"
}

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleSupplier
}

// Status flags carried over from the upstream data model.
const (
	StatusActive   = 1
	StatusInactive = 0
)

// Party is a customer or supplier with lifetime running aggregates.
// The aggregates are only ever incremented (or explicitly reversed); they
// are never recomputed from historical documents.
type Party struct {
	ID          string    `json:"party_id"`
	Role        Role      `json:"role"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	GSTIN       string    `json:"gstin,omitempty"`
	TotalAmount float64   `json:"total_amount"`
	TotalPaid   float64   `json:"total_paid"`
	TotalDue    float64   `json:"total_due"`
	Status      int       `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LedgerDelta is the financial effect of one recorded document.
type LedgerDelta struct {
	NetTotal float64
	Paid     float64
}

// Due is the outstanding portion of the delta.
func (d LedgerDelta) Due() float64 {
	return d.NetTotal - d.Paid
}

// ListFilter narrows party listings.
type ListFilter struct {
	Role    Role
	Search  string
	Page    int
	PerPage int
}

// ErrNotFound indicates a missing or inactive party.
var ErrNotFound = errors.New("party: not found")

// ErrAlreadyExists indicates a duplicate party identifier.
var ErrAlreadyExists = errors.New("party: already exists")

// ErrLedgerNotApplied indicates the running-aggregate update touched no rows.
var ErrLedgerNotApplied = errors.New("party: ledger update applied to no rows")
