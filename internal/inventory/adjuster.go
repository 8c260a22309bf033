// Package inventory mutates on-hand product quantities for recorded
// documents.
package inventory

import (
	"context"
	"fmt"
	"math"
)

// StockStore reads and writes a product's on-hand quantity.
type StockStore interface {
	StockQty(ctx context.Context, productID string) (float64, error)
	SetStockQty(ctx context.Context, productID string, qty float64) error
}

// Delta is one signed stock movement: positive for purchases (stock in),
// negative for sales (stock out).
type Delta struct {
	ProductID string
	Qty       float64
}

// Adjuster applies stock deltas. The read and write are separate
// statements with no locking; concurrent adjustments of the same product
// can lose updates. Quantities may go negative on over-selling.
type Adjuster struct {
	store StockStore
}

// NewAdjuster constructs an Adjuster.
func NewAdjuster(store StockStore) *Adjuster {
	return &Adjuster{store: store}
}

// Adjust applies a single delta, rounding the result to two decimals.
func (a *Adjuster) Adjust(ctx context.Context, productID string, delta float64) error {
	current, err := a.store.StockQty(ctx, productID)
	if err != nil {
		return fmt.Errorf("inventory: read stock %s: %w", productID, err)
	}
	next := round2(current + delta)
	if err := a.store.SetStockQty(ctx, productID, next); err != nil {
		return fmt.Errorf("inventory: write stock %s: %w", productID, err)
	}
	return nil
}

// Apply adjusts every delta in order and returns the ones that took effect.
// On failure the returned slice lets the caller reverse the partial work.
func (a *Adjuster) Apply(ctx context.Context, deltas []Delta) ([]Delta, error) {
	applied := make([]Delta, 0, len(deltas))
	for _, d := range deltas {
		if err := a.Adjust(ctx, d.ProductID, d.Qty); err != nil {
			return applied, err
		}
		applied = append(applied, d)
	}
	return applied, nil
}

// Reverse applies the opposite of each delta, best effort: it keeps going
// past individual failures and reports the first one.
func (a *Adjuster) Reverse(ctx context.Context, deltas []Delta) error {
	var firstErr error
	for _, d := range deltas {
		if err := a.Adjust(ctx, d.ProductID, -d.Qty); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
