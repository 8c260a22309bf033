// Package numbering issues human-readable sequential identifiers such as
// INV0001 or BNO0042 for document and master-data series.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxAttempts bounds candidate probing for one issuance.
const DefaultMaxAttempts = 20

// ErrSeriesExhausted signals that no free identifier was found within the
// configured attempt bound. Callers may retry the whole operation.
var ErrSeriesExhausted = errors.New("numbering: series exhausted, retry later")

// SeriesStore exposes the persistence checks the generator relies on.
// LastNumber returns the highest identifier issued for a prefix, or an
// empty string when the series has no entries yet.
type SeriesStore interface {
	LastNumber(ctx context.Context, prefix string) (string, error)
	NumberExists(ctx context.Context, number string) (bool, error)
}

// Generator mints the next identifier in a series.
//
// The pre-check against existing records is an optimisation only: two
// concurrent issuers can both pass it for the same candidate. The storage
// layer's unique index is the authoritative guard, and callers are expected
// to re-issue on a unique-violation during insert.
type Generator struct {
	store       SeriesStore
	maxAttempts int
}

// NewGenerator constructs a Generator. maxAttempts <= 0 selects the default.
func NewGenerator(store SeriesStore, maxAttempts int) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Generator{store: store, maxAttempts: maxAttempts}
}

// Next returns the next unused identifier for prefix.
func (g *Generator) Next(ctx context.Context, prefix string) (string, error) {
	last, err := g.store.LastNumber(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("numbering: last number for %s: %w", prefix, err)
	}
	if last == "" {
		last = prefix + "0000"
	}

	suffix := parseSuffix(last, prefix)
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		suffix++
		candidate := Format(prefix, suffix)
		exists, err := g.store.NumberExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("numbering: probe %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", ErrSeriesExhausted
}

// Format builds an identifier from prefix and numeric suffix, zero-padded to
// at least four digits. Wider values keep their natural width.
func Format(prefix string, suffix int) string {
	return fmt.Sprintf("%s%04d", prefix, suffix)
}

// parseSuffix extracts the numeric tail of an identifier. Malformed tails
// restart the series at zero, mirroring a fresh seed.
func parseSuffix(id, prefix string) int {
	tail := strings.TrimPrefix(id, prefix)
	n, err := strconv.Atoi(tail)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
