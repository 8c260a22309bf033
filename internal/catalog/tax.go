package catalog

import (
	"context"
	"encoding/json"
	"fmt"
)

// TaxSettingStore looks up a tax setting by id. Implementations return
// (nil, nil) when the setting does not exist or is inactive.
type TaxSettingStore interface {
	TaxSetting(ctx context.Context, id int) (*TaxSetting, error)
}

// TaxResolver resolves the applicable rate for a product's tax reference.
type TaxResolver struct {
	settings TaxSettingStore
}

// NewTaxResolver constructs a TaxResolver.
func NewTaxResolver(settings TaxSettingStore) *TaxResolver {
	return &TaxResolver{settings: settings}
}

// RateFor returns the rate configured for taxID. Missing, inactive or
// shapeless settings resolve to a zero rate rather than an error.
func (r *TaxResolver) RateFor(ctx context.Context, taxID int) (TaxRate, error) {
	setting, err := r.settings.TaxSetting(ctx, taxID)
	if err != nil {
		return TaxRate{}, fmt.Errorf("catalog: tax setting %d: %w", taxID, err)
	}
	if setting == nil || !setting.Active {
		return TaxRate{}, nil
	}
	return TaxRate{Percentage: gstPercent(setting.Payload)}, nil
}

// LineTax computes the tax amount for a line at the given unit price.
func (t TaxRate) LineTax(unitPrice, quantity float64) float64 {
	return unitPrice * quantity * t.Percentage / 100
}

// gstPercent extracts the gst field from a tax payload. The payload is either
// a single rate object or an array of rate variants; the first entry wins.
func gstPercent(payload json.RawMessage) float64 {
	if len(payload) == 0 {
		return 0
	}

	var entries []map[string]any
	if err := json.Unmarshal(payload, &entries); err == nil {
		if len(entries) == 0 {
			return 0
		}
		return numberField(entries[0], "gst")
	}

	var entry map[string]any
	if err := json.Unmarshal(payload, &entry); err == nil {
		return numberField(entry, "gst")
	}
	return 0
}

func numberField(entry map[string]any, key string) float64 {
	v, ok := entry[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
