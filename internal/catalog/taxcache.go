package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// TaxCache decorates a TaxSettingStore with a redis lookaside cache.
// Tax settings change rarely; a short TTL keeps edits visible without a
// process-wide mutable cache.
type TaxCache struct {
	next   TaxSettingStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type cachedTaxSetting struct {
	ID      int             `json:"id"`
	Payload json.RawMessage `json:"payload"`
	Active  bool            `json:"active"`
	Missing bool            `json:"missing"`
}

// NewTaxCache constructs a TaxCache in front of next.
func NewTaxCache(next TaxSettingStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *TaxCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TaxCache{next: next, client: client, ttl: ttl, logger: logger}
}

// TaxSetting returns the cached setting, falling back to the wrapped store.
// Cache failures degrade to direct lookups.
func (c *TaxCache) TaxSetting(ctx context.Context, id int) (*TaxSetting, error) {
	key := c.key(id)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached cachedTaxSetting
		if err := json.Unmarshal(raw, &cached); err == nil {
			if cached.Missing {
				return nil, nil
			}
			return &TaxSetting{ID: cached.ID, Payload: cached.Payload, Active: cached.Active}, nil
		}
	} else if !errors.Is(err, redis.Nil) && c.logger != nil {
		c.logger.Warn("tax cache read", slog.Int("tax_id", id), slog.Any("error", err))
	}

	setting, err := c.next.TaxSetting(ctx, id)
	if err != nil {
		return nil, err
	}

	cached := cachedTaxSetting{Missing: setting == nil}
	if setting != nil {
		cached.ID = setting.ID
		cached.Payload = setting.Payload
		cached.Active = setting.Active
	}
	if data, err := json.Marshal(cached); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.Warn("tax cache write", slog.Int("tax_id", id), slog.Any("error", err))
		}
	}
	return setting, nil
}

// Invalidate drops a cached entry after a tax setting changes.
func (c *TaxCache) Invalidate(ctx context.Context, id int) error {
	return c.client.Del(ctx, c.key(id)).Err()
}

func (c *TaxCache) key(id int) string {
	return fmt.Sprintf("arcadia:tax_setting:%d", id)
}
