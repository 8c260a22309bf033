package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/arcadia-retail/arcadia/internal/catalog"
	jobmetrics "github.com/arcadia-retail/arcadia/internal/jobs"
)

// LowStockSource lists active products below their minimum stock quantity.
type LowStockSource interface {
	BelowMinStock(ctx context.Context) ([]catalog.Product, error)
}

// LowStockJob flags products that have fallen below their reorder threshold.
type LowStockJob struct {
	Source  LowStockSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockJob initialises the low-stock scan handler.
func NewLowStockJob(source LowStockSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockJob {
	return &LowStockJob{Source: source, Logger: logger, Metrics: metrics}
}

// Handle executes the scan.
func (j *LowStockJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("low stock: handler not configured")
	}
	var payload LowStockPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	products, err := j.Source.BelowMinStock(ctx)
	if err != nil {
		resultErr = fmt.Errorf("low stock: list: %w", err)
		return resultErr
	}
	j.Metrics.SetLowStockCount(len(products))

	if j.Logger != nil {
		for _, p := range products {
			j.Logger.Warn("product below minimum stock",
				slog.String("product_id", p.ID),
				slog.String("name", p.Name),
				slog.Float64("on_hand", p.StockQty),
				slog.Float64("minimum", p.MinStockQty))
		}
		j.Logger.Info("low stock scan complete", slog.Int("flagged", len(products)))
	}
	return nil
}
