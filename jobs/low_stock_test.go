package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/arcadia-retail/arcadia/internal/catalog"
	jobmetrics "github.com/arcadia-retail/arcadia/internal/jobs"
)

type stubStockSource struct {
	products []catalog.Product
	err      error
}

func (s *stubStockSource) BelowMinStock(context.Context) ([]catalog.Product, error) {
	return s.products, s.err
}

func TestLowStockJobFlagsProducts(t *testing.T) {
	source := &stubStockSource{products: []catalog.Product{
		{ID: "PRO0003", Name: "Tea 250g", StockQty: 2, MinStockQty: 10},
	}}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewLowStockJob(source, nil, metrics)

	task, err := NewLowStockTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestLowStockJobPropagatesSourceError(t *testing.T) {
	source := &stubStockSource{err: errors.New("db down")}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewLowStockJob(source, nil, metrics)

	task, err := NewLowStockTask(time.Now())
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}
