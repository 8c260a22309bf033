package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arcadia-retail/arcadia/internal/catalog"
	"github.com/arcadia-retail/arcadia/internal/party"
	"github.com/arcadia-retail/arcadia/internal/trading"
)

// JobsHandler mounts background-job observability routes.
type JobsHandler interface {
	MountRoutes(r chi.Router)
}

// ReportHandler mounts document PDF routes.
type ReportHandler interface {
	MountRoutes(r chi.Router)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	CatalogHandler *catalog.Handler
	PartyHandler   *party.Handler
	TradingHandler *trading.Handler
	JobsHandler    JobsHandler
	ReportHandler  ReportHandler
}

// NewRouter constructs the chi.Router with Arcadia defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			params.CatalogHandler.MountRoutes(r)
		})
		r.Route("/customers", func(r chi.Router) {
			params.PartyHandler.MountCustomerRoutes(r)
		})
		r.Route("/suppliers", func(r chi.Router) {
			params.PartyHandler.MountSupplierRoutes(r)
		})
		r.Route("/purchases", func(r chi.Router) {
			params.TradingHandler.MountPurchaseRoutes(r)
		})
		r.Route("/sales", func(r chi.Router) {
			params.TradingHandler.MountSaleRoutes(r)
		})
		if params.JobsHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				params.JobsHandler.MountRoutes(r)
			})
		}
		if params.ReportHandler != nil {
			r.Route("/reports", func(r chi.Router) {
				params.ReportHandler.MountRoutes(r)
			})
		}
	})

	return r
}
