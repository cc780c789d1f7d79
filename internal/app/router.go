package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/sahel-erp/sahel-erp/internal/accounting"
	"github.com/sahel-erp/sahel-erp/internal/inventory"
	"github.com/sahel-erp/sahel-erp/internal/observability"
	"github.com/sahel-erp/sahel-erp/internal/reporting"
	"github.com/sahel-erp/sahel-erp/internal/stock"
	"github.com/sahel-erp/sahel-erp/internal/treasury"
	"github.com/sahel-erp/sahel-erp/internal/warehouse"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Metrics           *observability.Metrics
	WarehouseHandler  *warehouse.Handler
	StockHandler      *stock.Handler
	InventoryHandler  *inventory.Handler
	AccountingHandler *accounting.Handler
	TreasuryHandler   *treasury.Handler
	ReportingHandler  *reporting.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.Metrics.Middleware)

	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		params.WarehouseHandler.MountRoutes(r)
		params.StockHandler.MountRoutes(r)
		params.InventoryHandler.MountRoutes(r)
		params.AccountingHandler.MountRoutes(r)
		params.TreasuryHandler.MountRoutes(r)

		// Reports hit the operational tables; keep scrapers off them.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(60, time.Minute))
			params.ReportingHandler.MountRoutes(r)
		})
	})

	return r
}
