package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/contalibre/contalibre/internal/balances"
	"github.com/contalibre/contalibre/internal/ledger"
	"github.com/contalibre/contalibre/internal/observability"
	"github.com/contalibre/contalibre/internal/terceros"
	"github.com/contalibre/contalibre/internal/transactions"
)

// RouteMounter is implemented by handlers that attach themselves to a chi
// sub-router.
type RouteMounter interface {
	MountRoutes(r chi.Router)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	Metrics             *observability.Metrics
	LedgerHandler       *ledger.Handler
	BalancesHandler     *balances.Handler
	TercerosHandler     *terceros.Handler
	TransactionsHandler *transactions.Handler
	JobsHandler         RouteMounter
}

// NewRouter assembles the chi router with the shared middleware stack and
// every module's routes mounted under /api.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: p.Logger, Config: p.Config, Metrics: p.Metrics}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		if p.LedgerHandler != nil {
			api.Route("/cuentas", p.LedgerHandler.MountRoutes)
		}
		if p.BalancesHandler != nil {
			api.Route("/saldos", p.BalancesHandler.MountRoutes)
		}
		if p.TercerosHandler != nil {
			api.Route("/terceros", p.TercerosHandler.MountRoutes)
		}
		if p.TransactionsHandler != nil {
			api.Route("/transacciones", p.TransactionsHandler.MountRoutes)
		}
		if p.JobsHandler != nil {
			api.Route("/jobs", p.JobsHandler.MountRoutes)
		}
	})

	return r
}
