package app

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/groupledger/groupledger/internal/fxrate"
	"github.com/groupledger/groupledger/internal/ledger"
	"github.com/groupledger/groupledger/internal/masterdata/codemaster"
	"github.com/groupledger/groupledger/internal/masterdata/entities"
	"github.com/groupledger/groupledger/internal/masterdata/periods"
	"github.com/groupledger/groupledger/internal/reporting"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	EntitiesHandler   *entities.Handler
	CodeMasterHandler *codemaster.Handler
	PeriodsHandler    *periods.Handler
	FxRateHandler     *fxrate.Handler
	LedgerHandler     *ledger.Handler
	ReportingHandler  *reporting.Handler
}

// NewRouter constructs the chi.Router with groupledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.EntitiesHandler != nil {
			r.Route("/entities", params.EntitiesHandler.MountRoutes)
		}
		if params.CodeMasterHandler != nil {
			r.Route("/code-master", params.CodeMasterHandler.MountRoutes)
		}
		if params.PeriodsHandler != nil {
			r.Route("/financial-years", params.PeriodsHandler.MountRoutes)
		}
		if params.FxRateHandler != nil {
			r.Route("/forex", params.FxRateHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.ReportingHandler != nil {
			r.Route("/reports", params.ReportingHandler.MountRoutes)
		}
	})

	return r
}
