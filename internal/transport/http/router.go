// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services, and encode; no business logic lives here.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tessera/internal/platform/metrics"
	"tessera/pkg/domain"
	adminmw "tessera/pkg/platform/middleware/admin"
	"tessera/pkg/platform/middleware/metadata"
	"tessera/pkg/platform/middleware/requestid"
	"tessera/pkg/platform/middleware/requesttime"
)

// Deps carries everything the router mounts.
type Deps struct {
	Registry    RegistryService
	Eligibility EligibilityService
	Oracle      OracleService
	Valuation   ValuationService
	Policy      PolicyAdmin

	Admin    domain.AdminCapability
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTP
	Health   func(r *http.Request) error
}

// NewRouter wires all endpoints with the standard middleware chain.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/healthz", handleHealth(deps.Health))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	registry := newRegistryHandler(deps.Registry, deps.Valuation, deps.Logger)
	registry.Register(r)

	eligibility := newEligibilityHandler(deps.Eligibility, deps.Logger)
	eligibility.Register(r)

	oracle := newOracleHandler(deps.Oracle, deps.Logger)
	oracle.Register(r)

	// Authority-only surface. The middleware rejects unauthorized callers;
	// services still run their own capability check.
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminmw.RequireToken(deps.Admin, deps.Logger))
		registry.RegisterAdmin(r, deps.Policy)
		eligibility.RegisterAdmin(r)
		oracle.RegisterAdmin(r)
		newValuationAdminHandler(deps.Valuation, deps.Logger).Register(r)
	})

	return r
}

func handleHealth(check func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
