package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridianhq/meridian/internal/contracts"
	"github.com/meridianhq/meridian/internal/observability"
	"github.com/meridianhq/meridian/internal/quotes"
	"github.com/meridianhq/meridian/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Authenticator    *shared.Authenticator
	QuotesHandler    *quotes.Handler
	ContractsHandler *contracts.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router. The public token surface and the
// authenticated staff surface are mounted as separate groups so the rate
// limiter and the session check never apply to the wrong side.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Customer-facing token routes.
	r.Group(func(r chi.Router) {
		r.Use(PublicRateLimiter(params.Config.PublicRateLimit))
		params.QuotesHandler.MountPublicRoutes(r)
		params.ContractsHandler.MountPublicRoutes(r)
	})

	// Staff routes behind the session layer.
	r.Route("/api", func(r chi.Router) {
		r.Use(params.Authenticator.Middleware)
		params.QuotesHandler.MountStaffRoutes(r)
		params.ContractsHandler.MountStaffRoutes(r)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
