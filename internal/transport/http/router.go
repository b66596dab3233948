package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	claimsHandler "knomee/internal/claims/handler"
	"knomee/internal/custody"
	custodyHandler "knomee/internal/custody/handler"
	govHandler "knomee/internal/governance/handler"
	"knomee/internal/idempotency"
	identityHandler "knomee/internal/identity/handler"
	"knomee/internal/platform/metrics"
	"knomee/internal/platform/middleware"
	"knomee/internal/ratelimit"
	"knomee/pkg/platform/httputil"
)

// Check reports whether a dependency is ready to serve traffic.
type Check func(ctx context.Context) error

// Deps are the collaborators the router mounts. A nil Faucet leaves the
// /dev routes unmounted.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Callers        middleware.CallerValidator
	AdminTokenHash string

	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
	RateLimits     ratelimit.Store
	CommandLimit   ratelimit.Limit
	RequestTimeout time.Duration

	Governance govHandler.Service
	Identity   identityHandler.Service
	Claims     claimsHandler.Service
	Faucet     custody.Faucet

	ReadinessChecks map[string]Check
}

// NewRouter wires the protocol API under /v1 plus operational endpoints.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.LatencyMiddleware(d.Metrics))
	r.Use(middleware.IdempotencyKey)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", readiness(d.ReadinessChecks, d.Logger))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	authenticate := middleware.RequireCaller(d.Callers, d.Logger)
	limit := ratelimit.Middleware(d.RateLimits, d.CommandLimit, d.Logger)
	idem := idempotency.Middleware(d.Idempotency, d.IdempotencyTTL, d.Logger)
	requireCaller := func(next http.Handler) http.Handler {
		return authenticate(limit(idem(next)))
	}
	requireAdmin := middleware.RequireAdminToken(d.AdminTokenHash, d.Logger)

	r.Route("/v1", func(r chi.Router) {
		govHandler.New(d.Governance, d.Logger, requireCaller, requireAdmin).Register(r)
		identityHandler.New(d.Identity, d.Logger, requireCaller).Register(r)
		claimsHandler.New(d.Claims, d.Logger, requireCaller).Register(r)
		if d.Faucet != nil {
			custodyHandler.New(d.Faucet, d.Logger, d.Metrics, requireCaller).Register(r)
		}
	})
	return r
}

func readiness(checks map[string]Check, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		httputil.WriteJSON(w, status, results)
	}
}
