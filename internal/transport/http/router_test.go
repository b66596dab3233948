package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"knomee/internal/audit"
	claimService "knomee/internal/claims/service"
	"knomee/internal/custody"
	govModels "knomee/internal/governance/models"
	govService "knomee/internal/governance/service"
	"knomee/internal/idempotency"
	idModels "knomee/internal/identity/models"
	identityService "knomee/internal/identity/service"
	"knomee/internal/platform/metrics"
	"knomee/internal/ratelimit"
	"knomee/internal/storage"
	"knomee/pkg/testutil"
)

type RouterSuite struct {
	suite.Suite
	deps   Deps
	ledger *custody.MemoryLedger
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()
	store := storage.NewMemoryStore()
	publisher := audit.NewPublisher(audit.NewMemoryStore())
	s.ledger = custody.NewMemoryLedger()

	governance := govService.New(store, govService.WithLogger(logger), govService.WithAuditPublisher(publisher))
	_, err := governance.Initialize(context.Background(), "authority", govModels.DefaultParams())
	s.Require().NoError(err)

	s.deps = Deps{
		Logger:         logger,
		Metrics:        metrics.NewWithRegisterer(registry),
		Gatherer:       registry,
		Callers:        testutil.CallerTokens{"alice-token": "alice"},
		Idempotency:    idempotency.NewMemoryStore(),
		IdempotencyTTL: time.Hour,
		RequestTimeout: 5 * time.Second,
		Governance:     governance,
		Identity:       identityService.New(store, identityService.WithLogger(logger)),
		Claims:         claimService.New(store, s.ledger, claimService.WithLogger(logger)),
	}
}

func (s *RouterSuite) do(req *http.Request) (int, http.Header, string) {
	rr := testutil.DoRequest(NewRouter(s.deps), req)
	return rr.Code, rr.Header(), rr.Body.String()
}

func (s *RouterSuite) TestHealth() {
	code, header, body := s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/health", nil))
	s.Equal(http.StatusOK, code)
	s.JSONEq(`{"status":"ok"}`, body)
	s.NotEmpty(header.Get("X-Request-ID"))
}

func (s *RouterSuite) TestReadiness() {
	s.deps.ReadinessChecks = map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}
	code, _, body := s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/ready", nil))
	s.Equal(http.StatusServiceUnavailable, code)
	s.JSONEq(`{"postgres":"ok","redis":"unavailable"}`, body)
}

func (s *RouterSuite) TestMetricsExposeRoutePatterns() {
	s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/v1/identities/nobody", nil))

	code, _, body := s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, code)
	s.Contains(body, `route="/v1/identities/{address}"`)
}

func (s *RouterSuite) TestMutationsRequireCaller() {
	code, _, _ := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/identities", nil))
	s.Equal(http.StatusUnauthorized, code)
}

func (s *RouterSuite) TestIdempotentReplay() {
	register := func() (int, http.Header, string) {
		req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/identities", nil), "alice-token")
		req.Header.Set("Idempotency-Key", "register-once")
		return s.do(req)
	}

	code, header, first := register()
	s.Require().Equal(http.StatusCreated, code)
	s.Empty(header.Get(idempotency.HeaderReplayed))

	code, header, second := register()
	s.Equal(http.StatusCreated, code)
	s.Equal("true", header.Get(idempotency.HeaderReplayed))
	s.JSONEq(first, second)

	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/identities", nil), "alice-token")
	code, _, _ = s.do(req)
	s.Equal(http.StatusConflict, code)
}

func (s *RouterSuite) TestRegisteredIdentityIsPublic() {
	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/identities", nil), "alice-token")
	code, _, _ := s.do(req)
	s.Require().Equal(http.StatusCreated, code)

	rr := testutil.DoRequest(NewRouter(s.deps), testutil.NewJSONRequest(s.T(), http.MethodGet, "/v1/identities/alice", nil))
	s.Equal(http.StatusOK, rr.Code)
	profile := testutil.UnmarshalResponse[idModels.Profile](s.T(), rr)
	s.Equal(idModels.TierUnverified, profile.Identity.Tier)
}

func (s *RouterSuite) TestFaucetMountedOnlyWhenEnabled() {
	fund := func() int {
		req := testutil.WithBearer(
			testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/dev/faucet", map[string]uint64{"amount": 500}),
			"alice-token")
		code, _, _ := s.do(req)
		return code
	}
	s.Equal(http.StatusNotFound, fund())

	s.deps.Faucet = s.ledger
	s.Equal(http.StatusOK, fund())
	s.Equal(uint64(500), s.ledger.Balance("alice"))
}

func (s *RouterSuite) TestCommandsAreRateLimitedPerCaller() {
	s.deps.RateLimits = ratelimit.NewMemoryStore()
	s.deps.CommandLimit = ratelimit.Limit{Requests: 1, Window: time.Minute}
	router := NewRouter(s.deps)
	register := func() int {
		req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/identities", nil), "alice-token")
		return testutil.DoRequest(router, req).Code
	}

	s.Equal(http.StatusCreated, register())
	s.Equal(http.StatusTooManyRequests, register())
}
