package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"knomee/internal/audit"
	claimsMetrics "knomee/internal/claims/metrics"
	claimService "knomee/internal/claims/service"
	"knomee/internal/custody"
	govService "knomee/internal/governance/service"
	"knomee/internal/idempotency"
	identityService "knomee/internal/identity/service"
	jwttoken "knomee/internal/jwt_token"
	"knomee/internal/platform/config"
	"knomee/internal/platform/httpserver"
	"knomee/internal/platform/kafka"
	"knomee/internal/platform/logger"
	"knomee/internal/platform/metrics"
	"knomee/internal/platform/postgres"
	platformredis "knomee/internal/platform/redis"
	"knomee/internal/ratelimit"
	"knomee/internal/storage"
	pgstore "knomee/internal/storage/postgres"
	httptransport "knomee/internal/transport/http"
	"knomee/pkg/domain"
	"knomee/pkg/requestcontext"
)

const (
	shutdownTimeout = 10 * time.Second
	requestTimeout  = 30 * time.Second
	auditBuffer     = 1024
	tokenIssuer     = "knomee"
	tokenAudience   = "knomee-api"
)

// ledger is what the engine and the dev faucet need from custody.
type ledger interface {
	custody.Ledger
	custody.Faucet
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("knomee exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := make(map[string]httptransport.Check)

	var (
		store  storage.Store
		escrow ledger
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		store = pgstore.New(db, pgstore.WithTxTimeout(cfg.TxTimeout))
		escrow = custody.NewPostgresLedger(db)
		checks["postgres"] = db.PingContext
	} else {
		log.Warn("DATABASE_URL not set, protocol state is held in memory")
		store = storage.NewMemoryStore(storage.WithTxTimeout(cfg.TxTimeout))
		escrow = custody.NewMemoryLedger()
	}

	var auditStore audit.Store = audit.NewMemoryStore()
	kafkaClient, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return err
	}
	if kafkaClient != nil {
		defer kafkaClient.Close()
		if err := kafka.EnsureTopic(ctx, kafkaClient, cfg.Kafka); err != nil {
			return err
		}
		auditStore = audit.NewKafkaStore(kafkaClient, cfg.Kafka.AuditTopic)
		checks["kafka"] = kafkaClient.Ping
	}
	publisher := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(auditBuffer),
		audit.WithPublisherLogger(log),
	)

	var (
		idem   idempotency.Store = idempotency.NewMemoryStore()
		limits ratelimit.Store   = ratelimit.NewMemoryStore()
	)
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		idem = idempotency.NewRedisStore(redisClient.Client)
		limits = ratelimit.NewFailoverStore(ratelimit.NewRedisStore(redisClient.Client), log)
		checks["redis"] = redisClient.Health
	}

	governance := govService.New(store,
		govService.WithLogger(log),
		govService.WithAuditPublisher(publisher),
	)
	if err := bootstrapGovernance(ctx, governance, cfg, log); err != nil {
		return err
	}
	identities := identityService.New(store,
		identityService.WithLogger(log),
		identityService.WithAuditPublisher(publisher),
	)
	claims := claimService.New(store, escrow,
		claimService.WithLogger(log),
		claimService.WithAuditPublisher(publisher),
		claimService.WithMetrics(claimsMetrics.New()),
		claimService.WithTracerProvider(otel.GetTracerProvider()),
	)

	deps := httptransport.Deps{
		Logger:          log,
		Metrics:         metrics.New(),
		Gatherer:        prometheus.DefaultGatherer,
		Callers:         jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.Auth.CallerJWTSigningKey, tokenIssuer, tokenAudience)),
		AdminTokenHash:  cfg.Auth.AdminTokenHash,
		Idempotency:     idem,
		IdempotencyTTL:  cfg.IdempotencyTTL,
		RateLimits:      limits,
		CommandLimit:    ratelimit.Limit{Requests: cfg.RateLimit.Commands, Window: cfg.RateLimit.Window},
		RequestTimeout:  requestTimeout,
		Governance:      governance,
		Identity:        identities,
		Claims:          claims,
		ReadinessChecks: checks,
	}
	if cfg.DevFaucet {
		log.Warn("dev faucet enabled")
		deps.Faucet = escrow
	}
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// In-flight handlers still emit audit events while the server drains.
		defer publisher.Close()
		log.Info("starting knomee", "addr", cfg.Addr)
		return httpserver.Run(gctx, srv, shutdownTimeout)
	})
	return g.Wait()
}

// bootstrapGovernance initializes governance from configuration. A record
// left by a previous run is kept.
func bootstrapGovernance(ctx context.Context, svc *govService.Service, cfg config.Server, log *slog.Logger) error {
	if cfg.GovernanceAuthority == "" {
		return nil
	}
	authority, err := domain.ParseAddress(cfg.GovernanceAuthority)
	if err != nil {
		return fmt.Errorf("GOVERNANCE_AUTHORITY: %w", err)
	}
	params, err := config.LoadGovernanceParams(cfg.GovernanceFile)
	if err != nil {
		return err
	}
	_, err = svc.Initialize(requestcontext.WithTime(ctx, time.Now()), authority, params)
	if errors.Is(err, domain.ErrGovernanceAlreadyInitialized) {
		log.Info("governance already initialized")
		return nil
	}
	if err != nil {
		return fmt.Errorf("initialize governance: %w", err)
	}
	log.Info("governance initialized", "authority", authority.String())
	return nil
}
