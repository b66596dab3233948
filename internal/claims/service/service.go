// Package service is the claims engine: it creates claims, records staked
// votes, resolves consensus and settles stakes. Every command runs as one
// storage transaction that also carries its custody transfers.
package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"knomee/internal/audit"
	"knomee/internal/claims/metrics"
	"knomee/internal/claims/models"
	"knomee/internal/custody"
	"knomee/internal/storage"
	"knomee/pkg/domain"
	"knomee/pkg/requestcontext"
)

const tracerName = "knomee/internal/claims/service"

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs claims engine commands.
type Service struct {
	store          storage.Store
	custody        custody.Ledger
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

func New(store storage.Store, ledger custody.Ledger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		custody: ledger,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a claim with its live consensus figures.
func (s *Service) Get(ctx context.Context, id uint64) (*models.View, error) {
	var view *models.View
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		gov, err := storage.LoadGovernance(ctx, tx)
		if err != nil {
			return err
		}
		claim, err := storage.LoadClaim(ctx, tx, id)
		if err != nil {
			return err
		}
		view = models.NewView(claim, gov.Params)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ListVouches returns the vouches cast on a claim in casting order.
func (s *Service) ListVouches(ctx context.Context, claimID uint64) ([]*models.Vouch, error) {
	var vouches []*models.Vouch
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := storage.LoadClaim(ctx, tx, claimID); err != nil {
			return err
		}
		var err error
		vouches, err = tx.Vouches().ListByClaim(ctx, claimID)
		if err != nil {
			return storage.Internal(err, "failed to list vouches")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vouches, nil
}

// startSpan opens a span for a command and returns a finisher that records
// the outcome and duration.
func (s *Service) startSpan(ctx context.Context, command string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "claims."+command, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveCommand(command, start)
		}
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.EventType, actor domain.Address, claim *models.Claim, details map[string]string) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"event", string(event),
			"log_type", "audit",
			"actor", actor.String(),
			"claim_id", claim.ID,
			"claim_type", claim.Type.String(),
			"status", claim.Status.String(),
			"request_id", requestID,
		)
	}
	if s.auditPublisher == nil {
		return
	}
	if details == nil {
		details = make(map[string]string, 2)
	}
	details["claim_type"] = claim.Type.String()
	details["status"] = claim.Status.String()
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(event),
		Timestamp: requestcontext.Now(ctx),
		Actor:     actor.String(),
		Subject:   claim.Subject.String(),
		ClaimID:   claim.ID,
		RequestID: requestID,
		Details:   details,
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
