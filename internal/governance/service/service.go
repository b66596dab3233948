// Package service runs the governance commands: one-time initialization,
// authority-gated parameter updates and the god mode test controls.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"knomee/internal/audit"
	"knomee/internal/governance/models"
	"knomee/internal/storage"
	"knomee/pkg/domain"
	"knomee/pkg/platform/sentinel"
	"knomee/pkg/requestcontext"
)

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the governance record.
type Service struct {
	store          storage.Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

func New(store storage.Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize creates the governance record. The caller becomes both the
// governance authority and the god mode authority.
func (s *Service) Initialize(ctx context.Context, caller domain.Address, params models.Params) (*models.Governance, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	var gov *models.Governance
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		gov = models.New(caller, params, requestcontext.Now(ctx))
		if err := tx.Governance().Create(ctx, gov); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyExists) {
				return domain.ErrGovernanceAlreadyInitialized
			}
			return storage.Internal(err, "failed to create governance")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventGovernanceInitialized, caller, nil)
	return gov, nil
}

// Update replaces the whole parameter set. Nothing is merged from the
// previous parameters.
func (s *Service) Update(ctx context.Context, caller domain.Address, params models.Params) (*models.Governance, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	gov, err := s.mutate(ctx, func(g *models.Governance) error {
		if g.Authority != caller {
			return domain.ErrUnauthorizedGovernance
		}
		g.Params = params
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventGovernanceUpdated, caller, map[string]string{
		"version": strconv.FormatUint(gov.Version, 10),
	})
	return gov, nil
}

// TimeWarp shifts protocol time by seconds while god mode is active.
func (s *Service) TimeWarp(ctx context.Context, caller domain.Address, seconds int64) (*models.Governance, error) {
	gov, err := s.mutate(ctx, func(g *models.Governance) error {
		if g.GodModeAuthority != caller {
			return domain.ErrUnauthorizedGodMode
		}
		return g.Warp(seconds)
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventTimeWarped, caller, map[string]string{
		"seconds":           strconv.FormatInt(seconds, 10),
		"time_warp_seconds": strconv.FormatInt(gov.TimeWarpSeconds, 10),
	})
	return gov, nil
}

// RenounceGodMode permanently disables the god mode controls.
func (s *Service) RenounceGodMode(ctx context.Context, caller domain.Address) (*models.Governance, error) {
	gov, err := s.mutate(ctx, func(g *models.Governance) error {
		if g.GodModeAuthority != caller {
			return domain.ErrUnauthorizedGodMode
		}
		if !g.GodModeActive {
			return domain.ErrGodModeAlreadyRenounced
		}
		g.GodModeActive = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventGodModeRenounced, caller, nil)
	return gov, nil
}

func (s *Service) Get(ctx context.Context) (*models.Governance, error) {
	var gov *models.Governance
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		gov, err = storage.LoadGovernance(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return gov, nil
}

// mutate applies fn to the stored record and saves it with a bumped version.
func (s *Service) mutate(ctx context.Context, fn func(g *models.Governance) error) (*models.Governance, error) {
	var gov *models.Governance
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		g, err := storage.LoadGovernance(ctx, tx)
		if err != nil {
			return err
		}
		if err := fn(g); err != nil {
			return err
		}
		g.Version++
		g.UpdatedAt = requestcontext.Now(ctx)
		if err := tx.Governance().Save(ctx, g); err != nil {
			return storage.Internal(err, "failed to save governance")
		}
		gov = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return gov, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.EventType, actor domain.Address, details map[string]string) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"event", string(event),
			"log_type", "audit",
			"actor", actor.String(),
			"request_id", requestID,
		)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(event),
		Timestamp: requestcontext.Now(ctx),
		Actor:     actor.String(),
		RequestID: requestID,
		Details:   details,
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
