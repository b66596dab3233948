package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"knomee/internal/audit"
	claimModels "knomee/internal/claims/models"
	govModels "knomee/internal/governance/models"
	"knomee/internal/identity/models"
	"knomee/internal/storage"
	"knomee/pkg/domain"
	"knomee/pkg/platform/sentinel"
	"knomee/pkg/requestcontext"
)

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages identity records and the links approved by claims.
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

// LinkRequest asks to record Secondary as Primary's account on Platform, on
// the authority of an approved LinkToPrimary claim.
type LinkRequest struct {
	Primary   domain.Address
	Secondary domain.Address
	Platform  string
	ClaimID   uint64
}

// Register creates an unverified, self-linked identity for owner.
func (s *Service) Register(ctx context.Context, owner domain.Address) (*models.Identity, error) {
	var identity *models.Identity
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		gov, err := storage.LoadGovernance(ctx, tx)
		if err != nil {
			return err
		}
		identity = models.NewIdentity(owner, gov.Now(requestcontext.Now(ctx)))
		if err := tx.Identities().Create(ctx, identity); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyExists) {
				return domain.ErrIdentityAlreadyInitialized
			}
			return storage.Internal(err, "failed to create identity")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventIdentityRegistered, owner, owner, nil)
	return identity, nil
}

// UpgradeToOracle promotes a verified primary. Only the governance authority
// may call it.
func (s *Service) UpgradeToOracle(ctx context.Context, caller, owner domain.Address) (*models.Identity, error) {
	var identity *models.Identity
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		gov, err := storage.LoadGovernance(ctx, tx)
		if err != nil {
			return err
		}
		if gov.Authority != caller {
			return domain.ErrUnauthorizedGovernance
		}
		identity, err = storage.LoadIdentity(ctx, tx, owner)
		if err != nil {
			return err
		}
		if err := identity.UpgradeToOracle(gov.Now(requestcontext.Now(ctx))); err != nil {
			return err
		}
		return save(ctx, tx, identity)
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventOracleUpgraded, caller, owner, nil)
	return identity, nil
}

// Link records an approved LinkToPrimary claim: the secondary becomes a linked
// identity of the primary and the (primary, platform) slot is taken.
func (s *Service) Link(ctx context.Context, caller domain.Address, req LinkRequest) (*models.LinkedIdentity, error) {
	if len(req.Platform) > govModels.MaxPlatformNameLen {
		return nil, domain.ErrPlatformNameTooLong
	}

	var link *models.LinkedIdentity
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		gov, err := storage.LoadGovernance(ctx, tx)
		if err != nil {
			return err
		}
		now := gov.Now(requestcontext.Now(ctx))

		claim, err := storage.LoadClaim(ctx, tx, req.ClaimID)
		if err != nil {
			return err
		}
		if err := authorizeLink(claim, req); err != nil {
			return err
		}

		primary, err := storage.LoadIdentity(ctx, tx, req.Primary)
		if err != nil {
			return err
		}
		if !primary.IsPrimary() {
			return domain.ErrNotAPrimaryID
		}
		secondary, err := storage.LoadIdentity(ctx, tx, req.Secondary)
		if err != nil {
			return err
		}
		if secondary.Tier > models.TierLinked {
			return domain.ErrCannotDowngradeTier
		}

		if err := primary.AddLink(); err != nil {
			return err
		}
		secondary.LinkTo(primary.Owner, now)

		link = &models.LinkedIdentity{
			PrimaryAddress: primary.Owner,
			LinkedAddress:  secondary.Owner,
			Platform:       req.Platform,
			ClaimID:        claim.ID,
			LinkedAt:       now,
		}
		if err := tx.Links().Create(ctx, link); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyExists) {
				return domain.ErrLinkedIdentityAlreadyExists
			}
			return storage.Internal(err, "failed to create linked identity")
		}
		if err := save(ctx, tx, primary); err != nil {
			return err
		}
		return save(ctx, tx, secondary)
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventIdentityLinked, caller, req.Secondary, map[string]string{
		"primary":  req.Primary.String(),
		"platform": req.Platform,
		"claim_id": strconv.FormatUint(req.ClaimID, 10),
	})
	return link, nil
}

// authorizeLink treats the approving claim as the authorization token for a link.
func authorizeLink(claim *claimModels.Claim, req LinkRequest) error {
	if claim.Type != claimModels.TypeLinkToPrimary {
		return domain.ErrInvalidClaimType
	}
	if claim.Status != claimModels.StatusApproved {
		return domain.ErrInvalidClaimStatus
	}
	if claim.Subject != req.Secondary || claim.RelatedAddress != req.Primary || claim.Platform != req.Platform {
		return domain.ErrSubjectAddressMismatch
	}
	return nil
}

// Get returns the identity with its tier-derived capabilities.
func (s *Service) Get(ctx context.Context, owner domain.Address) (*models.Profile, error) {
	var profile *models.Profile
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		gov, err := storage.LoadGovernance(ctx, tx)
		if err != nil {
			return err
		}
		identity, err := storage.LoadIdentity(ctx, tx, owner)
		if err != nil {
			return err
		}
		profile = models.NewProfile(identity, gov.Params)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// ListLinks returns the accounts linked to primary.
func (s *Service) ListLinks(ctx context.Context, primary domain.Address) ([]*models.LinkedIdentity, error) {
	var links []*models.LinkedIdentity
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := storage.LoadIdentity(ctx, tx, primary); err != nil {
			return err
		}
		var err error
		links, err = tx.Links().ListByPrimary(ctx, primary)
		if err != nil {
			return storage.Internal(err, "failed to list linked identities")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

func save(ctx context.Context, tx storage.Tx, identity *models.Identity) error {
	if err := tx.Identities().Save(ctx, identity); err != nil {
		return storage.Internal(err, "failed to save identity")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event audit.EventType, actor, subject domain.Address, details map[string]string) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"event", string(event),
			"log_type", "audit",
			"actor", actor.String(),
			"subject", subject.String(),
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
		Subject:   subject.String(),
		RequestID: requestID,
		Details:   details,
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
