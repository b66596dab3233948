package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"knomee/internal/audit"
	"knomee/internal/claims/models"
	govModels "knomee/internal/governance/models"
	idModels "knomee/internal/identity/models"
	"knomee/internal/storage"
	"knomee/pkg/domain"
	"knomee/pkg/requestcontext"
)

// ProposeRequest describes a new claim. Text is the justification, or the
// evidence for a duplicate flag. Related is the primary to link to, or the
// second address of a duplicate flag; NewPrimary ignores it.
type ProposeRequest struct {
	Type     models.Type
	Subject  domain.Address
	Related  domain.Address
	Platform string
	Text     string
	Stake    uint64
}

// Propose creates an Active claim, escrowing the proposer's stake in the same
// transaction.
func (s *Service) Propose(ctx context.Context, proposer domain.Address, req ProposeRequest) (claim *models.Claim, err error) {
	ctx, finish := s.startSpan(ctx, "Propose",
		attribute.String("claim.type", req.Type.String()),
		attribute.String("claim.subject", req.Subject.String()),
	)
	defer func() { finish(err) }()

	if err := validateProposal(proposer, &req); err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		gov, err := storage.LoadGovernance(ctx, tx)
		if err != nil {
			return err
		}
		now := gov.Now(requestcontext.Now(ctx))

		required, err := req.Type.RequiredStake(gov.Params)
		if err != nil {
			return err
		}
		if req.Stake < required {
			return domain.ErrInsufficientStake
		}

		touched, err := checkStanding(ctx, tx, gov.Params, req, now)
		if err != nil {
			return err
		}

		id, err := gov.NextClaimID()
		if err != nil {
			return err
		}
		if err := tx.Governance().Save(ctx, gov); err != nil {
			return storage.Internal(err, "failed to allocate claim id")
		}

		if err := s.custody.TransferIn(ctx, proposer, req.Stake); err != nil {
			return err
		}

		claim = &models.Claim{
			ID:             id,
			Type:           req.Type,
			Status:         models.StatusActive,
			Proposer:       proposer,
			Subject:        req.Subject,
			RelatedAddress: req.Related,
			Platform:       req.Platform,
			Justification:  req.Text,
			CreatedAt:      now,
			ExpiresAt:      now.Add(gov.Params.ClaimExpiry()),
			ProposerStake:  req.Stake,
		}
		if err := tx.Claims().Create(ctx, claim); err != nil {
			return storage.Internal(err, "failed to create claim")
		}

		// A duplicate flag holds both addresses from the moment it exists.
		if req.Type == models.TypeDuplicateFlag {
			for _, identity := range touched {
				identity.Challenge(id)
				if err := tx.Identities().Save(ctx, identity); err != nil {
					return storage.Internal(err, "failed to save identity")
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementProposed(claim.Type.String(), claim.ProposerStake)
	}
	s.logAudit(ctx, audit.EventClaimProposed, proposer, claim, map[string]string{
		"stake":   formatUint(claim.ProposerStake),
		"related": claim.RelatedAddress.String(),
	})
	return claim, nil
}

// validateProposal applies the checks that need no stored state.
func validateProposal(proposer domain.Address, req *ProposeRequest) error {
	if !req.Type.Valid() {
		return domain.ErrInvalidClaimType
	}
	if len(req.Platform) > govModels.MaxPlatformNameLen {
		return domain.ErrPlatformNameTooLong
	}
	if len(req.Text) > req.Type.MaxTextLen() {
		if req.Type == models.TypeDuplicateFlag {
			return domain.ErrEvidenceTooLong
		}
		return domain.ErrJustificationTooLong
	}

	switch req.Type {
	case models.TypeNewPrimary:
		req.Related = ""
		if proposer != req.Subject {
			return domain.ErrSubjectAddressMismatch
		}
	case models.TypeLinkToPrimary:
		if req.Related.IsZero() {
			return domain.ErrMissingRelatedAddress
		}
		if proposer != req.Subject || req.Related == req.Subject {
			return domain.ErrSubjectAddressMismatch
		}
	case models.TypeDuplicateFlag:
		if req.Related.IsZero() {
			return domain.ErrMissingRelatedAddress
		}
		if req.Related == req.Subject {
			return domain.ErrCannotChallengeSameAddress
		}
	}
	return nil
}

// checkStanding enforces the per-type preconditions on the addresses a claim
// names and returns the identities a duplicate flag will hold.
func checkStanding(ctx context.Context, tx storage.Tx, p govModels.Params, req ProposeRequest, now time.Time) ([]*idModels.Identity, error) {
	subject, err := storage.LoadIdentity(ctx, tx, req.Subject)
	if err != nil {
		return nil, err
	}

	if req.Type.ChecksSubjectStanding() {
		if !subject.CooldownElapsed(req.Type.CooldownPeriod(p), now) {
			return nil, domain.ErrCooldownNotElapsed
		}
		if subject.UnderChallenge {
			return nil, domain.ErrAddressUnderChallenge
		}
	}

	switch req.Type {
	case models.TypeLinkToPrimary:
		primary, err := storage.LoadIdentity(ctx, tx, req.Related)
		if err != nil {
			return nil, err
		}
		if !primary.IsPrimary() {
			return nil, domain.ErrNotAPrimaryID
		}
	case models.TypeDuplicateFlag:
		related, err := storage.LoadIdentity(ctx, tx, req.Related)
		if err != nil {
			return nil, err
		}
		if !subject.IsPrimary() || !related.IsPrimary() {
			return nil, domain.ErrNotAPrimaryID
		}
		return []*idModels.Identity{subject, related}, nil
	}
	return nil, nil
}
