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

// Resolve moves an Active claim to its terminal status and applies the
// effects of the outcome. Expiry is checked before votes are evaluated.
func (s *Service) Resolve(ctx context.Context, caller domain.Address, claimID uint64) (claim *models.Claim, err error) {
	ctx, finish := s.startSpan(ctx, "Resolve", attribute.Int64("claim.id", int64(claimID)))
	defer func() { finish(err) }()

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		gov, err := storage.LoadGovernance(ctx, tx)
		if err != nil {
			return err
		}
		now := gov.Now(requestcontext.Now(ctx))

		claim, err = storage.LoadClaim(ctx, tx, claimID)
		if err != nil {
			return err
		}
		if claim.Status.IsTerminal() {
			return domain.ErrClaimAlreadyResolved
		}
		subject, err := storage.LoadIdentity(ctx, tx, claim.Subject)
		if err != nil {
			return err
		}

		status, err := decide(claim, gov.Params, now)
		if err != nil {
			return err
		}
		if err := claim.Finalize(status, now); err != nil {
			return err
		}
		applyOutcome(claim, subject, now)

		changed := []*idModels.Identity{subject}
		if claim.Type == models.TypeDuplicateFlag {
			related, err := storage.LoadIdentity(ctx, tx, claim.RelatedAddress)
			if err != nil {
				return err
			}
			subject.ReleaseChallenge(claim.ID)
			related.ReleaseChallenge(claim.ID)
			changed = append(changed, related)
		}

		for _, identity := range changed {
			if err := tx.Identities().Save(ctx, identity); err != nil {
				return storage.Internal(err, "failed to save identity")
			}
		}
		if err := tx.Claims().Save(ctx, claim); err != nil {
			return storage.Internal(err, "failed to save claim")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementResolved(claim.Type.String(), claim.Status.String())
	}
	s.logAudit(ctx, audit.EventClaimResolved, caller, claim, map[string]string{
		"votes_for":     claim.TotalVotesFor.String(),
		"votes_against": claim.TotalVotesAgainst.String(),
	})
	return claim, nil
}

// decide picks the terminal status for claim at now, or reports that the vote
// is still open.
func decide(claim *models.Claim, p govModels.Params, now time.Time) (models.Status, error) {
	if claim.IsExpired(now) {
		return models.StatusExpired, nil
	}
	switch claim.Evaluate(p) {
	case models.OutcomeApproved:
		return models.StatusApproved, nil
	case models.OutcomeRejected:
		return models.StatusRejected, nil
	default:
		return models.StatusActive, domain.ErrClaimNotReadyToResolve
	}
}

// applyOutcome mutates the subject for a newly terminal claim. Approved links
// take effect through a separate link command.
func applyOutcome(claim *models.Claim, subject *idModels.Identity, now time.Time) {
	switch claim.Status {
	case models.StatusApproved:
		switch claim.Type {
		case models.TypeNewPrimary:
			subject.PromoteToPrimary(now)
		case models.TypeDuplicateFlag:
			subject.Demote()
		}
	case models.StatusRejected, models.StatusExpired:
		subject.RecordFailure(now)
	}
}
