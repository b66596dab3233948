package service

import (
	"context"
	"errors"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"knomee/internal/audit"
	"knomee/internal/claims/models"
	"knomee/internal/storage"
	"knomee/pkg/domain"
	"knomee/pkg/platform/sentinel"
	"knomee/pkg/requestcontext"
)

// VouchRequest is one staked vote on a claim.
type VouchRequest struct {
	ClaimID  uint64
	Supports bool
	Stake    uint64
}

// Vouch records a vote. The voter's weight is read once and frozen into the
// vouch; the claim totals are updated in the same transaction as the escrow
// transfer so concurrent voters never lose an update.
func (s *Service) Vouch(ctx context.Context, voter domain.Address, req VouchRequest) (vouch *models.Vouch, err error) {
	ctx, finish := s.startSpan(ctx, "Vouch",
		attribute.Int64("claim.id", int64(req.ClaimID)),
		attribute.Bool("vouch.supports", req.Supports),
	)
	defer func() { finish(err) }()

	var claim *models.Claim
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		gov, err := storage.LoadGovernance(ctx, tx)
		if err != nil {
			return err
		}
		now := gov.Now(requestcontext.Now(ctx))

		claim, err = storage.LoadClaim(ctx, tx, req.ClaimID)
		if err != nil {
			return err
		}
		if claim.Status != models.StatusActive {
			return domain.ErrClaimAlreadyResolved
		}

		voterIdentity, err := storage.LoadIdentity(ctx, tx, voter)
		if err != nil {
			return err
		}
		weight := voterIdentity.VotingWeight(gov.Params)
		if weight == 0 {
			return domain.ErrInsufficientVotingWeight
		}

		if _, err := tx.Vouches().Get(ctx, claim.ID, voter); err == nil {
			return domain.ErrAlreadyVoted
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return storage.Internal(err, "failed to load vouch")
		}

		if claim.IsExpired(now) {
			return domain.ErrClaimExpired
		}
		if req.Stake < gov.Params.MinStake {
			return domain.ErrInsufficientStake
		}

		vouch = &models.Vouch{
			ClaimID:   claim.ID,
			Voucher:   voter,
			Supports:  req.Supports,
			Weight:    weight,
			Stake:     req.Stake,
			VouchedAt: now,
		}
		if err := claim.Accumulate(req.Supports, vouch.WeightedVote(), req.Stake); err != nil {
			return err
		}
		if err := s.recordSupport(ctx, tx, claim, vouch); err != nil {
			return err
		}

		if err := s.custody.TransferIn(ctx, voter, req.Stake); err != nil {
			return err
		}
		if err := tx.Vouches().Create(ctx, vouch); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyExists) {
				return domain.ErrAlreadyVoted
			}
			return storage.Internal(err, "failed to create vouch")
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
		s.metrics.IncrementVouch(vouch.Supports, vouch.Stake)
	}
	s.logAudit(ctx, audit.EventVouchCast, voter, claim, map[string]string{
		"supports": strconv.FormatBool(vouch.Supports),
		"weight":   formatUint(vouch.Weight),
		"stake":    formatUint(vouch.Stake),
	})
	return vouch, nil
}

// recordSupport credits a supporting vouch to the subject of a claim that
// would verify or link it.
func (s *Service) recordSupport(ctx context.Context, tx storage.Tx, claim *models.Claim, vouch *models.Vouch) error {
	if !vouch.Supports || !claim.Type.ChecksSubjectStanding() {
		return nil
	}
	subject, err := storage.LoadIdentity(ctx, tx, claim.Subject)
	if err != nil {
		return err
	}
	if err := subject.ReceiveVouch(vouch.Stake); err != nil {
		return err
	}
	if err := tx.Identities().Save(ctx, subject); err != nil {
		return storage.Internal(err, "failed to save identity")
	}
	return nil
}
