package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"knomee/internal/audit"
	"knomee/internal/claims/models"
	"knomee/internal/storage"
	"knomee/pkg/domain"
	"knomee/pkg/platform/sentinel"
	"knomee/pkg/requestcontext"
)

// SettleRewards settles the caller's vouch on a terminal claim. Winners get
// their stake back from custody; everyone else forfeits it. Each vouch
// settles exactly once.
func (s *Service) SettleRewards(ctx context.Context, voter domain.Address, claimID uint64) (vouch *models.Vouch, err error) {
	ctx, finish := s.startSpan(ctx, "SettleRewards", attribute.Int64("claim.id", int64(claimID)))
	defer func() { finish(err) }()

	var claim *models.Claim
	var slashed uint64
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
		if !claim.Status.IsTerminal() {
			return domain.ErrClaimNotReadyToResolve
		}

		vouch, err = tx.Vouches().Get(ctx, claimID, voter)
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.ErrNotAVoter
		}
		if err != nil {
			return storage.Internal(err, "failed to load vouch")
		}
		if vouch.RewardsClaimed {
			return domain.ErrRewardsAlreadyClaimed
		}

		if vouch.IsWinner(claim.Status) {
			vouch.RewardAmount = vouch.Stake
		} else {
			slashed = vouch.Stake
		}
		if err := claim.RecordSettlement(slashed); err != nil {
			return err
		}
		if vouch.RewardAmount > 0 {
			if err := s.custody.TransferOut(ctx, voter, vouch.RewardAmount); err != nil {
				return err
			}
		}

		vouch.RewardsClaimed = true
		vouch.SettledAt = now
		if err := tx.Vouches().Save(ctx, vouch); err != nil {
			return storage.Internal(err, "failed to save vouch")
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
		s.metrics.ObserveSettlement(vouch.RewardAmount, slashed)
	}
	s.logAudit(ctx, audit.EventStakeSettled, voter, claim, map[string]string{
		"reward":  formatUint(vouch.RewardAmount),
		"slashed": formatUint(slashed),
	})
	return vouch, nil
}
