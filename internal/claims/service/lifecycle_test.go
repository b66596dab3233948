package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/mock/gomock"

	"knomee/internal/claims/models"
	"knomee/internal/custody/mocks"
	idModels "knomee/internal/identity/models"
	"knomee/internal/storage"
	"knomee/pkg/domain"
)

func (s *ClaimsServiceSuite) TestResolveExpiryTakesPriority() {
	claim := s.proposePrimary()
	s.vouch(oracleA, claim.ID, true, 1)

	expiry := s.params.ClaimExpiry()
	resolved, err := s.svc.Resolve(s.at(expiry), nobody, claim.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, resolved.Status)
	s.Equal(t0.Add(expiry), resolved.ResolvedAt)

	got := s.identity(subject)
	s.Equal(idModels.TierUnverified, got.Tier)
	s.Equal(t0.Add(expiry), got.LastFailedClaimAt)
}

func (s *ClaimsServiceSuite) TestResolveUndecidedLeavesClaimUntouched() {
	claim := s.proposePrimary()
	s.vouch(verified, claim.ID, true, 1)
	s.vouch(primaryA, claim.ID, false, 1)
	before := s.claim(claim.ID)
	s.Equal(uint16(5000), before.ConsensusBps())

	_, err := s.svc.Resolve(s.ctx, nobody, claim.ID)
	s.ErrorIs(err, domain.ErrClaimNotReadyToResolve)
	s.Equal(before, s.claim(claim.ID))
	s.True(s.identity(subject).LastFailedClaimAt.IsZero())
}

func (s *ClaimsServiceSuite) TestResolveThresholdBoundary() {
	// 67 for / 33 against is exactly 6700 bps.
	claim := s.proposePrimary()
	s.vouch(verified, claim.ID, true, 67)
	s.vouch(primaryA, claim.ID, false, 33)

	resolved, err := s.svc.Resolve(s.ctx, nobody, claim.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, resolved.Status)
}

func (s *ClaimsServiceSuite) TestResolveInverseThresholdRejectsEarly() {
	// 33 for / 67 against is exactly 3300 bps.
	claim := s.proposePrimary()
	s.vouch(verified, claim.ID, true, 33)
	s.vouch(primaryA, claim.ID, false, 67)

	resolved, err := s.svc.Resolve(s.ctx, nobody, claim.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, resolved.Status)
	s.Equal(t0, s.identity(subject).LastFailedClaimAt)
}

func (s *ClaimsServiceSuite) TestResolveWithoutVotesRejects() {
	claim := s.proposePrimary()
	resolved, err := s.svc.Resolve(s.ctx, nobody, claim.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, resolved.Status)
}

func (s *ClaimsServiceSuite) TestTerminalStatusIsAbsorbing() {
	claim := s.proposePrimary()
	s.vouch(oracleA, claim.ID, true, 1)
	_, err := s.svc.Resolve(s.ctx, nobody, claim.ID)
	s.Require().NoError(err)

	for _, ctx := range []context.Context{s.ctx, s.at(365 * 24 * time.Hour)} {
		_, err := s.svc.Resolve(ctx, nobody, claim.ID)
		s.ErrorIs(err, domain.ErrClaimAlreadyResolved)
	}
	s.Equal(models.StatusApproved, s.claim(claim.ID).Status)
}

func (s *ClaimsServiceSuite) TestApprovedDuplicateFlagDemotesSubject() {
	claim, err := s.svc.Propose(s.ctx, primaryC, ProposeRequest{
		Type: models.TypeDuplicateFlag, Subject: primaryA, Related: primaryB, Stake: 10,
	})
	s.Require().NoError(err)
	s.vouch(oracleA, claim.ID, true, 1)

	view, err := s.svc.Get(s.ctx, claim.ID)
	s.Require().NoError(err)
	s.Equal(s.params.DuplicateSlashBps, view.SlashRateBps)

	resolved, err := s.svc.Resolve(s.ctx, nobody, claim.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, resolved.Status)

	a, b := s.identity(primaryA), s.identity(primaryB)
	s.Equal(idModels.TierUnverified, a.Tier)
	s.True(a.VerifiedAt.IsZero())
	s.False(a.UnderChallenge)
	s.Equal(idModels.TierVerified, b.Tier)
	s.False(b.UnderChallenge)

	view, err = s.svc.Get(s.ctx, claim.ID)
	s.Require().NoError(err)
	s.Equal(s.params.SybilSlashBps, view.SlashRateBps)
}

func (s *ClaimsServiceSuite) TestSettlement() {
	claim := s.proposePrimary()
	s.vouch(oracleA, claim.ID, true, 10)
	s.vouch(verified, claim.ID, false, 7)

	s.Run("not before resolution", func() {
		_, err := s.svc.SettleRewards(s.ctx, oracleA, claim.ID)
		s.ErrorIs(err, domain.ErrClaimNotReadyToResolve)
	})

	_, err := s.svc.Resolve(s.ctx, nobody, claim.ID)
	s.Require().NoError(err)

	s.Run("winner gets stake back", func() {
		vouch, err := s.svc.SettleRewards(s.ctx, oracleA, claim.ID)
		s.Require().NoError(err)
		s.True(vouch.RewardsClaimed)
		s.Equal(uint64(10), vouch.RewardAmount)
		s.Equal(uint64(startingBalance), s.ledger.Balance(oracleA))
	})

	s.Run("settlement is idempotent", func() {
		escrow := s.ledger.Escrow()
		_, err := s.svc.SettleRewards(s.ctx, oracleA, claim.ID)
		s.ErrorIs(err, domain.ErrRewardsAlreadyClaimed)
		s.Equal(escrow, s.ledger.Escrow())
		s.Equal(uint64(startingBalance), s.ledger.Balance(oracleA))
	})

	s.Run("non voter", func() {
		_, err := s.svc.SettleRewards(s.ctx, oracleB, claim.ID)
		s.ErrorIs(err, domain.ErrNotAVoter)
	})

	s.Run("loser is slashed", func() {
		vouch, err := s.svc.SettleRewards(s.ctx, verified, claim.ID)
		s.Require().NoError(err)
		s.Zero(vouch.RewardAmount)
		s.Equal(uint64(startingBalance-7), s.ledger.Balance(verified))

		got := s.claim(claim.ID)
		s.Equal(uint64(7), got.TotalSlashed)
		s.Equal(uint32(2), got.SettledCount)
		s.True(got.RewardsDistributed)
	})

	// Proposer stake 3 and the slashed 7 stay in escrow.
	s.Equal(uint64(10), s.ledger.Escrow())
}

func (s *ClaimsServiceSuite) TestExpiredClaimHasNoWinners() {
	claim := s.proposePrimary()
	s.vouch(oracleA, claim.ID, true, 5)
	_, err := s.svc.Resolve(s.at(s.params.ClaimExpiry()), nobody, claim.ID)
	s.Require().NoError(err)

	vouch, err := s.svc.SettleRewards(s.ctx, oracleA, claim.ID)
	s.Require().NoError(err)
	s.Zero(vouch.RewardAmount)
	s.Equal(uint64(startingBalance-5), s.ledger.Balance(oracleA))
	s.Equal(uint64(5), s.claim(claim.ID).TotalSlashed)
}

func (s *ClaimsServiceSuite) TestCustodyFailureCreatesNothing() {
	ctrl := gomock.NewController(s.T())
	ledger := mocks.NewMockLedger(ctrl)
	svc := s.newService(ledger)

	ledger.EXPECT().
		TransferIn(gomock.Any(), subject, uint64(3)).
		Return(domain.ErrInsufficientCustody)

	_, err := svc.Propose(s.ctx, subject, ProposeRequest{Type: models.TypeNewPrimary, Subject: subject, Stake: 3})
	s.ErrorIs(err, domain.ErrInsufficientCustody)

	_, err = svc.Get(s.ctx, 1)
	s.ErrorIs(err, domain.ErrClaimNotFound)

	// The failed proposal must not consume a claim id.
	ledger.EXPECT().TransferIn(gomock.Any(), subject, uint64(3)).Return(nil)
	claim, err := svc.Propose(s.ctx, subject, ProposeRequest{Type: models.TypeNewPrimary, Subject: subject, Stake: 3})
	s.Require().NoError(err)
	s.Equal(uint64(1), claim.ID)
}

func (s *ClaimsServiceSuite) TestCustodyFailureLeavesVoteUncounted() {
	claim := s.proposePrimary()
	before := s.claim(claim.ID)

	ctrl := gomock.NewController(s.T())
	ledger := mocks.NewMockLedger(ctrl)
	ledger.EXPECT().
		TransferIn(gomock.Any(), oracleA, uint64(1)).
		Return(domain.ErrInsufficientCustody)

	_, err := s.newService(ledger).Vouch(s.ctx, oracleA, VouchRequest{ClaimID: claim.ID, Supports: true, Stake: 1})
	s.ErrorIs(err, domain.ErrInsufficientCustody)
	s.Equal(before, s.claim(claim.ID))
	s.Zero(s.identity(subject).TotalVouchesReceived)

	vouches, err := s.svc.ListVouches(s.ctx, claim.ID)
	s.Require().NoError(err)
	s.Empty(vouches)
}

func (s *ClaimsServiceSuite) TestSettlementTransferFailureKeepsVouchOpen() {
	claim := s.proposePrimary()
	s.vouch(oracleA, claim.ID, true, 2)
	_, err := s.svc.Resolve(s.ctx, nobody, claim.ID)
	s.Require().NoError(err)

	ctrl := gomock.NewController(s.T())
	ledger := mocks.NewMockLedger(ctrl)
	ledger.EXPECT().
		TransferOut(gomock.Any(), oracleA, uint64(2)).
		Return(domain.ErrInsufficientCustody)

	_, err = s.newService(ledger).SettleRewards(s.ctx, oracleA, claim.ID)
	s.ErrorIs(err, domain.ErrInsufficientCustody)

	vouch, err := s.svc.SettleRewards(s.ctx, oracleA, claim.ID)
	s.Require().NoError(err)
	s.Equal(uint64(2), vouch.RewardAmount)
}

func (s *ClaimsServiceSuite) TestConcurrentVotersNeverLoseUpdates() {
	claim := s.proposePrimary()

	const voters = 40
	for i := range voters {
		s.seed(domain.Address(fmt.Sprintf("oracle-%02d", i)), idModels.TierOracle)
	}

	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := range voters {
		wg.Add(1)
		go func(voter domain.Address) {
			defer wg.Done()
			_, err := s.svc.Vouch(s.ctx, voter, VouchRequest{ClaimID: claim.ID, Supports: i%4 != 0, Stake: 2})
			errs <- err
		}(domain.Address(fmt.Sprintf("oracle-%02d", i)))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	got := s.claim(claim.ID)
	s.Equal(uint32(voters), got.VouchCount)
	s.Equal(uint64(voters*2), got.TotalStake)
	s.Equal("6000", got.TotalVotesFor.String())
	s.Equal("2000", got.TotalVotesAgainst.String())
	s.Equal(uint64(3+voters*2), s.ledger.Escrow())
}

func (s *ClaimsServiceSuite) TestVoteOverflowFailsClosed() {
	claim := s.proposePrimary()
	nearMax, err := domain.ParseUint128("340282366920938463463374607431768211454")
	s.Require().NoError(err)

	s.Require().NoError(s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		c, err := tx.Claims().Get(ctx, claim.ID)
		if err != nil {
			return err
		}
		c.TotalVotesFor = nearMax
		return tx.Claims().Save(ctx, c)
	}))

	_, err = s.svc.Vouch(s.ctx, verified, VouchRequest{ClaimID: claim.ID, Supports: true, Stake: 1})
	s.Require().NoError(err, "reaching the maximum exactly is allowed")

	_, err = s.svc.Vouch(s.ctx, primaryA, VouchRequest{ClaimID: claim.ID, Supports: true, Stake: 1})
	s.ErrorIs(err, domain.ErrArithmeticOverflow)
	s.Equal(domain.MaxUint128().String(), s.claim(claim.ID).TotalVotesFor.String())
	s.Equal(uint64(startingBalance), s.ledger.Balance(primaryA))
}
