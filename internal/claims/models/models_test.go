package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	govModels "knomee/internal/governance/models"
	"knomee/pkg/domain"
)

type ClaimModelSuite struct {
	suite.Suite
	params govModels.Params
	now    time.Time
}

func TestClaimModelSuite(t *testing.T) {
	suite.Run(t, new(ClaimModelSuite))
}

func (s *ClaimModelSuite) SetupTest() {
	s.params = govModels.DefaultParams()
	s.now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
}

func (s *ClaimModelSuite) newClaim(t Type) *Claim {
	return &Claim{
		ID:        1,
		Type:      t,
		Status:    StatusActive,
		Subject:   "subject",
		CreatedAt: s.now,
		ExpiresAt: s.now.Add(s.params.ClaimExpiry()),
	}
}

// ===== Policies =====

func (s *ClaimModelSuite) TestPolicies() {
	s.Run("thresholds follow claim type", func() {
		s.Equal(uint16(5100), TypeLinkToPrimary.RequiredThreshold(s.params))
		s.Equal(uint16(6700), TypeNewPrimary.RequiredThreshold(s.params))
		s.Equal(uint16(8000), TypeDuplicateFlag.RequiredThreshold(s.params))
	})

	s.Run("stake multipliers", func() {
		s.Equal(uint64(1), TypeLinkToPrimary.StakeMultiplier(s.params))
		s.Equal(uint64(3), TypeNewPrimary.StakeMultiplier(s.params))
		s.Equal(uint64(10), TypeDuplicateFlag.StakeMultiplier(s.params))
	})

	s.Run("sybil rate only applies to duplicate flags", func() {
		s.Equal(uint16(10_000), TypeDuplicateFlag.SlashRate(s.params, true))
		s.Equal(uint16(5000), TypeDuplicateFlag.SlashRate(s.params, false))
		s.Equal(uint16(3000), TypeNewPrimary.SlashRate(s.params, true))
		s.Equal(uint16(1000), TypeLinkToPrimary.SlashRate(s.params, true))
	})

	s.Run("cooldowns", func() {
		s.Equal(7*24*time.Hour, TypeNewPrimary.CooldownPeriod(s.params))
		s.Equal(7*24*time.Hour, TypeLinkToPrimary.CooldownPeriod(s.params))
		s.Equal(30*24*time.Hour, TypeDuplicateFlag.CooldownPeriod(s.params))
	})

	s.Run("only link and primary check subject standing", func() {
		s.True(TypeNewPrimary.ChecksSubjectStanding())
		s.True(TypeLinkToPrimary.ChecksSubjectStanding())
		s.False(TypeDuplicateFlag.ChecksSubjectStanding())
	})

	s.Run("required stake overflow fails closed", func() {
		p := s.params
		p.MinStake = math.MaxUint64 / 2
		_, err := TypeNewPrimary.RequiredStake(p)
		s.ErrorIs(err, domain.ErrArithmeticOverflow)

		stake, err := TypeNewPrimary.RequiredStake(s.params)
		s.Require().NoError(err)
		s.Equal(uint64(30_000_000), stake)
	})
}

// ===== Evaluation =====

func (s *ClaimModelSuite) TestEvaluate() {
	s.Run("no votes is rejected by the inverse threshold", func() {
		c := s.newClaim(TypeNewPrimary)
		s.Equal(OutcomeRejected, c.Evaluate(s.params))
	})

	s.Run("exact threshold approves", func() {
		c := s.newClaim(TypeNewPrimary)
		c.TotalVotesFor = domain.NewUint128(67)
		c.TotalVotesAgainst = domain.NewUint128(33)
		s.Equal(uint16(6700), c.ConsensusBps())
		s.Equal(OutcomeApproved, c.Evaluate(s.params))
	})

	s.Run("just below threshold is undecided", func() {
		c := s.newClaim(TypeNewPrimary)
		c.TotalVotesFor = domain.NewUint128(6699)
		c.TotalVotesAgainst = domain.NewUint128(3301)
		s.Equal(OutcomeUndecided, c.Evaluate(s.params))
	})

	s.Run("inverse threshold is inclusive", func() {
		c := s.newClaim(TypeNewPrimary)
		c.TotalVotesFor = domain.NewUint128(33)
		c.TotalVotesAgainst = domain.NewUint128(67)
		s.Equal(uint16(3300), c.ConsensusBps())
		s.Equal(OutcomeRejected, c.Evaluate(s.params))

		c.TotalVotesFor = domain.NewUint128(3301)
		c.TotalVotesAgainst = domain.NewUint128(6699)
		s.Equal(OutcomeUndecided, c.Evaluate(s.params))
	})

	s.Run("oracle scenario", func() {
		c := s.newClaim(TypeNewPrimary)
		v1 := &Vouch{Supports: true, Weight: 100, Stake: 1}
		v2 := &Vouch{Supports: true, Weight: 100, Stake: 1}
		v3 := &Vouch{Supports: false, Weight: 1, Stake: 1}
		for _, v := range []*Vouch{v1, v2, v3} {
			s.Require().NoError(c.Accumulate(v.Supports, v.WeightedVote(), v.Stake))
		}
		s.Equal("200", c.TotalVotesFor.String())
		s.Equal("1", c.TotalVotesAgainst.String())
		s.Equal(uint16(9950), c.ConsensusBps())
		s.Equal(OutcomeApproved, c.Evaluate(s.params))
		s.Equal(uint64(3), c.TotalStake)
		s.Equal(uint32(3), c.VouchCount)
	})
}

// ===== Lifecycle =====

func (s *ClaimModelSuite) TestExpiryIsInclusive() {
	c := s.newClaim(TypeLinkToPrimary)
	s.False(c.IsExpired(c.ExpiresAt.Add(-time.Second)))
	s.True(c.IsExpired(c.ExpiresAt))
	s.Equal(s.now.Add(30*24*time.Hour), c.ExpiresAt)
}

func (s *ClaimModelSuite) TestTerminalStatusesAbsorb() {
	for _, terminal := range []Status{StatusApproved, StatusRejected, StatusExpired} {
		s.Run(terminal.String(), func() {
			c := s.newClaim(TypeNewPrimary)
			s.Require().NoError(c.Finalize(terminal, s.now))
			for _, next := range []Status{StatusActive, StatusApproved, StatusRejected, StatusExpired} {
				s.ErrorIs(c.Finalize(next, s.now.Add(time.Hour)), domain.ErrClaimAlreadyResolved)
			}
			s.Equal(terminal, c.Status)
			s.Equal(s.now, c.ResolvedAt)
		})
	}

	s.Run("active is not a terminal target", func() {
		c := s.newClaim(TypeNewPrimary)
		s.ErrorIs(c.Finalize(StatusActive, s.now), domain.ErrInvalidClaimStatus)
	})
}

func (s *ClaimModelSuite) TestAccumulateFailsClosed() {
	c := s.newClaim(TypeNewPrimary)
	nearMax, err := domain.ParseUint128("340282366920938463463374607431768211454")
	s.Require().NoError(err)
	c.TotalVotesFor = nearMax

	err = c.Accumulate(true, domain.NewUint128(2), 1)
	s.ErrorIs(err, domain.ErrArithmeticOverflow)
	s.Equal(0, c.TotalVotesFor.Cmp(nearMax))
	s.Zero(c.TotalStake)
	s.Zero(c.VouchCount)

	s.Run("stake overflow leaves votes untouched", func() {
		c := s.newClaim(TypeNewPrimary)
		c.TotalStake = math.MaxUint64
		s.ErrorIs(c.Accumulate(false, domain.NewUint128(1), 1), domain.ErrArithmeticOverflow)
		s.True(c.TotalVotesAgainst.IsZero())
	})
}

func (s *ClaimModelSuite) TestRecordSettlement() {
	c := s.newClaim(TypeNewPrimary)
	c.VouchCount = 2
	s.Require().NoError(c.RecordSettlement(0))
	s.False(c.RewardsDistributed)
	s.Require().NoError(c.RecordSettlement(5))
	s.True(c.RewardsDistributed)
	s.Equal(uint64(5), c.TotalSlashed)
	s.Error(c.RecordSettlement(0))
}

func (s *ClaimModelSuite) TestWinners() {
	yes := &Vouch{Supports: true}
	no := &Vouch{Supports: false}
	s.True(yes.IsWinner(StatusApproved))
	s.False(no.IsWinner(StatusApproved))
	s.True(no.IsWinner(StatusRejected))
	s.False(yes.IsWinner(StatusRejected))
	s.False(yes.IsWinner(StatusExpired))
	s.False(no.IsWinner(StatusExpired))
}

// ===== Serialization =====

func TestClaimJSONRoundTripAtBoundary(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	nearMax, err := domain.ParseUint128("340282366920938463463374607431768211454")
	require.NoError(t, err)

	c := &Claim{
		ID:                math.MaxUint64,
		Type:              TypeDuplicateFlag,
		Status:            StatusRejected,
		Proposer:          "proposer",
		Subject:           "a",
		RelatedAddress:    "b",
		Platform:          "github",
		Justification:     "same keys",
		CreatedAt:         now,
		ExpiresAt:         now.Add(time.Hour),
		TotalVotesFor:     nearMax,
		TotalVotesAgainst: domain.MaxUint128(),
		ProposerStake:     100,
		TotalStake:        math.MaxUint64,
		TotalSlashed:      7,
		VouchCount:        3,
		SettledCount:      1,
		ResolvedAt:        now.Add(time.Minute),
	}

	raw, err := json.Marshal(c)
	require.NoError(t, err)
	var decoded Claim
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, *c, decoded)

	_, err = decoded.TotalVotesFor.CheckedAdd(domain.NewUint128(2))
	require.ErrorIs(t, err, domain.ErrArithmeticOverflow)
}

func TestVouchJSONRoundTrip(t *testing.T) {
	v := &Vouch{
		ClaimID:        9,
		Voucher:        "voter",
		Supports:       true,
		Weight:         100,
		Stake:          math.MaxUint64,
		VouchedAt:      time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		RewardsClaimed: true,
		RewardAmount:   math.MaxUint64,
		SettledAt:      time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var decoded Vouch
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, *v, decoded)
}

func TestParseTypeAndStatus(t *testing.T) {
	typ, err := ParseType("duplicate_flag")
	require.NoError(t, err)
	assert.Equal(t, TypeDuplicateFlag, typ)
	_, err = ParseType("merge")
	require.ErrorIs(t, err, domain.ErrInvalidClaimType)

	st, err := ParseStatus("expired")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, st)
	_, err = ParseStatus("pending")
	require.ErrorIs(t, err, domain.ErrInvalidClaimStatus)
}
