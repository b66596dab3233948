package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace/noop"

	"knomee/internal/audit"
	"knomee/internal/claims/metrics"
	"knomee/internal/claims/models"
	"knomee/internal/custody"
	govModels "knomee/internal/governance/models"
	idModels "knomee/internal/identity/models"
	"knomee/internal/storage"
	"knomee/pkg/domain"
	"knomee/pkg/requestcontext"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	authority = domain.Address("authority")
	subject   = domain.Address("subject")
	oracleA   = domain.Address("oracle-a")
	oracleB   = domain.Address("oracle-b")
	verified  = domain.Address("verified")
	primaryA  = domain.Address("primary-a")
	primaryB  = domain.Address("primary-b")
	primaryC  = domain.Address("primary-c")
	linked    = domain.Address("linked")
	nobody    = domain.Address("nobody")

	startingBalance = 1_000
)

type ClaimsServiceSuite struct {
	suite.Suite
	ctx     context.Context
	params  govModels.Params
	store   *storage.MemoryStore
	ledger  *custody.MemoryLedger
	events  *audit.MemoryStore
	metrics *metrics.Metrics
	svc     *Service
}

func TestClaimsServiceSuite(t *testing.T) {
	suite.Run(t, new(ClaimsServiceSuite))
}

func (s *ClaimsServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), t0)
	s.params = govModels.DefaultParams()
	s.params.MinStake = 1

	s.store = storage.NewMemoryStore()
	s.ledger = custody.NewMemoryLedger()
	s.events = audit.NewMemoryStore()
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())

	s.Require().NoError(s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.Governance().Create(ctx, govModels.New(authority, s.params, t0))
	}))

	s.seed(subject, idModels.TierUnverified)
	s.seed(oracleA, idModels.TierOracle)
	s.seed(oracleB, idModels.TierOracle)
	s.seed(verified, idModels.TierVerified)
	s.seed(primaryA, idModels.TierVerified)
	s.seed(primaryB, idModels.TierVerified)
	s.seed(primaryC, idModels.TierVerified)
	s.seed(linked, idModels.TierLinked)

	s.svc = s.newService(s.ledger)
}

func (s *ClaimsServiceSuite) newService(ledger custody.Ledger) *Service {
	return New(s.store, ledger,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(audit.NewPublisher(s.events)),
		WithMetrics(s.metrics),
		WithTracerProvider(noop.NewTracerProvider()),
	)
}

// seed stores an identity at tier and funds its account.
func (s *ClaimsServiceSuite) seed(owner domain.Address, tier idModels.Tier) {
	identity := idModels.NewIdentity(owner, t0)
	identity.Tier = tier
	if tier.IsPrimary() {
		identity.VerifiedAt = t0
	}
	s.Require().NoError(s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.Identities().Create(ctx, identity)
	}))
	s.Require().NoError(s.ledger.Fund(s.ctx, owner, startingBalance))
}

// at returns a context whose request time is t0+d.
func (s *ClaimsServiceSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), t0.Add(d))
}

func (s *ClaimsServiceSuite) identity(owner domain.Address) *idModels.Identity {
	var out *idModels.Identity
	s.Require().NoError(s.store.View(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.Identities().Get(ctx, owner)
		return err
	}))
	return out
}

func (s *ClaimsServiceSuite) claim(id uint64) *models.Claim {
	view, err := s.svc.Get(s.ctx, id)
	s.Require().NoError(err)
	return view.Claim
}

func (s *ClaimsServiceSuite) proposePrimary() *models.Claim {
	claim, err := s.svc.Propose(s.ctx, subject, ProposeRequest{
		Type:    models.TypeNewPrimary,
		Subject: subject,
		Text:    "one human, one key",
		Stake:   3,
	})
	s.Require().NoError(err)
	return claim
}

func (s *ClaimsServiceSuite) vouch(voter domain.Address, id uint64, supports bool, stake uint64) {
	_, err := s.svc.Vouch(s.ctx, voter, VouchRequest{ClaimID: id, Supports: supports, Stake: stake})
	s.Require().NoError(err)
}

func (s *ClaimsServiceSuite) TestOracleScenarioApprovesPrimary() {
	claim := s.proposePrimary()
	s.Equal(uint64(1), claim.ID)
	s.Equal(models.StatusActive, claim.Status)
	s.Equal(t0.Add(30*24*time.Hour), claim.ExpiresAt)

	s.vouch(oracleA, claim.ID, true, 1)
	s.vouch(oracleB, claim.ID, true, 1)
	s.vouch(verified, claim.ID, false, 1)

	view, err := s.svc.Get(s.ctx, claim.ID)
	s.Require().NoError(err)
	s.Equal("200", view.TotalVotesFor.String())
	s.Equal("1", view.TotalVotesAgainst.String())
	s.Equal(uint16(9950), view.ConsensusBps)
	s.Equal(uint16(6700), view.RequiredThresholdBps)
	s.Equal(uint64(3), view.TotalStake)
	s.Equal(uint32(3), view.VouchCount)

	resolved, err := s.svc.Resolve(s.ctx, nobody, claim.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, resolved.Status)

	got := s.identity(subject)
	s.Equal(idModels.TierVerified, got.Tier)
	s.Equal(t0, got.VerifiedAt)
	s.Equal(uint64(2), got.TotalVouchesReceived)
	s.Equal(uint64(2), got.TotalStakeReceived)
}

func (s *ClaimsServiceSuite) TestProposeValidation() {
	cases := []struct {
		name     string
		proposer domain.Address
		req      ProposeRequest
		want     error
	}{
		{
			name:     "platform too long",
			proposer: subject,
			req:      ProposeRequest{Type: models.TypeLinkToPrimary, Subject: subject, Related: primaryA, Platform: strings.Repeat("p", 33), Stake: 1},
			want:     domain.ErrPlatformNameTooLong,
		},
		{
			name:     "justification too long",
			proposer: subject,
			req:      ProposeRequest{Type: models.TypeNewPrimary, Subject: subject, Text: strings.Repeat("j", 501), Stake: 3},
			want:     domain.ErrJustificationTooLong,
		},
		{
			name:     "evidence too long",
			proposer: primaryC,
			req:      ProposeRequest{Type: models.TypeDuplicateFlag, Subject: primaryA, Related: primaryB, Text: strings.Repeat("e", 1001), Stake: 10},
			want:     domain.ErrEvidenceTooLong,
		},
		{
			name:     "primary stake below multiplier",
			proposer: subject,
			req:      ProposeRequest{Type: models.TypeNewPrimary, Subject: subject, Stake: 2},
			want:     domain.ErrInsufficientStake,
		},
		{
			name:     "duplicate stake below multiplier",
			proposer: primaryC,
			req:      ProposeRequest{Type: models.TypeDuplicateFlag, Subject: primaryA, Related: primaryB, Stake: 9},
			want:     domain.ErrInsufficientStake,
		},
		{
			name:     "proposer must be the subject",
			proposer: nobody,
			req:      ProposeRequest{Type: models.TypeNewPrimary, Subject: subject, Stake: 3},
			want:     domain.ErrSubjectAddressMismatch,
		},
		{
			name:     "link needs a target",
			proposer: subject,
			req:      ProposeRequest{Type: models.TypeLinkToPrimary, Subject: subject, Stake: 1},
			want:     domain.ErrMissingRelatedAddress,
		},
		{
			name:     "link target must be primary",
			proposer: subject,
			req:      ProposeRequest{Type: models.TypeLinkToPrimary, Subject: subject, Related: linked, Platform: "github", Stake: 1},
			want:     domain.ErrNotAPrimaryID,
		},
		{
			name:     "duplicate of itself",
			proposer: primaryC,
			req:      ProposeRequest{Type: models.TypeDuplicateFlag, Subject: primaryA, Related: primaryA, Stake: 10},
			want:     domain.ErrCannotChallengeSameAddress,
		},
		{
			name:     "duplicate needs two primaries",
			proposer: primaryC,
			req:      ProposeRequest{Type: models.TypeDuplicateFlag, Subject: primaryA, Related: subject, Stake: 10},
			want:     domain.ErrNotAPrimaryID,
		},
		{
			name:     "unknown subject",
			proposer: "ghost",
			req:      ProposeRequest{Type: models.TypeNewPrimary, Subject: "ghost", Stake: 3},
			want:     domain.ErrIdentityNotFound,
		},
		{
			name:     "unknown claim type",
			proposer: subject,
			req:      ProposeRequest{Type: models.Type(9), Subject: subject, Stake: 3},
			want:     domain.ErrInvalidClaimType,
		},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			before := s.ledger.Balance(tc.proposer)
			_, err := s.svc.Propose(s.ctx, tc.proposer, tc.req)
			s.ErrorIs(err, tc.want)
			s.Equal(before, s.ledger.Balance(tc.proposer))
		})
	}

	_, err := s.svc.Get(s.ctx, 1)
	s.ErrorIs(err, domain.ErrClaimNotFound)
}

func (s *ClaimsServiceSuite) TestProposeEscrowsStakeAndAllocatesMonotonicIDs() {
	for want := uint64(1); want <= 3; want++ {
		claim, err := s.svc.Propose(s.ctx, subject, ProposeRequest{
			Type: models.TypeLinkToPrimary, Subject: subject, Related: primaryA, Platform: "github", Stake: 1,
		})
		s.Require().NoError(err)
		s.Equal(want, claim.ID)
		s.Equal(uint64(1), claim.ProposerStake)
		s.Zero(claim.TotalStake)
	}
	s.Equal(uint64(startingBalance-3), s.ledger.Balance(subject))
	s.Equal(uint64(3), s.ledger.Escrow())
}

func (s *ClaimsServiceSuite) TestProposeCooldown() {
	claim := s.proposePrimary()
	s.vouch(verified, claim.ID, false, 1)
	_, err := s.svc.Resolve(s.ctx, nobody, claim.ID)
	s.Require().NoError(err)
	s.Equal(t0, s.identity(subject).LastFailedClaimAt)

	cooldown := s.params.FailedClaimCooldown()
	req := ProposeRequest{Type: models.TypeNewPrimary, Subject: subject, Stake: 3}

	_, err = s.svc.Propose(s.at(cooldown-time.Second), subject, req)
	s.ErrorIs(err, domain.ErrCooldownNotElapsed)

	_, err = s.svc.Propose(s.at(cooldown), subject, req)
	s.NoError(err)
}

func (s *ClaimsServiceSuite) TestDuplicateFlagChallengeAsymmetry() {
	first, err := s.svc.Propose(s.ctx, primaryC, ProposeRequest{
		Type: models.TypeDuplicateFlag, Subject: primaryA, Related: primaryB, Text: "same device", Stake: 10,
	})
	s.Require().NoError(err)

	a, b := s.identity(primaryA), s.identity(primaryB)
	s.True(a.UnderChallenge)
	s.Equal(first.ID, a.ChallengeClaimID)
	s.True(b.UnderChallenge)
	s.Equal(first.ID, b.ChallengeClaimID)

	s.Run("a second duplicate flag may name a challenged address", func() {
		second, err := s.svc.Propose(s.ctx, primaryB, ProposeRequest{
			Type: models.TypeDuplicateFlag, Subject: primaryA, Related: primaryC, Stake: 10,
		})
		s.Require().NoError(err)
		s.Equal(second.ID, s.identity(primaryA).ChallengeClaimID)
	})

	s.Run("link and primary claims require a challenge-free subject", func() {
		_, err := s.svc.Propose(s.ctx, primaryB, ProposeRequest{
			Type: models.TypeLinkToPrimary, Subject: primaryB, Related: oracleA, Platform: "x", Stake: 1,
		})
		s.ErrorIs(err, domain.ErrAddressUnderChallenge)

		_, err = s.svc.Propose(s.ctx, primaryA, ProposeRequest{
			Type: models.TypeNewPrimary, Subject: primaryA, Stake: 3,
		})
		s.ErrorIs(err, domain.ErrAddressUnderChallenge)
	})

	s.Run("resolution releases only holds it placed", func() {
		s.vouch(oracleA, first.ID, false, 1)
		_, err := s.svc.Resolve(s.ctx, nobody, first.ID)
		s.Require().NoError(err)

		a, b := s.identity(primaryA), s.identity(primaryB)
		s.True(a.UnderChallenge, "primary-a is still held by the second flag")
		s.False(b.UnderChallenge)
		s.Zero(b.ChallengeClaimID)
	})
}

func (s *ClaimsServiceSuite) TestVouchRules() {
	claim := s.proposePrimary()

	s.Run("unverified and linked identities cannot vote", func() {
		for _, voter := range []domain.Address{subject, linked} {
			_, err := s.svc.Vouch(s.ctx, voter, VouchRequest{ClaimID: claim.ID, Supports: true, Stake: 1})
			s.ErrorIs(err, domain.ErrInsufficientVotingWeight)
		}
	})

	s.Run("unregistered voter", func() {
		_, err := s.svc.Vouch(s.ctx, nobody, VouchRequest{ClaimID: claim.ID, Supports: true, Stake: 1})
		s.ErrorIs(err, domain.ErrIdentityNotFound)
	})

	s.Run("stake below minimum", func() {
		_, err := s.svc.Vouch(s.ctx, oracleA, VouchRequest{ClaimID: claim.ID, Supports: true, Stake: 0})
		s.ErrorIs(err, domain.ErrInsufficientStake)
	})

	s.Run("one vouch per voter", func() {
		s.vouch(oracleA, claim.ID, true, 5)
		_, err := s.svc.Vouch(s.ctx, oracleA, VouchRequest{ClaimID: claim.ID, Supports: false, Stake: 5})
		s.ErrorIs(err, domain.ErrAlreadyVoted)
		s.Equal(uint32(1), s.claim(claim.ID).VouchCount)
		s.Equal(uint64(startingBalance-5), s.ledger.Balance(oracleA))
	})

	s.Run("expiry is inclusive", func() {
		expiry := s.params.ClaimExpiry()
		_, err := s.svc.Vouch(s.at(expiry), verified, VouchRequest{ClaimID: claim.ID, Supports: true, Stake: 1})
		s.ErrorIs(err, domain.ErrClaimExpired)

		_, err = s.svc.Vouch(s.at(expiry-time.Second), verified, VouchRequest{ClaimID: claim.ID, Supports: true, Stake: 1})
		s.NoError(err)
	})

	s.Run("missing claim", func() {
		_, err := s.svc.Vouch(s.ctx, oracleB, VouchRequest{ClaimID: 99, Supports: true, Stake: 1})
		s.ErrorIs(err, domain.ErrClaimNotFound)
	})
}

func (s *ClaimsServiceSuite) TestVouchWeightIsFrozen() {
	claim := s.proposePrimary()
	s.vouch(verified, claim.ID, true, 4)

	s.Require().NoError(s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		voter, err := tx.Identities().Get(ctx, verified)
		if err != nil {
			return err
		}
		if err := voter.UpgradeToOracle(t0); err != nil {
			return err
		}
		return tx.Identities().Save(ctx, voter)
	}))

	vouches, err := s.svc.ListVouches(s.ctx, claim.ID)
	s.Require().NoError(err)
	s.Require().Len(vouches, 1)
	s.Equal(uint64(1), vouches[0].Weight)
	s.Equal("4", s.claim(claim.ID).TotalVotesFor.String())
}

func (s *ClaimsServiceSuite) TestVouchOnResolvedClaim() {
	claim := s.proposePrimary()
	s.vouch(oracleA, claim.ID, true, 1)
	_, err := s.svc.Resolve(s.ctx, nobody, claim.ID)
	s.Require().NoError(err)

	_, err = s.svc.Vouch(s.ctx, oracleB, VouchRequest{ClaimID: claim.ID, Supports: true, Stake: 1})
	s.ErrorIs(err, domain.ErrClaimAlreadyResolved)
}

func (s *ClaimsServiceSuite) TestAuditEvents() {
	claim := s.proposePrimary()
	s.vouch(oracleA, claim.ID, true, 1)
	_, err := s.svc.Resolve(s.ctx, nobody, claim.ID)
	s.Require().NoError(err)
	_, err = s.svc.SettleRewards(s.ctx, oracleA, claim.ID)
	s.Require().NoError(err)

	events, err := s.events.ListByClaim(s.ctx, claim.ID)
	s.Require().NoError(err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
		s.Equal(audit.CategoryProtocol, e.Category)
		s.Equal(subject.String(), e.Subject)
	}
	s.Equal([]string{
		string(audit.EventClaimProposed),
		string(audit.EventVouchCast),
		string(audit.EventClaimResolved),
		string(audit.EventStakeSettled),
	}, actions)
	s.Equal("approved", events[2].Details["status"])
}
