package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	govModels "knomee/internal/governance/models"
	"knomee/pkg/domain"
)

// Tier is an identity's verification level.
type Tier uint8

const (
	TierUnverified Tier = iota
	TierLinked
	TierVerified
	TierOracle
)

var tierNames = map[Tier]string{
	TierUnverified: "unverified",
	TierLinked:     "linked",
	TierVerified:   "verified",
	TierOracle:     "oracle",
}

func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return fmt.Sprintf("tier(%d)", uint8(t))
}

// ParseTier parses the wire form of a tier.
func ParseTier(s string) (Tier, error) {
	for t, name := range tierNames {
		if name == s {
			return t, nil
		}
	}
	return 0, domain.ErrInvalidIdentityTier
}

func (t Tier) MarshalJSON() ([]byte, error) {
	if _, ok := tierNames[t]; !ok {
		return nil, domain.ErrInvalidIdentityTier
	}
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// VotingWeight returns the vote multiplier a tier carries. Unverified and
// linked identities cannot vote.
func (t Tier) VotingWeight(p govModels.Params) uint64 {
	switch t {
	case TierVerified:
		return p.PrimaryVoteWeight
	case TierOracle:
		return p.OracleVoteWeight
	default:
		return 0
	}
}

// IsPrimary reports whether the tier is a verified primary (verified or oracle).
func (t Tier) IsPrimary() bool {
	return t == TierVerified || t == TierOracle
}

// Identity is the per-address verification record.
type Identity struct {
	Owner                domain.Address `json:"owner"`
	Tier                 Tier           `json:"tier"`
	PrimaryAddress       domain.Address `json:"primary_address"`
	VerifiedAt           time.Time      `json:"verified_at"`
	TotalVouchesReceived uint64         `json:"total_vouches_received"`
	TotalStakeReceived   uint64         `json:"total_stake_received"`
	UnderChallenge       bool           `json:"under_challenge"`
	ChallengeClaimID     uint64         `json:"challenge_claim_id"`
	OracleDecayStart     time.Time      `json:"oracle_decay_start"`
	LinkedCount          uint16         `json:"linked_count"`
	LastFailedClaimAt    time.Time      `json:"last_failed_claim_at"`
	CreatedAt            time.Time      `json:"created_at"`
}

// NewIdentity returns an unverified identity linked to itself.
func NewIdentity(owner domain.Address, now time.Time) *Identity {
	return &Identity{
		Owner:          owner,
		Tier:           TierUnverified,
		PrimaryAddress: owner,
		CreatedAt:      now,
	}
}

func (i *Identity) VotingWeight(p govModels.Params) uint64 { return i.Tier.VotingWeight(p) }

func (i *Identity) IsPrimary() bool { return i.Tier.IsPrimary() }

// PromoteToPrimary marks the identity as a verified primary.
func (i *Identity) PromoteToPrimary(now time.Time) {
	i.Tier = TierVerified
	i.VerifiedAt = now
}

// Demote strips verification after a duplicate has been proven.
func (i *Identity) Demote() {
	i.Tier = TierUnverified
	i.VerifiedAt = time.Time{}
}

// UpgradeToOracle promotes a verified primary to oracle.
func (i *Identity) UpgradeToOracle(now time.Time) error {
	switch i.Tier {
	case TierOracle:
		return domain.ErrAlreadyOracle
	case TierVerified:
		i.Tier = TierOracle
		i.OracleDecayStart = now
		return nil
	default:
		return domain.ErrMustBePrimaryToUpgrade
	}
}

// Challenge places a duplicate-challenge hold on the identity.
func (i *Identity) Challenge(claimID uint64) {
	i.UnderChallenge = true
	i.ChallengeClaimID = claimID
}

// ReleaseChallenge clears the hold if it belongs to claimID. A hold placed by a
// later challenge is left in place.
func (i *Identity) ReleaseChallenge(claimID uint64) {
	if i.ChallengeClaimID != claimID {
		return
	}
	i.UnderChallenge = false
	i.ChallengeClaimID = 0
}

// RecordFailure starts the cooldown window.
func (i *Identity) RecordFailure(now time.Time) {
	i.LastFailedClaimAt = now
}

// CooldownElapsed reports whether a new claim may be proposed at now.
func (i *Identity) CooldownElapsed(cooldown time.Duration, now time.Time) bool {
	if i.LastFailedClaimAt.IsZero() {
		return true
	}
	return !now.Before(i.LastFailedClaimAt.Add(cooldown))
}

// ReceiveVouch records a supporting vouch against the running aggregates.
func (i *Identity) ReceiveVouch(stake uint64) error {
	if i.TotalVouchesReceived == math.MaxUint64 || i.TotalStakeReceived > math.MaxUint64-stake {
		return domain.ErrArithmeticOverflow
	}
	i.TotalVouchesReceived++
	i.TotalStakeReceived += stake
	return nil
}

// LinkTo makes the identity a secondary of primary.
func (i *Identity) LinkTo(primary domain.Address, now time.Time) {
	i.Tier = TierLinked
	i.PrimaryAddress = primary
	i.VerifiedAt = now
}

// AddLink increments the primary's linked-account count.
func (i *Identity) AddLink() error {
	if i.LinkedCount == math.MaxUint16 {
		return domain.ErrArithmeticOverflow
	}
	i.LinkedCount++
	return nil
}

// LinkedIdentity records that LinkedAddress belongs to PrimaryAddress on Platform.
type LinkedIdentity struct {
	PrimaryAddress domain.Address `json:"primary_address"`
	LinkedAddress  domain.Address `json:"linked_address"`
	Platform       string         `json:"platform"`
	ClaimID        uint64         `json:"claim_id"`
	LinkedAt       time.Time      `json:"linked_at"`
}

// Profile is an identity together with the capabilities its tier grants under
// the current parameters.
type Profile struct {
	*Identity
	VotingWeight   uint64 `json:"voting_weight"`
	PrimaryCapable bool   `json:"primary_capable"`
}

// NewProfile derives the capabilities of identity under p.
func NewProfile(identity *Identity, p govModels.Params) *Profile {
	return &Profile{
		Identity:       identity,
		VotingWeight:   identity.VotingWeight(p),
		PrimaryCapable: identity.IsPrimary(),
	}
}
