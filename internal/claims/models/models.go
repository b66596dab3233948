package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	govModels "knomee/internal/governance/models"
	"knomee/pkg/domain"
)

// Type is the closed set of assertions a claim can make.
type Type uint8

const (
	TypeLinkToPrimary Type = iota
	TypeNewPrimary
	TypeDuplicateFlag
)

var typeNames = map[Type]string{
	TypeLinkToPrimary: "link_to_primary",
	TypeNewPrimary:    "new_primary",
	TypeDuplicateFlag: "duplicate_flag",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("claim_type(%d)", uint8(t))
}

func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, domain.ErrInvalidClaimType
}

func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

func (t Type) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, domain.ErrInvalidClaimType
	}
	return json.Marshal(t.String())
}

func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// RequiredThreshold is the approval threshold in basis points.
func (t Type) RequiredThreshold(p govModels.Params) uint16 {
	switch t {
	case TypeLinkToPrimary:
		return p.LinkThreshold
	case TypeNewPrimary:
		return p.PrimaryThreshold
	case TypeDuplicateFlag:
		return p.DuplicateThreshold
	}
	panic(fmt.Sprintf("unknown claim type %d", t))
}

// SlashRate is the share of a losing stake forfeited, in basis points.
// A proven duplicate uses the Sybil rate.
func (t Type) SlashRate(p govModels.Params, isSybil bool) uint16 {
	switch t {
	case TypeLinkToPrimary:
		return p.LinkSlashBps
	case TypeNewPrimary:
		return p.PrimarySlashBps
	case TypeDuplicateFlag:
		if isSybil {
			return p.SybilSlashBps
		}
		return p.DuplicateSlashBps
	}
	panic(fmt.Sprintf("unknown claim type %d", t))
}

// StakeMultiplier scales MinStake to the proposer's required stake.
func (t Type) StakeMultiplier(p govModels.Params) uint64 {
	switch t {
	case TypeLinkToPrimary:
		return 1
	case TypeNewPrimary:
		return uint64(p.PrimaryStakeMultiplier)
	case TypeDuplicateFlag:
		return uint64(p.DuplicateStakeMultiplier)
	}
	panic(fmt.Sprintf("unknown claim type %d", t))
}

// CooldownPeriod is how long a subject waits after a failed claim.
func (t Type) CooldownPeriod(p govModels.Params) time.Duration {
	switch t {
	case TypeLinkToPrimary, TypeNewPrimary:
		return p.FailedClaimCooldown()
	case TypeDuplicateFlag:
		return p.DuplicateFlagCooldown()
	}
	panic(fmt.Sprintf("unknown claim type %d", t))
}

// ChecksSubjectStanding reports whether proposals of this type require the
// subject to be challenge-free and out of cooldown.
func (t Type) ChecksSubjectStanding() bool {
	return t == TypeNewPrimary || t == TypeLinkToPrimary
}

// RequiredStake returns MinStake*multiplier, or ErrArithmeticOverflow.
func (t Type) RequiredStake(p govModels.Params) (uint64, error) {
	m := t.StakeMultiplier(p)
	if m != 0 && p.MinStake > math.MaxUint64/m {
		return 0, domain.ErrArithmeticOverflow
	}
	return p.MinStake * m, nil
}

// MaxTextLen is the justification/evidence bound for the claim type.
func (t Type) MaxTextLen() int {
	if t == TypeDuplicateFlag {
		return govModels.MaxEvidenceLen
	}
	return govModels.MaxJustificationLen
}

// Status is a claim's lifecycle state. Everything but Active is terminal.
type Status uint8

const (
	StatusActive Status = iota
	StatusApproved
	StatusRejected
	StatusExpired
)

var statusNames = map[Status]string{
	StatusActive:   "active",
	StatusApproved: "approved",
	StatusRejected: "rejected",
	StatusExpired:  "expired",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("claim_status(%d)", uint8(s))
}

func ParseStatus(s string) (Status, error) {
	for st, name := range statusNames {
		if name == s {
			return st, nil
		}
	}
	return 0, domain.ErrInvalidClaimStatus
}

func (s Status) IsTerminal() bool { return s != StatusActive }

func (s Status) MarshalJSON() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, domain.ErrInvalidClaimStatus
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Claim is a proposed identity assertion under vote.
type Claim struct {
	ID                 uint64         `json:"id"`
	Type               Type           `json:"type"`
	Status             Status         `json:"status"`
	Proposer           domain.Address `json:"proposer"`
	Subject            domain.Address `json:"subject"`
	RelatedAddress     domain.Address `json:"related_address,omitempty"`
	Platform           string         `json:"platform"`
	Justification      string         `json:"justification"`
	CreatedAt          time.Time      `json:"created_at"`
	ExpiresAt          time.Time      `json:"expires_at"`
	TotalVotesFor      domain.Uint128 `json:"total_votes_for"`
	TotalVotesAgainst  domain.Uint128 `json:"total_votes_against"`
	ProposerStake      uint64         `json:"proposer_stake"`
	TotalStake         uint64         `json:"total_stake"`
	TotalSlashed       uint64         `json:"total_slashed"`
	VouchCount         uint32         `json:"vouch_count"`
	SettledCount       uint32         `json:"settled_count"`
	RewardsDistributed bool           `json:"rewards_distributed"`
	ResolvedAt         time.Time      `json:"resolved_at"`
}

// IsExpired reports whether voting has closed. Expiry is inclusive.
func (c *Claim) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ConsensusBps is the share of weighted votes in favor, in basis points.
func (c *Claim) ConsensusBps() uint16 {
	return domain.ConsensusBps(c.TotalVotesFor, c.TotalVotesAgainst)
}

// Outcome is the result of evaluating an active claim's votes.
type Outcome uint8

const (
	OutcomeUndecided Outcome = iota
	OutcomeApproved
	OutcomeRejected
)

// Evaluate applies the threshold and its inverse to the current totals.
// A claim is rejected early once support can no longer reach the threshold
// by the same margin.
func (c *Claim) Evaluate(p govModels.Params) Outcome {
	threshold := c.Type.RequiredThreshold(p)
	bps := c.ConsensusBps()
	switch {
	case bps >= threshold:
		return OutcomeApproved
	case bps <= domain.BasisPoints-threshold:
		return OutcomeRejected
	default:
		return OutcomeUndecided
	}
}

// Accumulate adds a cast vote to the running totals. On error the claim is
// unchanged.
func (c *Claim) Accumulate(supports bool, weighted domain.Uint128, stake uint64) error {
	forVotes, against := c.TotalVotesFor, c.TotalVotesAgainst
	var err error
	if supports {
		forVotes, err = forVotes.CheckedAdd(weighted)
	} else {
		against, err = against.CheckedAdd(weighted)
	}
	if err != nil {
		return err
	}
	if c.TotalStake > math.MaxUint64-stake || c.VouchCount == math.MaxUint32 {
		return domain.ErrArithmeticOverflow
	}
	c.TotalVotesFor, c.TotalVotesAgainst = forVotes, against
	c.TotalStake += stake
	c.VouchCount++
	return nil
}

// Finalize moves an active claim to a terminal status.
func (c *Claim) Finalize(status Status, now time.Time) error {
	if c.Status.IsTerminal() {
		return domain.ErrClaimAlreadyResolved
	}
	if !status.IsTerminal() {
		return domain.ErrInvalidClaimStatus
	}
	c.Status = status
	c.ResolvedAt = now
	return nil
}

// RecordSettlement counts one settled vouch and the stake it forfeited.
func (c *Claim) RecordSettlement(slashed uint64) error {
	if c.TotalSlashed > math.MaxUint64-slashed || c.SettledCount >= c.VouchCount {
		return domain.ErrArithmeticOverflow
	}
	c.TotalSlashed += slashed
	c.SettledCount++
	c.RewardsDistributed = c.SettledCount == c.VouchCount
	return nil
}

// Vouch is one voter's staked position on a claim.
type Vouch struct {
	ClaimID        uint64         `json:"claim_id"`
	Voucher        domain.Address `json:"voucher"`
	Supports       bool           `json:"supports"`
	Weight         uint64         `json:"weight"`
	Stake          uint64         `json:"stake"`
	VouchedAt      time.Time      `json:"vouched_at"`
	RewardsClaimed bool           `json:"rewards_claimed"`
	RewardAmount   uint64         `json:"reward_amount"`
	SettledAt      time.Time      `json:"settled_at"`
}

// WeightedVote is weight*stake, saturating at the 128-bit maximum.
func (v *Vouch) WeightedVote() domain.Uint128 {
	return domain.SaturatingMul(v.Weight, v.Stake)
}

// IsWinner reports whether the vouch sided with a claim's decided outcome.
// Expired claims have no winners.
func (v *Vouch) IsWinner(status Status) bool {
	switch status {
	case StatusApproved:
		return v.Supports
	case StatusRejected:
		return !v.Supports
	default:
		return false
	}
}

// View is a claim with its live consensus and the policy values that apply to it.
type View struct {
	*Claim
	ConsensusBps         uint16 `json:"consensus_bps"`
	RequiredThresholdBps uint16 `json:"required_threshold_bps"`
	SlashRateBps         uint16 `json:"slash_rate_bps"`
}

// NewView evaluates c under p. An approved duplicate flag is a proven Sybil
// and carries the Sybil slash rate.
func NewView(c *Claim, p govModels.Params) *View {
	sybil := c.Type == TypeDuplicateFlag && c.Status == StatusApproved
	return &View{
		Claim:                c,
		ConsensusBps:         c.ConsensusBps(),
		RequiredThresholdBps: c.Type.RequiredThreshold(p),
		SlashRateBps:         c.Type.SlashRate(p, sybil),
	}
}
