package models

import (
	"math"
	"time"

	"knomee/pkg/domain"
)

// Bounds on consensus thresholds in basis points. Anything below a strict
// majority would let both sides of a vote win.
const (
	MinThresholdBps = 5100
	MaxThresholdBps = domain.BasisPoints
)

// Text bounds enforced on claim proposals and links.
const (
	MaxPlatformNameLen  = 32
	MaxJustificationLen = 500
	MaxEvidenceLen      = 1000
)

const secondsPerDay = 86_400

// Params is the tunable protocol configuration. Updates replace the whole set.
type Params struct {
	LinkThreshold      uint16 `json:"link_threshold" toml:"link_threshold"`
	PrimaryThreshold   uint16 `json:"primary_threshold" toml:"primary_threshold"`
	DuplicateThreshold uint16 `json:"duplicate_threshold" toml:"duplicate_threshold"`

	MinStake                 uint64 `json:"min_stake" toml:"min_stake"`
	PrimaryStakeMultiplier   uint8  `json:"primary_stake_multiplier" toml:"primary_stake_multiplier"`
	DuplicateStakeMultiplier uint8  `json:"duplicate_stake_multiplier" toml:"duplicate_stake_multiplier"`

	LinkSlashBps      uint16 `json:"link_slash_bps" toml:"link_slash_bps"`
	PrimarySlashBps   uint16 `json:"primary_slash_bps" toml:"primary_slash_bps"`
	DuplicateSlashBps uint16 `json:"duplicate_slash_bps" toml:"duplicate_slash_bps"`
	SybilSlashBps     uint16 `json:"sybil_slash_bps" toml:"sybil_slash_bps"`

	PrimaryVoteWeight uint64 `json:"primary_vote_weight" toml:"primary_vote_weight"`
	OracleVoteWeight  uint64 `json:"oracle_vote_weight" toml:"oracle_vote_weight"`

	FailedClaimCooldownSeconds   int64 `json:"failed_claim_cooldown_seconds" toml:"failed_claim_cooldown_seconds"`
	DuplicateFlagCooldownSeconds int64 `json:"duplicate_flag_cooldown_seconds" toml:"duplicate_flag_cooldown_seconds"`
	ClaimExpirySeconds           int64 `json:"claim_expiry_seconds" toml:"claim_expiry_seconds"`

	OracleDecayRateBps uint16 `json:"oracle_decay_rate_bps" toml:"oracle_decay_rate_bps"`
	AdminDecayRateBps  uint16 `json:"admin_decay_rate_bps" toml:"admin_decay_rate_bps"`
}

// DefaultParams returns the launch configuration.
func DefaultParams() Params {
	return Params{
		LinkThreshold:                5100,
		PrimaryThreshold:             6700,
		DuplicateThreshold:           8000,
		MinStake:                     10_000_000,
		PrimaryStakeMultiplier:       3,
		DuplicateStakeMultiplier:     10,
		LinkSlashBps:                 1000,
		PrimarySlashBps:              3000,
		DuplicateSlashBps:            5000,
		SybilSlashBps:                10_000,
		PrimaryVoteWeight:            1,
		OracleVoteWeight:             100,
		FailedClaimCooldownSeconds:   7 * secondsPerDay,
		DuplicateFlagCooldownSeconds: 30 * secondsPerDay,
		ClaimExpirySeconds:           30 * secondsPerDay,
		OracleDecayRateBps:           10,
		AdminDecayRateBps:            50,
	}
}

// maxDurationSeconds is the longest period a time.Duration can hold.
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

// Validate checks the bounds every parameter set must satisfy. It runs on
// initialization and on every update.
func (p Params) Validate() error {
	for _, th := range []uint16{p.LinkThreshold, p.PrimaryThreshold, p.DuplicateThreshold} {
		if th < MinThresholdBps || th > MaxThresholdBps {
			return domain.ErrInvalidThreshold
		}
	}
	for _, rate := range []uint16{p.LinkSlashBps, p.PrimarySlashBps, p.DuplicateSlashBps, p.SybilSlashBps} {
		if rate > domain.BasisPoints {
			return domain.ErrInvalidSlashRate
		}
	}
	if p.PrimaryStakeMultiplier == 0 || p.DuplicateStakeMultiplier == 0 {
		return domain.ErrInvalidStakeMultiplier
	}
	if p.MinStake == 0 || p.ClaimExpirySeconds <= 0 ||
		p.FailedClaimCooldownSeconds < 0 || p.DuplicateFlagCooldownSeconds < 0 {
		return domain.ErrInvalidParams
	}
	for _, secs := range []int64{p.ClaimExpirySeconds, p.FailedClaimCooldownSeconds, p.DuplicateFlagCooldownSeconds} {
		if secs > maxDurationSeconds {
			return domain.ErrInvalidParams
		}
	}
	if p.OracleDecayRateBps > domain.BasisPoints || p.AdminDecayRateBps > domain.BasisPoints {
		return domain.ErrInvalidParams
	}
	return nil
}

func (p Params) ClaimExpiry() time.Duration {
	return time.Duration(p.ClaimExpirySeconds) * time.Second
}

func (p Params) FailedClaimCooldown() time.Duration {
	return time.Duration(p.FailedClaimCooldownSeconds) * time.Second
}

func (p Params) DuplicateFlagCooldown() time.Duration {
	return time.Duration(p.DuplicateFlagCooldownSeconds) * time.Second
}

// Governance is the protocol's singleton configuration record.
type Governance struct {
	Authority        domain.Address `json:"authority"`
	GodModeAuthority domain.Address `json:"god_mode_authority"`
	GodModeActive    bool           `json:"god_mode_active"`
	TimeWarpSeconds  int64          `json:"time_warp_seconds"`
	Params           Params         `json:"params"`
	Version          uint64         `json:"version"`
	ClaimSequence    uint64         `json:"claim_sequence"`
	InitializedAt    time.Time      `json:"initialized_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// New returns a freshly initialized governance record. The initializer holds
// both the governance and god mode roles until god mode is renounced.
func New(authority domain.Address, params Params, now time.Time) *Governance {
	return &Governance{
		Authority:        authority,
		GodModeAuthority: authority,
		GodModeActive:    true,
		Params:           params,
		Version:          1,
		InitializedAt:    now,
		UpdatedAt:        now,
	}
}

// Now applies the time warp offset to a wall-clock reading.
func (g *Governance) Now(wall time.Time) time.Time {
	return wall.Add(time.Duration(g.TimeWarpSeconds) * time.Second)
}

// NextClaimID allocates the next claim id. Ids start at 1 and never repeat.
func (g *Governance) NextClaimID() (uint64, error) {
	if g.ClaimSequence == math.MaxUint64 {
		return 0, domain.ErrArithmeticOverflow
	}
	g.ClaimSequence++
	return g.ClaimSequence, nil
}

// Warp moves protocol time forward by seconds.
func (g *Governance) Warp(seconds int64) error {
	if !g.GodModeActive {
		return domain.ErrGodModeNotActive
	}
	sum := g.TimeWarpSeconds + seconds
	if (seconds > 0 && sum < g.TimeWarpSeconds) || (seconds < 0 && sum > g.TimeWarpSeconds) {
		return domain.ErrArithmeticOverflow
	}
	// time.Duration is nanoseconds; keep the offset representable.
	if sum > math.MaxInt64/int64(time.Second) || sum < math.MinInt64/int64(time.Second) {
		return domain.ErrArithmeticOverflow
	}
	g.TimeWarpSeconds = sum
	return nil
}
