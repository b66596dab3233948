package audit

import (
	"time"
)

// EventCategory classifies events for routing and retention.
type EventCategory string

const (
	// CategoryGovernance covers authority actions: parameter changes, oracle
	// upgrades, time warps.
	CategoryGovernance EventCategory = "governance"
	// CategoryProtocol covers claim lifecycle and stake movement.
	CategoryProtocol EventCategory = "protocol"
)

// Event is emitted after a protocol operation commits. It is transport-agnostic
// so stores and sinks can fan out.
type Event struct {
	ID        string            `json:"id"`
	Category  EventCategory     `json:"category"`
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Actor     string            `json:"actor,omitempty"`
	Subject   string            `json:"subject,omitempty"`
	ClaimID   uint64            `json:"claim_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

type EventType string

const (
	EventGovernanceInitialized EventType = "governance_initialized"
	EventGovernanceUpdated     EventType = "governance_updated"
	EventTimeWarped            EventType = "time_warped"
	EventGodModeRenounced      EventType = "god_mode_renounced"

	EventIdentityRegistered EventType = "identity_registered"
	EventOracleUpgraded     EventType = "oracle_upgraded"
	EventIdentityLinked     EventType = "identity_linked"

	EventClaimProposed EventType = "claim_proposed"
	EventVouchCast     EventType = "vouch_cast"
	EventClaimResolved EventType = "claim_resolved"
	EventStakeSettled  EventType = "stake_settled"
)

// Category returns the routing category for the event type.
func (e EventType) Category() EventCategory {
	switch e {
	case EventGovernanceInitialized, EventGovernanceUpdated, EventTimeWarped,
		EventGodModeRenounced, EventOracleUpgraded:
		return CategoryGovernance
	default:
		return CategoryProtocol
	}
}
