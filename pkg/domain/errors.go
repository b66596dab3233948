package domain

import dErrors "knomee/pkg/domain-errors"

// Protocol errors. Each is a stable value; compare with errors.Is.
var (
	// Governance
	ErrGovernanceNotInitialized     = dErrors.NewReason(dErrors.CodeNotFound, "governance_not_initialized", "governance has not been initialized")
	ErrGovernanceAlreadyInitialized = dErrors.NewReason(dErrors.CodeConflict, "governance_already_initialized", "governance is already initialized")
	ErrUnauthorizedGovernance       = dErrors.NewReason(dErrors.CodeForbidden, "unauthorized_governance", "caller is not the governance authority")
	ErrUnauthorizedGodMode          = dErrors.NewReason(dErrors.CodeForbidden, "unauthorized_god_mode", "caller is not the god mode authority")
	ErrGodModeNotActive             = dErrors.NewReason(dErrors.CodeConflict, "god_mode_not_active", "god mode is not active")
	ErrGodModeAlreadyRenounced      = dErrors.NewReason(dErrors.CodeConflict, "god_mode_already_renounced", "god mode has already been renounced")
	ErrInvalidThreshold             = dErrors.NewReason(dErrors.CodeValidation, "invalid_threshold", "threshold must be between 5100 and 10000 basis points")
	ErrInvalidSlashRate             = dErrors.NewReason(dErrors.CodeValidation, "invalid_slash_rate", "slash rate must be between 0 and 10000 basis points")
	ErrInvalidStakeMultiplier       = dErrors.NewReason(dErrors.CodeValidation, "invalid_stake_multiplier", "stake multiplier must be at least 1")
	ErrInvalidParams                = dErrors.NewReason(dErrors.CodeValidation, "invalid_params", "governance parameters are incomplete")

	// Identity
	ErrIdentityNotFound             = dErrors.NewReason(dErrors.CodeNotFound, "identity_not_found", "identity not found")
	ErrIdentityAlreadyInitialized   = dErrors.NewReason(dErrors.CodeConflict, "identity_already_initialized", "identity is already initialized")
	ErrCannotDowngradeTier          = dErrors.NewReason(dErrors.CodeConflict, "cannot_downgrade_tier", "identity tier cannot be downgraded")
	ErrMustBePrimaryToUpgrade       = dErrors.NewReason(dErrors.CodeConflict, "must_be_primary_to_upgrade", "identity must be a verified primary to upgrade")
	ErrAlreadyOracle                = dErrors.NewReason(dErrors.CodeConflict, "already_oracle", "identity is already an oracle")
	ErrInsufficientVotingWeight     = dErrors.NewReason(dErrors.CodeForbidden, "insufficient_voting_weight", "identity tier has no voting weight")
	ErrNotAPrimaryID                = dErrors.NewReason(dErrors.CodeConflict, "not_a_primary_id", "identity is not a verified primary")
	ErrAddressUnderChallenge        = dErrors.NewReason(dErrors.CodeConflict, "address_under_challenge", "address is under an active duplicate challenge")
	ErrLinkedIdentityAlreadyExists  = dErrors.NewReason(dErrors.CodeConflict, "linked_identity_already_exists", "a linked identity already exists for this platform")
	ErrSubjectAddressMismatch       = dErrors.NewReason(dErrors.CodeValidation, "subject_address_mismatch", "claim addresses do not match the request")
	ErrInvalidIdentityTier          = dErrors.NewReason(dErrors.CodeValidation, "invalid_identity_tier", "invalid identity tier")
	ErrInvalidAddress               = dErrors.NewReason(dErrors.CodeValidation, "invalid_address", "address is malformed")

	// Claims
	ErrClaimNotFound              = dErrors.NewReason(dErrors.CodeNotFound, "claim_not_found", "claim not found")
	ErrClaimExpired               = dErrors.NewReason(dErrors.CodeTiming, "claim_expired", "claim has expired")
	ErrClaimAlreadyResolved       = dErrors.NewReason(dErrors.CodeConflict, "claim_already_resolved", "claim is already resolved")
	ErrClaimNotReadyToResolve     = dErrors.NewReason(dErrors.CodeTiming, "claim_not_ready_to_resolve", "claim has not reached a decision")
	ErrCooldownNotElapsed         = dErrors.NewReason(dErrors.CodeTiming, "cooldown_not_elapsed", "cooldown period has not elapsed")
	ErrCannotChallengeSameAddress = dErrors.NewReason(dErrors.CodeValidation, "cannot_challenge_same_address", "duplicate challenge requires two distinct addresses")
	ErrAlreadyVoted               = dErrors.NewReason(dErrors.CodeConflict, "already_voted", "voucher has already voted on this claim")
	ErrInsufficientStake          = dErrors.NewReason(dErrors.CodeValidation, "insufficient_stake", "stake is below the required minimum")
	ErrPlatformNameTooLong        = dErrors.NewReason(dErrors.CodeValidation, "platform_name_too_long", "platform name is too long")
	ErrJustificationTooLong       = dErrors.NewReason(dErrors.CodeValidation, "justification_too_long", "justification is too long")
	ErrEvidenceTooLong            = dErrors.NewReason(dErrors.CodeValidation, "evidence_too_long", "evidence is too long")
	ErrInvalidClaimType           = dErrors.NewReason(dErrors.CodeValidation, "invalid_claim_type", "invalid claim type")
	ErrInvalidClaimStatus         = dErrors.NewReason(dErrors.CodeConflict, "invalid_claim_status", "claim is not in the required status")
	ErrMissingRelatedAddress      = dErrors.NewReason(dErrors.CodeValidation, "missing_related_address", "claim type requires a related address")

	// Settlement
	ErrNotAVoter             = dErrors.NewReason(dErrors.CodeForbidden, "not_a_voter", "caller has no vouch on this claim")
	ErrRewardsAlreadyClaimed = dErrors.NewReason(dErrors.CodeConflict, "rewards_already_claimed", "rewards have already been claimed")
	ErrInsufficientCustody   = dErrors.NewReason(dErrors.CodeConflict, "insufficient_funds", "insufficient token balance")
	ErrArithmeticOverflow    = dErrors.NewReason(dErrors.CodeOverflow, "arithmetic_overflow", "arithmetic overflow")
)
