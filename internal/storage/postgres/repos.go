package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	claimModels "knomee/internal/claims/models"
	govModels "knomee/internal/governance/models"
	idModels "knomee/internal/identity/models"
	pg "knomee/internal/platform/postgres"
	"knomee/pkg/domain"
	"knomee/pkg/platform/sentinel"
	txcontext "knomee/pkg/platform/tx"
)

// notFound maps sql.ErrNoRows to the storage sentinel.
func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func inserted(err error, op string) error {
	if err == nil {
		return nil
	}
	if pg.IsUniqueViolation(err) {
		return sentinel.ErrAlreadyExists
	}
	return fmt.Errorf("%s: %w", op, err)
}

func updated(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type governanceRepo struct{ exec txcontext.Execer }

func (r governanceRepo) Get(ctx context.Context) (*govModels.Governance, error) {
	var (
		g      govModels.Governance
		params []byte
	)
	err := r.exec.QueryRowContext(ctx, `
		SELECT authority, god_mode_authority, god_mode_active, time_warp_seconds,
		       params, version, claim_sequence::text, initialized_at, updated_at
		FROM governance WHERE id = 1`).Scan(
		&g.Authority, &g.GodModeAuthority, &g.GodModeActive, &g.TimeWarpSeconds,
		&params, num(&g.Version), num(&g.ClaimSequence), utc{&g.InitializedAt}, utc{&g.UpdatedAt})
	if err != nil {
		return nil, notFound(err, "get governance")
	}
	if err := json.Unmarshal(params, &g.Params); err != nil {
		return nil, fmt.Errorf("decode governance params: %w", err)
	}
	return &g, nil
}

func (r governanceRepo) Create(ctx context.Context, g *govModels.Governance) error {
	params, err := json.Marshal(g.Params)
	if err != nil {
		return fmt.Errorf("encode governance params: %w", err)
	}
	_, err = r.exec.ExecContext(ctx, `
		INSERT INTO governance (id, authority, god_mode_authority, god_mode_active, time_warp_seconds,
		                        params, version, claim_sequence, initialized_at, updated_at)
		VALUES (1, $1, $2, $3, $4, $5::jsonb, $6, $7::numeric, $8, $9)`,
		g.Authority.String(), g.GodModeAuthority.String(), g.GodModeActive, g.TimeWarpSeconds,
		string(params), int64(g.Version), decimal(g.ClaimSequence), g.InitializedAt.UTC(), g.UpdatedAt.UTC())
	return inserted(err, "create governance")
}

func (r governanceRepo) Save(ctx context.Context, g *govModels.Governance) error {
	params, err := json.Marshal(g.Params)
	if err != nil {
		return fmt.Errorf("encode governance params: %w", err)
	}
	res, err := r.exec.ExecContext(ctx, `
		UPDATE governance
		SET authority = $1, god_mode_authority = $2, god_mode_active = $3, time_warp_seconds = $4,
		    params = $5::jsonb, version = $6, claim_sequence = $7::numeric, updated_at = $8
		WHERE id = 1`,
		g.Authority.String(), g.GodModeAuthority.String(), g.GodModeActive, g.TimeWarpSeconds,
		string(params), int64(g.Version), decimal(g.ClaimSequence), g.UpdatedAt.UTC())
	return updated(res, err, "save governance")
}

type identityRepo struct{ exec txcontext.Execer }

const identityColumns = `owner, tier, primary_address, verified_at, total_vouches_received::text,
	total_stake_received::text, under_challenge, challenge_claim_id::text, oracle_decay_start,
	linked_count, last_failed_claim_at, created_at`

func scanIdentity(row rowScanner) (*idModels.Identity, error) {
	var i idModels.Identity
	err := row.Scan(&i.Owner, num(&i.Tier), &i.PrimaryAddress, nullable{&i.VerifiedAt},
		num(&i.TotalVouchesReceived), num(&i.TotalStakeReceived), &i.UnderChallenge,
		num(&i.ChallengeClaimID), nullable{&i.OracleDecayStart}, num(&i.LinkedCount),
		nullable{&i.LastFailedClaimAt}, utc{&i.CreatedAt})
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r identityRepo) Get(ctx context.Context, owner domain.Address) (*idModels.Identity, error) {
	row := r.exec.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE owner = $1`, owner.String())
	i, err := scanIdentity(row)
	if err != nil {
		return nil, notFound(err, "get identity")
	}
	return i, nil
}

func (r identityRepo) Create(ctx context.Context, i *idModels.Identity) error {
	_, err := r.exec.ExecContext(ctx, `
		INSERT INTO identities (owner, tier, primary_address, verified_at, total_vouches_received,
		                        total_stake_received, under_challenge, challenge_claim_id,
		                        oracle_decay_start, linked_count, last_failed_claim_at, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8::numeric, $9, $10, $11, $12)`,
		identityArgs(i)...)
	return inserted(err, "create identity")
}

func (r identityRepo) Save(ctx context.Context, i *idModels.Identity) error {
	res, err := r.exec.ExecContext(ctx, `
		UPDATE identities
		SET tier = $2, primary_address = $3, verified_at = $4, total_vouches_received = $5::numeric,
		    total_stake_received = $6::numeric, under_challenge = $7, challenge_claim_id = $8::numeric,
		    oracle_decay_start = $9, linked_count = $10, last_failed_claim_at = $11, created_at = $12
		WHERE owner = $1`,
		identityArgs(i)...)
	return updated(res, err, "save identity")
}

func identityArgs(i *idModels.Identity) []any {
	return []any{
		i.Owner.String(), int16(i.Tier), i.PrimaryAddress.String(), nullTime(i.VerifiedAt),
		decimal(i.TotalVouchesReceived), decimal(i.TotalStakeReceived), i.UnderChallenge,
		decimal(i.ChallengeClaimID), nullTime(i.OracleDecayStart), int32(i.LinkedCount),
		nullTime(i.LastFailedClaimAt), i.CreatedAt.UTC(),
	}
}

type claimRepo struct{ exec txcontext.Execer }

const claimColumns = `id::text, claim_type, status, proposer, subject, related_address, platform,
	justification, created_at, expires_at, total_votes_for::text, total_votes_against::text,
	proposer_stake::text, total_stake::text, total_slashed::text, vouch_count, settled_count,
	rewards_distributed, resolved_at`

func (r claimRepo) Get(ctx context.Context, id uint64) (*claimModels.Claim, error) {
	var c claimModels.Claim
	err := r.exec.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = $1::numeric`, decimal(id)).Scan(
		num(&c.ID), num(&c.Type), num(&c.Status), &c.Proposer, &c.Subject, &c.RelatedAddress,
		&c.Platform, &c.Justification, utc{&c.CreatedAt}, utc{&c.ExpiresAt},
		&c.TotalVotesFor, &c.TotalVotesAgainst, num(&c.ProposerStake), num(&c.TotalStake),
		num(&c.TotalSlashed), num(&c.VouchCount), num(&c.SettledCount), &c.RewardsDistributed,
		nullable{&c.ResolvedAt})
	if err != nil {
		return nil, notFound(err, "get claim")
	}
	return &c, nil
}

func (r claimRepo) Create(ctx context.Context, c *claimModels.Claim) error {
	_, err := r.exec.ExecContext(ctx, `
		INSERT INTO claims (id, claim_type, status, proposer, subject, related_address, platform,
		                    justification, created_at, expires_at, total_votes_for, total_votes_against,
		                    proposer_stake, total_stake, total_slashed, vouch_count, settled_count,
		                    rewards_distributed, resolved_at)
		VALUES ($1::numeric, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12::numeric,
		        $13::numeric, $14::numeric, $15::numeric, $16, $17, $18, $19)`,
		claimArgs(c)...)
	return inserted(err, "create claim")
}

func (r claimRepo) Save(ctx context.Context, c *claimModels.Claim) error {
	res, err := r.exec.ExecContext(ctx, `
		UPDATE claims
		SET claim_type = $2, status = $3, proposer = $4, subject = $5, related_address = $6,
		    platform = $7, justification = $8, created_at = $9, expires_at = $10,
		    total_votes_for = $11::numeric, total_votes_against = $12::numeric,
		    proposer_stake = $13::numeric, total_stake = $14::numeric, total_slashed = $15::numeric,
		    vouch_count = $16, settled_count = $17, rewards_distributed = $18, resolved_at = $19
		WHERE id = $1::numeric`,
		claimArgs(c)...)
	return updated(res, err, "save claim")
}

func claimArgs(c *claimModels.Claim) []any {
	return []any{
		decimal(c.ID), int16(c.Type), int16(c.Status), c.Proposer.String(), c.Subject.String(),
		c.RelatedAddress.String(), c.Platform, c.Justification, c.CreatedAt.UTC(), c.ExpiresAt.UTC(),
		c.TotalVotesFor.String(), c.TotalVotesAgainst.String(), decimal(c.ProposerStake),
		decimal(c.TotalStake), decimal(c.TotalSlashed), int64(c.VouchCount), int64(c.SettledCount),
		c.RewardsDistributed, nullTime(c.ResolvedAt),
	}
}

type vouchRepo struct{ exec txcontext.Execer }

const vouchColumns = `claim_id::text, voucher, supports, weight::text, stake::text, vouched_at,
	rewards_claimed, reward_amount::text, settled_at`

func scanVouch(row rowScanner) (*claimModels.Vouch, error) {
	var v claimModels.Vouch
	err := row.Scan(num(&v.ClaimID), &v.Voucher, &v.Supports, num(&v.Weight), num(&v.Stake),
		utc{&v.VouchedAt}, &v.RewardsClaimed, num(&v.RewardAmount), nullable{&v.SettledAt})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r vouchRepo) Get(ctx context.Context, claimID uint64, voucher domain.Address) (*claimModels.Vouch, error) {
	row := r.exec.QueryRowContext(ctx,
		`SELECT `+vouchColumns+` FROM vouches WHERE claim_id = $1::numeric AND voucher = $2`,
		decimal(claimID), voucher.String())
	v, err := scanVouch(row)
	if err != nil {
		return nil, notFound(err, "get vouch")
	}
	return v, nil
}

func (r vouchRepo) Create(ctx context.Context, v *claimModels.Vouch) error {
	_, err := r.exec.ExecContext(ctx, `
		INSERT INTO vouches (claim_id, voucher, supports, weight, stake, vouched_at,
		                     rewards_claimed, reward_amount, settled_at)
		VALUES ($1::numeric, $2, $3, $4::numeric, $5::numeric, $6, $7, $8::numeric, $9)`,
		vouchArgs(v)...)
	return inserted(err, "create vouch")
}

func (r vouchRepo) Save(ctx context.Context, v *claimModels.Vouch) error {
	res, err := r.exec.ExecContext(ctx, `
		UPDATE vouches
		SET supports = $3, weight = $4::numeric, stake = $5::numeric, vouched_at = $6,
		    rewards_claimed = $7, reward_amount = $8::numeric, settled_at = $9
		WHERE claim_id = $1::numeric AND voucher = $2`,
		vouchArgs(v)...)
	return updated(res, err, "save vouch")
}

func (r vouchRepo) ListByClaim(ctx context.Context, claimID uint64) ([]*claimModels.Vouch, error) {
	rows, err := r.exec.QueryContext(ctx,
		`SELECT `+vouchColumns+` FROM vouches WHERE claim_id = $1::numeric ORDER BY vouched_at, voucher`,
		decimal(claimID))
	if err != nil {
		return nil, fmt.Errorf("list vouches: %w", err)
	}
	defer rows.Close()

	out := make([]*claimModels.Vouch, 0)
	for rows.Next() {
		v, err := scanVouch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vouch: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list vouches: %w", err)
	}
	return out, nil
}

func vouchArgs(v *claimModels.Vouch) []any {
	return []any{
		decimal(v.ClaimID), v.Voucher.String(), v.Supports, decimal(v.Weight), decimal(v.Stake),
		v.VouchedAt.UTC(), v.RewardsClaimed, decimal(v.RewardAmount), nullTime(v.SettledAt),
	}
}

type linkRepo struct{ exec txcontext.Execer }

const linkColumns = `primary_address, linked_address, platform, claim_id::text, linked_at`

func scanLink(row rowScanner) (*idModels.LinkedIdentity, error) {
	var l idModels.LinkedIdentity
	err := row.Scan(&l.PrimaryAddress, &l.LinkedAddress, &l.Platform, num(&l.ClaimID), utc{&l.LinkedAt})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r linkRepo) Get(ctx context.Context, primary domain.Address, platform string) (*idModels.LinkedIdentity, error) {
	row := r.exec.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM linked_identities WHERE primary_address = $1 AND platform = $2`,
		primary.String(), platform)
	l, err := scanLink(row)
	if err != nil {
		return nil, notFound(err, "get linked identity")
	}
	return l, nil
}

func (r linkRepo) Create(ctx context.Context, l *idModels.LinkedIdentity) error {
	_, err := r.exec.ExecContext(ctx, `
		INSERT INTO linked_identities (primary_address, linked_address, platform, claim_id, linked_at)
		VALUES ($1, $2, $3, $4::numeric, $5)`,
		l.PrimaryAddress.String(), l.LinkedAddress.String(), l.Platform, decimal(l.ClaimID), l.LinkedAt.UTC())
	return inserted(err, "create linked identity")
}

func (r linkRepo) ListByPrimary(ctx context.Context, primary domain.Address) ([]*idModels.LinkedIdentity, error) {
	rows, err := r.exec.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM linked_identities WHERE primary_address = $1 ORDER BY platform`,
		primary.String())
	if err != nil {
		return nil, fmt.Errorf("list linked identities: %w", err)
	}
	defer rows.Close()

	out := make([]*idModels.LinkedIdentity, 0)
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan linked identity: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list linked identities: %w", err)
	}
	return out, nil
}
