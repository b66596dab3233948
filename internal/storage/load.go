package storage

import (
	"context"
	"errors"

	claimModels "knomee/internal/claims/models"
	govModels "knomee/internal/governance/models"
	idModels "knomee/internal/identity/models"
	"knomee/pkg/domain"
	dErrors "knomee/pkg/domain-errors"
	"knomee/pkg/platform/sentinel"
)

// LoadGovernance reads the governance record, reporting a missing record as
// domain.ErrGovernanceNotInitialized.
func LoadGovernance(ctx context.Context, tx Tx) (*govModels.Governance, error) {
	g, err := tx.Governance().Get(ctx)
	if err != nil {
		return nil, translate(err, domain.ErrGovernanceNotInitialized, "failed to load governance")
	}
	return g, nil
}

// LoadIdentity reads an identity, reporting a missing record as
// domain.ErrIdentityNotFound.
func LoadIdentity(ctx context.Context, tx Tx, owner domain.Address) (*idModels.Identity, error) {
	identity, err := tx.Identities().Get(ctx, owner)
	if err != nil {
		return nil, translate(err, domain.ErrIdentityNotFound, "failed to load identity")
	}
	return identity, nil
}

// LoadClaim reads a claim, reporting a missing record as domain.ErrClaimNotFound.
func LoadClaim(ctx context.Context, tx Tx, id uint64) (*claimModels.Claim, error) {
	claim, err := tx.Claims().Get(ctx, id)
	if err != nil {
		return nil, translate(err, domain.ErrClaimNotFound, "failed to load claim")
	}
	return claim, nil
}

// Internal wraps an infrastructure failure. Errors that already carry a code
// pass through unchanged.
func Internal(err error, msg string) error {
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func translate(err error, notFound error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return notFound
	}
	return Internal(err, msg)
}
