// Package storage defines the unit of work every protocol operation runs in.
//
// Stores are pure I/O: they load and persist records at deterministic keys and
// report infrastructure facts through pkg/platform/sentinel. Business rules
// live in the services.
package storage

import (
	"context"
	"strconv"
	"strings"

	claimModels "knomee/internal/claims/models"
	govModels "knomee/internal/governance/models"
	idModels "knomee/internal/identity/models"
	"knomee/pkg/domain"
)

// Kind names a record family for addressing.
type Kind string

const (
	KindGovernance Kind = "governance"
	KindIdentity   Kind = "identity"
	KindClaim      Kind = "claim"
	KindVouch      Kind = "vouch"
	KindLink       Kind = "linked_identity"
)

// Key derives the storage location of a record from its kind and key tuple.
// Parts are length-prefixed so distinct tuples never share a key.
func Key(kind Kind, parts ...string) string {
	var b strings.Builder
	b.WriteString(string(kind))
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// KeyPrefix returns the prefix shared by every key whose tuple starts with parts.
func KeyPrefix(kind Kind, parts ...string) string {
	return Key(kind, parts...) + "/"
}

func IdentityKey(owner domain.Address) string {
	return Key(KindIdentity, owner.String())
}

func ClaimKey(id uint64) string {
	return Key(KindClaim, strconv.FormatUint(id, 10))
}

func VouchKey(claimID uint64, voucher domain.Address) string {
	return Key(KindVouch, strconv.FormatUint(claimID, 10), voucher.String())
}

func LinkKey(primary domain.Address, platform string) string {
	return Key(KindLink, primary.String(), platform)
}

// GovernanceRepo holds the singleton governance record.
type GovernanceRepo interface {
	Get(ctx context.Context) (*govModels.Governance, error)
	Create(ctx context.Context, g *govModels.Governance) error
	Save(ctx context.Context, g *govModels.Governance) error
}

type IdentityRepo interface {
	Get(ctx context.Context, owner domain.Address) (*idModels.Identity, error)
	Create(ctx context.Context, identity *idModels.Identity) error
	Save(ctx context.Context, identity *idModels.Identity) error
}

type ClaimRepo interface {
	Get(ctx context.Context, id uint64) (*claimModels.Claim, error)
	Create(ctx context.Context, claim *claimModels.Claim) error
	Save(ctx context.Context, claim *claimModels.Claim) error
}

type VouchRepo interface {
	Get(ctx context.Context, claimID uint64, voucher domain.Address) (*claimModels.Vouch, error)
	Create(ctx context.Context, vouch *claimModels.Vouch) error
	Save(ctx context.Context, vouch *claimModels.Vouch) error
	ListByClaim(ctx context.Context, claimID uint64) ([]*claimModels.Vouch, error)
}

type LinkRepo interface {
	Get(ctx context.Context, primary domain.Address, platform string) (*idModels.LinkedIdentity, error)
	Create(ctx context.Context, link *idModels.LinkedIdentity) error
	ListByPrimary(ctx context.Context, primary domain.Address) ([]*idModels.LinkedIdentity, error)
}

// Tx exposes the repositories bound to one unit of work.
type Tx interface {
	Governance() GovernanceRepo
	Identities() IdentityRepo
	Claims() ClaimRepo
	Vouches() VouchRepo
	Links() LinkRepo
}

// Store runs protocol operations. RunInTx serializes fn against every other
// write and commits its writes only if fn returns nil. View runs read-only.
// The ctx passed to fn carries the backing transaction, if any, so
// collaborators such as the custody ledger can join it.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
