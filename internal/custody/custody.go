// Package custody moves stake between accounts and the protocol escrow.
package custody

import (
	"context"

	"knomee/pkg/domain"
)

// Ledger is the escrow collaborator. Each call moves one stake exactly once.
// Implementations join the caller's storage transaction when ctx carries one,
// so a transfer is undone if the operation does not commit.
type Ledger interface {
	TransferIn(ctx context.Context, payer domain.Address, amount uint64) error
	TransferOut(ctx context.Context, recipient domain.Address, amount uint64) error
}

// Faucet credits accounts outside any protocol operation. Only development
// deployments expose it.
type Faucet interface {
	Fund(ctx context.Context, addr domain.Address, amount uint64) error
	BalanceOf(ctx context.Context, addr domain.Address) (uint64, error)
}
