package custody

import (
	"context"
	"math"
	"sync"

	"knomee/internal/storage"
	"knomee/pkg/domain"
)

// MemoryLedger keeps balances in process. Transfers made inside a
// storage.MemoryStore transaction are reversed if it rolls back.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[domain.Address]uint64
	escrow   uint64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[domain.Address]uint64)}
}

// Fund credits an account. It is the faucet for development and tests.
func (l *MemoryLedger) Fund(_ context.Context, addr domain.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[addr] > math.MaxUint64-amount {
		return domain.ErrArithmeticOverflow
	}
	l.balances[addr] += amount
	return nil
}

func (l *MemoryLedger) Balance(addr domain.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

func (l *MemoryLedger) BalanceOf(_ context.Context, addr domain.Address) (uint64, error) {
	return l.Balance(addr), nil
}

// Escrow returns the total stake held by the protocol.
func (l *MemoryLedger) Escrow() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.escrow
}

func (l *MemoryLedger) TransferIn(ctx context.Context, payer domain.Address, amount uint64) error {
	if err := l.move(payer, amount, true); err != nil {
		return err
	}
	storage.OnRollback(ctx, func() { _ = l.move(payer, amount, false) })
	return nil
}

func (l *MemoryLedger) TransferOut(ctx context.Context, recipient domain.Address, amount uint64) error {
	if err := l.move(recipient, amount, false); err != nil {
		return err
	}
	storage.OnRollback(ctx, func() { _ = l.move(recipient, amount, true) })
	return nil
}

// move shifts amount between addr and escrow; toEscrow picks the direction.
func (l *MemoryLedger) move(addr domain.Address, amount uint64, toEscrow bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if toEscrow {
		if l.balances[addr] < amount {
			return domain.ErrInsufficientCustody
		}
		if l.escrow > math.MaxUint64-amount {
			return domain.ErrArithmeticOverflow
		}
		l.balances[addr] -= amount
		l.escrow += amount
		return nil
	}
	if l.escrow < amount {
		return domain.ErrInsufficientCustody
	}
	if l.balances[addr] > math.MaxUint64-amount {
		return domain.ErrArithmeticOverflow
	}
	l.escrow -= amount
	l.balances[addr] += amount
	return nil
}
