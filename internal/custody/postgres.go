package custody

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"knomee/internal/platform/postgres"
	"knomee/pkg/domain"
	"knomee/pkg/platform/tx"
)

// escrowAccount is the ledger row holding protocol stake. It is not a valid
// Address so it cannot collide with a user account.
const escrowAccount = "escrow:vault"

// PostgresLedger keeps balances in custody_balances. When ctx carries a
// transaction (see pkg/platform/tx) the transfer commits with it.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) TransferIn(ctx context.Context, payer domain.Address, amount uint64) error {
	return l.transfer(ctx, payer.String(), escrowAccount, amount)
}

func (l *PostgresLedger) TransferOut(ctx context.Context, recipient domain.Address, amount uint64) error {
	return l.transfer(ctx, escrowAccount, recipient.String(), amount)
}

// Fund credits an account outside any protocol operation.
func (l *PostgresLedger) Fund(ctx context.Context, addr domain.Address, amount uint64) error {
	return l.credit(ctx, tx.ExecerFrom(ctx, l.db), addr.String(), amount)
}

// BalanceOf returns an account's balance, zero if it has none.
func (l *PostgresLedger) BalanceOf(ctx context.Context, addr domain.Address) (uint64, error) {
	var raw string
	err := tx.ExecerFrom(ctx, l.db).QueryRowContext(ctx,
		`SELECT balance::text FROM custody_balances WHERE address = $1`, addr.String()).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return strconv.ParseUint(raw, 10, 64)
}

func (l *PostgresLedger) transfer(ctx context.Context, from, to string, amount uint64) error {
	if t, ok := tx.From(ctx); ok {
		return l.move(ctx, t, from, to, amount)
	}
	t, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer func() {
		_ = t.Rollback()
	}()
	if err := l.move(ctx, t, from, to, amount); err != nil {
		return err
	}
	return t.Commit()
}

func (l *PostgresLedger) move(ctx context.Context, exec tx.Execer, from, to string, amount uint64) error {
	res, err := exec.ExecContext(ctx, `
		UPDATE custody_balances
		SET balance = balance - $2::numeric
		WHERE address = $1 AND balance >= $2::numeric`,
		from, strconv.FormatUint(amount, 10))
	if err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if n == 0 {
		return domain.ErrInsufficientCustody
	}
	return l.credit(ctx, exec, to, amount)
}

func (l *PostgresLedger) credit(ctx context.Context, exec tx.Execer, addr string, amount uint64) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO custody_balances (address, balance)
		VALUES ($1, $2::numeric)
		ON CONFLICT (address) DO UPDATE
		SET balance = custody_balances.balance + EXCLUDED.balance`,
		addr, strconv.FormatUint(amount, 10))
	if postgres.IsCheckViolation(err) {
		return domain.ErrArithmeticOverflow
	}
	if err != nil {
		return fmt.Errorf("credit %s: %w", addr, err)
	}
	return nil
}
