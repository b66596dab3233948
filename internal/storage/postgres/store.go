// Package postgres implements storage.Store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"knomee/internal/storage"
	dErrors "knomee/pkg/domain-errors"
	txcontext "knomee/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// writeLockKey is the advisory lock every write transaction holds. It makes
// RunInTx serialize writers the way the in-memory store does.
const writeLockKey int64 = 0x6b6e6f6d6565

// Store runs units of work in SQL transactions. The *sql.Tx is placed in the
// ctx handed to fn so the custody ledger commits with the same transaction.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

type Option func(*Store)

// WithTxTimeout bounds how long a transaction may run when ctx has no deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return s.infra(ctx, err, "begin transaction")
	}
	ctx, rollback := storage.WithRollbackHooks(ctx)
	committed := false
	defer func() {
		if committed {
			return
		}
		_ = sqlTx.Rollback()
		rollback()
	}()

	if !readOnly {
		if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, writeLockKey); err != nil {
			return s.infra(ctx, err, "acquire write lock")
		}
	}

	if err := fn(txcontext.WithTx(ctx, sqlTx), &pgTx{exec: sqlTx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted before commit")
	}
	if err := sqlTx.Commit(); err != nil {
		return s.infra(ctx, err, "commit transaction")
	}
	committed = true
	return nil
}

func (s *Store) infra(ctx context.Context, err error, op string) error {
	if ctx.Err() != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, op+": deadline exceeded")
	}
	return fmt.Errorf("%s: %w", op, err)
}

type pgTx struct {
	exec txcontext.Execer
}

func (t *pgTx) Governance() storage.GovernanceRepo { return governanceRepo{t.exec} }
func (t *pgTx) Identities() storage.IdentityRepo   { return identityRepo{t.exec} }
func (t *pgTx) Claims() storage.ClaimRepo          { return claimRepo{t.exec} }
func (t *pgTx) Vouches() storage.VouchRepo         { return vouchRepo{t.exec} }
func (t *pgTx) Links() storage.LinkRepo            { return linkRepo{t.exec} }
