package storage

import "context"

type rollbackKey struct{}

type rollbackHooks struct {
	fns []func()
}

// OnRollback registers fn to run if the enclosing transaction does not commit.
// Hooks run in reverse registration order. It reports false when ctx carries
// no transaction, in which case fn is never called.
func OnRollback(ctx context.Context, fn func()) bool {
	h, ok := ctx.Value(rollbackKey{}).(*rollbackHooks)
	if !ok {
		return false
	}
	h.fns = append(h.fns, fn)
	return true
}

func withRollbackHooks(ctx context.Context) (context.Context, *rollbackHooks) {
	h := &rollbackHooks{}
	return context.WithValue(ctx, rollbackKey{}, h), h
}

// WithRollbackHooks starts collecting OnRollback hooks for a transaction.
// Store implementations call rollback when the transaction does not commit.
func WithRollbackHooks(ctx context.Context) (_ context.Context, rollback func()) {
	ctx, h := withRollbackHooks(ctx)
	return ctx, h.run
}

func (h *rollbackHooks) run() {
	for i := len(h.fns) - 1; i >= 0; i-- {
		h.fns[i]()
	}
	h.fns = nil
}
