package storage

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	claimModels "knomee/internal/claims/models"
	govModels "knomee/internal/governance/models"
	idModels "knomee/internal/identity/models"
	"knomee/pkg/domain"
	dErrors "knomee/pkg/domain-errors"
	"knomee/pkg/platform/sentinel"
)

const defaultTxTimeout = 5 * time.Second

// MemoryStore keeps every record in maps keyed by Key. A single lock
// serializes writers; each transaction stages its writes and applies them
// only when fn succeeds.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]any
	timeout time.Duration
}

type MemoryOption func(*MemoryStore)

// WithTxTimeout bounds how long a transaction may run when ctx has no deadline.
func WithTxTimeout(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.timeout = d }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{records: make(map[string]any), timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	ctx, hooks := withRollbackHooks(ctx)
	tx := &memoryTx{base: s.records, staged: make(map[string]any)}
	if err := fn(ctx, tx); err != nil {
		hooks.run()
		return err
	}
	// A cancelled caller must not observe a commit it may have given up on.
	if err := ctx.Err(); err != nil {
		hooks.run()
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted before commit")
	}
	for k, v := range tx.staged {
		s.records[k] = v
	}
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	tx := &memoryTx{base: s.records, readOnly: true}
	return fn(ctx, tx)
}

func (s *MemoryStore) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline || s.timeout == 0 {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return ctx, cancel, nil
}

// memoryTx reads through staged writes to the committed map. Records are
// stored and returned by value so callers never alias committed state.
type memoryTx struct {
	base     map[string]any
	staged   map[string]any
	readOnly bool
}

func (t *memoryTx) load(key string) (any, bool) {
	if v, ok := t.staged[key]; ok {
		return v, true
	}
	v, ok := t.base[key]
	return v, ok
}

func (t *memoryTx) put(key string, v any) error {
	if t.readOnly {
		return dErrors.New(dErrors.CodeInternal, "write in read-only transaction")
	}
	t.staged[key] = v
	return nil
}

func (t *memoryTx) create(key string, v any) error {
	if _, ok := t.load(key); ok {
		return sentinel.ErrAlreadyExists
	}
	return t.put(key, v)
}

func (t *memoryTx) update(key string, v any) error {
	if _, ok := t.load(key); !ok {
		return sentinel.ErrNotFound
	}
	return t.put(key, v)
}

// scan returns the values under a key prefix, staged writes included.
func (t *memoryTx) scan(prefix string) []any {
	seen := make(map[string]any)
	for k, v := range t.base {
		if strings.HasPrefix(k, prefix) {
			seen[k] = v
		}
	}
	for k, v := range t.staged {
		if strings.HasPrefix(k, prefix) {
			seen[k] = v
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}

func (t *memoryTx) Governance() GovernanceRepo { return memGovernance{t} }
func (t *memoryTx) Identities() IdentityRepo   { return memIdentities{t} }
func (t *memoryTx) Claims() ClaimRepo          { return memClaims{t} }
func (t *memoryTx) Vouches() VouchRepo         { return memVouches{t} }
func (t *memoryTx) Links() LinkRepo            { return memLinks{t} }

var governanceKey = Key(KindGovernance)

type memGovernance struct{ t *memoryTx }

func (r memGovernance) Get(_ context.Context) (*govModels.Governance, error) {
	v, ok := r.t.load(governanceKey)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	g := v.(govModels.Governance)
	return &g, nil
}

func (r memGovernance) Create(_ context.Context, g *govModels.Governance) error {
	return r.t.create(governanceKey, *g)
}

func (r memGovernance) Save(_ context.Context, g *govModels.Governance) error {
	return r.t.update(governanceKey, *g)
}

type memIdentities struct{ t *memoryTx }

func (r memIdentities) Get(_ context.Context, owner domain.Address) (*idModels.Identity, error) {
	v, ok := r.t.load(IdentityKey(owner))
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	id := v.(idModels.Identity)
	return &id, nil
}

func (r memIdentities) Create(_ context.Context, identity *idModels.Identity) error {
	return r.t.create(IdentityKey(identity.Owner), *identity)
}

func (r memIdentities) Save(_ context.Context, identity *idModels.Identity) error {
	return r.t.update(IdentityKey(identity.Owner), *identity)
}

type memClaims struct{ t *memoryTx }

func (r memClaims) Get(_ context.Context, id uint64) (*claimModels.Claim, error) {
	v, ok := r.t.load(ClaimKey(id))
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := v.(claimModels.Claim)
	return &c, nil
}

func (r memClaims) Create(_ context.Context, claim *claimModels.Claim) error {
	return r.t.create(ClaimKey(claim.ID), *claim)
}

func (r memClaims) Save(_ context.Context, claim *claimModels.Claim) error {
	return r.t.update(ClaimKey(claim.ID), *claim)
}

type memVouches struct{ t *memoryTx }

func (r memVouches) Get(_ context.Context, claimID uint64, voucher domain.Address) (*claimModels.Vouch, error) {
	v, ok := r.t.load(VouchKey(claimID, voucher))
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	vouch := v.(claimModels.Vouch)
	return &vouch, nil
}

func (r memVouches) Create(_ context.Context, vouch *claimModels.Vouch) error {
	return r.t.create(VouchKey(vouch.ClaimID, vouch.Voucher), *vouch)
}

func (r memVouches) Save(_ context.Context, vouch *claimModels.Vouch) error {
	return r.t.update(VouchKey(vouch.ClaimID, vouch.Voucher), *vouch)
}

func (r memVouches) ListByClaim(_ context.Context, claimID uint64) ([]*claimModels.Vouch, error) {
	rows := r.t.scan(KeyPrefix(KindVouch, strconv.FormatUint(claimID, 10)))
	out := make([]*claimModels.Vouch, 0, len(rows))
	for _, row := range rows {
		v := row.(claimModels.Vouch)
		out = append(out, &v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].VouchedAt.Before(out[j].VouchedAt) })
	return out, nil
}

type memLinks struct{ t *memoryTx }

func (r memLinks) Get(_ context.Context, primary domain.Address, platform string) (*idModels.LinkedIdentity, error) {
	v, ok := r.t.load(LinkKey(primary, platform))
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	link := v.(idModels.LinkedIdentity)
	return &link, nil
}

func (r memLinks) Create(_ context.Context, link *idModels.LinkedIdentity) error {
	return r.t.create(LinkKey(link.PrimaryAddress, link.Platform), *link)
}

func (r memLinks) ListByPrimary(_ context.Context, primary domain.Address) ([]*idModels.LinkedIdentity, error) {
	rows := r.t.scan(KeyPrefix(KindLink, primary.String()))
	out := make([]*idModels.LinkedIdentity, 0, len(rows))
	for _, row := range rows {
		l := row.(idModels.LinkedIdentity)
		out = append(out, &l)
	}
	return out, nil
}
