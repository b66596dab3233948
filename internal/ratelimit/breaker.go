package ratelimit

import (
	"context"
	"log/slog"
	"sync"
)

const (
	failureThreshold = 5
	successThreshold = 3
)

// breaker opens after failureThreshold consecutive primary errors and closes
// after successThreshold consecutive primary successes.
type breaker struct {
	mu        sync.Mutex
	open      bool
	failures  int
	successes int
}

// recordFailure reports whether the breaker just opened.
func (b *breaker) recordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.successes = 0
	if !b.open && b.failures >= failureThreshold {
		b.open = true
		return true
	}
	return false
}

// recordSuccess reports whether the breaker is closed afterwards, and whether
// this call closed it.
func (b *breaker) recordSuccess() (closed, justClosed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		b.failures = 0
		return true, false
	}
	b.successes++
	if b.successes < successThreshold {
		return false, false
	}
	b.open = false
	b.failures = 0
	b.successes = 0
	return true, true
}

// FailoverStore checks the primary store and falls back to an in-process
// window when the primary errors. While the breaker is open every decision
// comes from the fallback, so callers do not alternate between two counters.
type FailoverStore struct {
	primary  Store
	fallback Store
	breaker  *breaker
	logger   *slog.Logger
}

func NewFailoverStore(primary Store, logger *slog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: NewMemoryStore(),
		breaker:  &breaker{},
		logger:   logger,
	}
}

func (s *FailoverStore) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	res, err := s.primary.Allow(ctx, key, limit)
	if err != nil {
		if s.breaker.recordFailure() {
			s.logger.WarnContext(ctx, "rate limit store unavailable, using in-process fallback", "error", err)
		}
		return s.degraded(ctx, key, limit)
	}
	closed, justClosed := s.breaker.recordSuccess()
	if justClosed {
		s.logger.InfoContext(ctx, "rate limit store recovered")
	}
	if !closed {
		return s.degraded(ctx, key, limit)
	}
	return res, nil
}

func (s *FailoverStore) degraded(ctx context.Context, key string, limit Limit) (*Result, error) {
	res, err := s.fallback.Allow(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	res.Degraded = true
	return res, nil
}
