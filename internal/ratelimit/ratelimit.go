// Package ratelimit bounds how many commands a caller may submit per window.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Limit is a sliding window budget.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Enabled reports whether the limit should be enforced.
func (l Limit) Enabled() bool {
	return l.Requests > 0 && l.Window > 0
}

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is set only when the request was denied.
	RetryAfter time.Duration
	// Degraded is set when the decision came from the in-process fallback.
	Degraded bool
}

// Store counts requests in a sliding window per key.
type Store interface {
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// CallerKey builds the bucket key for a caller's commands. Delimiters in the
// address are escaped so one caller cannot address another caller's bucket.
func CallerKey(caller string) string {
	return "cmd:" + strings.ReplaceAll(caller, ":", "_")
}
