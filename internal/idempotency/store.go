// Package idempotency replays the recorded response of a command retried with
// the same Idempotency-Key, so a retry never moves stake twice.
package idempotency

import (
	"context"
	"errors"
	"time"
)

// ErrInProgress is returned by Reserve when another request holds the key.
var ErrInProgress = errors.New("idempotent request in progress")

// Record is a completed response kept for replay.
type Record struct {
	Fingerprint string    `json:"fingerprint"`
	Status      int       `json:"status"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	CompletedAt time.Time `json:"completed_at"`
}

// Store reserves keys and keeps completed responses until ttl elapses.
type Store interface {
	// Reserve claims key for a new request. If the key already holds a
	// completed record, that record is returned and nothing is reserved. If
	// another request holds the reservation, ErrInProgress is returned.
	Reserve(ctx context.Context, key string, ttl time.Duration) (*Record, error)
	// Complete stores the response for key, replacing the reservation.
	Complete(ctx context.Context, key string, rec *Record, ttl time.Duration) error
	// Release drops a reservation so the request may be retried.
	Release(ctx context.Context, key string) error
}
