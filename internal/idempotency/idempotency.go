// Package idempotency stores one record per idempotency key so retried
// commands collapse onto their first execution. A record starts as a
// reservation (no response yet) and is completed by writing the serialized
// response; completed records answer replays without re-running the handler.
package idempotency

import (
	"context"
	"time"
)

// DefaultRetention bounds how long records are kept. Records older than the
// retention window are treated as absent and removed lazily, so the store does
// not grow without bound.
const DefaultRetention = 24 * time.Hour

// Record is the durable state for one idempotency key.
type Record struct {
	Key       string
	CreatedAt time.Time
	// Response holds the serialized handler response once the request
	// completed. A nil Response marks an in-flight reservation.
	Response []byte
	Status   int
}

// Completed reports whether the record carries a stored response.
func (r Record) Completed() bool {
	return len(r.Response) > 0
}

// Store is the idempotency record contract.
//
// Add must be atomic: when a non-expired record already exists for the key it
// returns sentinel.ErrConflict, so two concurrent first requests cannot both
// reserve the key.
type Store interface {
	// GetByKey returns the record for key, or nil when absent or expired.
	GetByKey(ctx context.Context, key string) (*Record, error)
	Add(ctx context.Context, record Record) error
	Update(ctx context.Context, record Record) error
	// Remove releases the key, typically after the guarded handler failed so
	// a later retry can reserve it again.
	Remove(ctx context.Context, key string) error
}
