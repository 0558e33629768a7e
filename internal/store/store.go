package store

import (
	"context"
	"time"
)

// IdentityTTL is how long an issued identity stays valid on disk. Mirrors the
// year-long cookie the browser client used.
const IdentityTTL = 365 * 24 * time.Hour

// IdentityStore persists the client's server-issued identity between runs.
// One durable key: the cid. It is overwritten on every fresh assignment and
// read on every reconnect attempt.
type IdentityStore interface {
	// Load returns the stored cid. ok is false when no identity has been
	// issued yet or the stored one has expired.
	Load(ctx context.Context) (cid int64, ok bool, err error)

	// Save stores the cid, replacing any previous identity and resetting
	// its expiry.
	Save(ctx context.Context, cid int64) error

	// Close releases the underlying storage.
	Close() error
}
