package storage

import (
	"context"

	"github.com/poiesic/chunkit/core"
)

// CacheStore is the persistent second cache tier. Implementations must
// be thread-safe and support concurrent access.
type CacheStore interface {
	// Get retrieves an entry by fingerprint.
	// Returns ErrNotFound if the entry doesn't exist or has expired.
	Get(ctx context.Context, key core.Fingerprint) (*core.CacheEntry, error)

	// Put stores an entry, replacing any existing entry for the same
	// fingerprint. The entry's TTL, when positive, bounds its lifetime.
	Put(ctx context.Context, entry *core.CacheEntry) error

	// Touch updates the access bookkeeping of an existing entry
	// without rewriting its payload semantics. Missing entries are not
	// an error.
	Touch(ctx context.Context, key core.Fingerprint) error

	// Delete removes an entry by fingerprint.
	// Deleting a missing entry is not an error.
	Delete(ctx context.Context, key core.Fingerprint) error

	// DeleteByDocument removes every entry cached for a document,
	// across all configurations. Returns the number removed.
	DeleteByDocument(ctx context.Context, documentID string) (int, error)

	// Len returns the number of live entries.
	Len(ctx context.Context) (int, error)

	// Close closes the storage backend and releases resources.
	Close() error
}
