package driven

import (
	"context"
	"time"
)

// ResultCache memoizes stage results and embeddings by content
// fingerprint. Entries past their TTL are treated as absent even if not
// yet physically evicted; implementations additionally evict
// oldest-insertion-first above a configured capacity.
type ResultCache interface {
	// Get returns the cached value for the key, or false if the key is
	// absent or expired.
	Get(ctx context.Context, key string) (any, bool)

	// Put stores a value under the key with the given TTL. Writes are
	// last-write-wins; values are keyed by content fingerprint so
	// concurrent writes for the same key are idempotent.
	Put(ctx context.Context, key string, value any, ttl time.Duration)

	// Invalidate removes the key immediately.
	Invalidate(ctx context.Context, key string)
}
