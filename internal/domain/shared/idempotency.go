package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers business keys that were already persisted so a
// redelivered message can be acknowledged without touching the database.
// A key must only be marked after the owning record is durably committed.
type IdempotencyStore interface {
	// MarkProcessed records the key with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether the key is present and not expired
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close releases resources held by the store
	Close() error
}

// IdempotencyConfig holds configuration for the processed-key cache
type IdempotencyConfig struct {
	// TTL is how long a processed key is remembered.
	// Expiry only costs an extra database lookup, never a duplicate insert.
	TTL time.Duration

	// Enabled turns the cache lookup on or off
	Enabled bool
}

// DefaultIdempotencyConfig returns the default configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
