package cache

import (
	"context"
	"log/slog"
	"time"
)

// SharedTier is the cross-process cache backend. Implementations report
// presence separately from transport errors so the tiered cache can
// degrade to the local tier without surfacing cache failures to callers.
type SharedTier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Tiered reads shared-first with a silent local fallback, and writes both
// tiers. A nil shared tier degrades to local-only operation.
type Tiered struct {
	shared SharedTier
	local  *LocalCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewTiered assembles the tiered cache. shared may be nil.
func NewTiered(shared SharedTier, local *LocalCache, ttl time.Duration, logger *slog.Logger) *Tiered {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tiered{shared: shared, local: local, ttl: ttl, logger: logger}
}

// Get returns the cached value for key from the first tier that has it.
// Shared-tier failures are logged and treated as misses.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if t.shared != nil {
		value, ok, err := t.shared.Get(ctx, key)
		if err != nil {
			t.logger.Warn("shared_cache_get_failed", slog.String("error", err.Error()))
		} else if ok {
			return value, true
		}
	}
	return t.local.Get(key)
}

// Set writes value to both tiers. The shared write is best effort.
func (t *Tiered) Set(ctx context.Context, key string, value []byte) {
	t.local.Set(key, value, t.ttl)
	if t.shared != nil {
		if err := t.shared.Set(ctx, key, value, t.ttl); err != nil {
			t.logger.Warn("shared_cache_set_failed", slog.String("error", err.Error()))
		}
	}
}

// TTL returns the configured entry lifetime.
func (t *Tiered) TTL() time.Duration {
	return t.ttl
}
