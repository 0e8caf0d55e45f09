package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/caserag/ragengine/pkg/logger"
)

// Through wraps a computation with a transparent lookup/fill cycle. Any
// cache-side failure (nil manager, corrupt entry, unreachable store)
// degrades to executing fn uncached rather than failing the caller.
// Concurrent callers with the same key may both compute; the last writer
// wins in both tiers.
func Through[T any](ctx context.Context, m *Manager, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if m == nil {
		return fn(ctx)
	}

	if data, ok := m.Get(ctx, key); ok {
		var value T
		if err := json.Unmarshal(data, &value); err == nil {
			return value, nil
		}
		// Corrupt entry: drop it and recompute.
		logger.Warn("Dropping undecodable cache entry", zap.String("key", key))
		m.InvalidateKey(ctx, key)
	}

	value, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		logger.Warn("Failed to encode cache value", zap.String("key", key), zap.Error(err))
		return value, nil
	}
	m.Set(ctx, key, data, ttl)

	return value, nil
}
