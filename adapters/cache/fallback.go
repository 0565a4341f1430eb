package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain/repositories"
)

// Fallback wraps a primary cache and degrades to a process-local memory
// cache when the primary fails. Callers cannot distinguish a miss from an
// unavailable store; both surface as ErrCacheMiss.
type Fallback struct {
	primary repositories.Cache
	memory  *Memory
	logger  *zap.Logger
}

// NewFallback wraps primary with in-memory degradation. A nil primary means
// the shared store was never configured and the memory cache serves alone.
func NewFallback(primary repositories.Cache, logger *zap.Logger) *Fallback {
	return &Fallback{
		primary: primary,
		memory:  NewMemory(),
		logger:  logger,
	}
}

// Get consults the primary store first, then the local memory cache.
func (f *Fallback) Get(ctx context.Context, key string) (string, error) {
	if f.primary != nil {
		val, err := f.primary.Get(ctx, key)
		if err == nil {
			return val, nil
		}
		if !errors.Is(err, repositories.ErrCacheMiss) {
			f.logger.Warn("primary cache unavailable, using in-memory fallback",
				zap.String("key", key), zap.Error(err))
		}
	}
	return f.memory.Get(ctx, key)
}

// Set writes through to both stores. A primary failure is logged and
// swallowed; the memory copy keeps the entry available for this process.
func (f *Fallback) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if f.primary != nil {
		if err := f.primary.Set(ctx, key, value, ttl); err != nil {
			f.logger.Warn("primary cache set failed, value kept in memory only",
				zap.String("key", key), zap.Error(err))
		}
	}
	return f.memory.Set(ctx, key, value, ttl)
}
