package cache

import (
	"context"
	"fmt"

	"github.com/credit/backend/internal/domain/shared"
	"github.com/credit/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Processed-key store backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// IdempotencyStoreFactory creates processed-key stores based on configuration
type IdempotencyStoreFactory struct {
	redisConfig           config.RedisConfig
	idempotency           config.IdempotencyConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to memory.
// Default is true.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(redisCfg config.RedisConfig, idemCfg config.IdempotencyConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redisConfig:           redisCfg,
		idempotency:           idemCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore builds the configured backend
func (f *IdempotencyStoreFactory) CreateStore(ctx context.Context) (shared.IdempotencyStore, error) {
	switch f.idempotency.Backend {
	case BackendMemory, "":
		f.logger.Info("using in-memory processed-key store")
		return NewInMemoryIdempotencyStore(f.idempotency.CleanupInterval), nil
	case BackendRedis:
		store, err := NewRedisIdempotencyStore(ctx, f.redisConfig)
		if err == nil {
			f.logger.Info("using Redis processed-key store", zap.String("addr", f.redisConfig.Addr()))
			return store, nil
		}
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis processed-key store unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory processed-key store",
			zap.Error(err),
		)
		return NewInMemoryIdempotencyStore(f.idempotency.CleanupInterval), nil
	default:
		return nil, fmt.Errorf("unknown processed-key backend %q", f.idempotency.Backend)
	}
}
