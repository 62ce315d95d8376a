package cache

import (
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewIdempotencyStore returns a Redis-backed store when a client is
// available and an in-memory one otherwise
func NewIdempotencyStore(client *redis.Client, logger *zap.Logger) shared.IdempotencyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client != nil {
		logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(client, DefaultIdempotencyKeyPrefix)
	}
	logger.Warn("Redis unavailable, using in-memory idempotency store; " +
		"notifications may be sent twice when several instances run")
	return NewInMemoryIdempotencyStore()
}
