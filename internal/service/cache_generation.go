package service

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheGeneration bumps the counter that namespaces cached seat listings.
// A nil client turns it into a no-op.
type CacheGeneration struct {
	rdb *redis.Client
	key string
	log *zap.Logger
}

func NewCacheGeneration(rdb *redis.Client, key string, log *zap.Logger) *CacheGeneration {
	return &CacheGeneration{rdb: rdb, key: key, log: log}
}

// Bump invalidates every cached response keyed on the previous generation.
func (g *CacheGeneration) Bump(ctx context.Context) {
	if g == nil || g.rdb == nil {
		return
	}
	if err := g.rdb.Incr(ctx, g.key).Err(); err != nil {
		g.log.Warn("cache generation bump failed", zap.Error(err))
	}
}
