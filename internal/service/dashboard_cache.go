package service

import (
	"context"
	"encoding/json"
	"time"

	"metersquare/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const dashboardCacheKey = "dashboard:summary"

// DashboardCache keeps the dashboard summary in Redis. Every committed stock
// mutation drops the key. A nil cache, or one without a client, is a no-op.
type DashboardCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDashboardCache(rdb *redis.Client, ttl time.Duration) *DashboardCache {
	return &DashboardCache{rdb: rdb, ttl: ttl}
}

func (c *DashboardCache) enabled() bool { return c != nil && c.rdb != nil && c.ttl > 0 }

func (c *DashboardCache) get(ctx context.Context) (*dto.DashboardResponse, bool) {
	if !c.enabled() {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, dashboardCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var d dto.DashboardResponse
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, false
	}
	return &d, true
}

func (c *DashboardCache) set(ctx context.Context, d *dto.DashboardResponse) {
	if !c.enabled() {
		return
	}
	b, err := json.Marshal(d)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, dashboardCacheKey, b, c.ttl).Err()
}

func (c *DashboardCache) invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	if err := c.rdb.Del(ctx, dashboardCacheKey).Err(); err != nil {
		log.Warn().Err(err).Msg("dashboard cache: invalidate failed")
	}
}
