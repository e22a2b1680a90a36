package messages

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const statsCacheKey = "messages:stats"

// StatsCache keeps the stats aggregate warm in redis for a short TTL. The
// store stays the source of truth; any cache failure degrades to a miss.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &StatsCache{client: client, ttl: ttl}
}

func (c *StatsCache) Get(ctx context.Context) (*Stats, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		return nil, false
	}

	var stats Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false
	}
	return &stats, true
}

func (c *StatsCache) Set(ctx context.Context, stats *Stats) {
	if c == nil || c.client == nil {
		return
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	c.client.Set(ctx, statsCacheKey, raw, c.ttl)
}
