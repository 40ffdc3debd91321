package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	// scoreCacheDefaultTTL keeps cached scores short-lived; the scorer
	// is cheap, the cache only exists to serve breakdown reads.
	scoreCacheDefaultTTL = 15 * time.Minute
	// scoreCacheKeyPrefix is the prefix for all lead score keys.
	scoreCacheKeyPrefix = "loyalty_engine:lead_score:"
)

// RedisScoreCache implements ScoreCache using Redis.
type RedisScoreCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisScoreCache creates a Redis-backed score cache. A zero ttl
// uses the default.
func NewRedisScoreCache(client *redis.Client, ttl time.Duration) *RedisScoreCache {
	if ttl <= 0 {
		ttl = scoreCacheDefaultTTL
	}
	return &RedisScoreCache{
		client: client,
		ttl:    ttl,
	}
}

func makeScoreCacheKey(leadID string) string {
	return fmt.Sprintf("%s%s", scoreCacheKeyPrefix, leadID)
}

// Get retrieves a cached score for a lead. A miss returns (nil, nil).
func (r *RedisScoreCache) Get(ctx context.Context, leadID string) (*ScoredLead, error) {
	key := makeScoreCacheKey(leadID)

	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached score: %w", err)
	}

	var scored ScoredLead
	if err := json.Unmarshal([]byte(data), &scored); err != nil {
		// A corrupt entry is treated as a miss; the next Set heals it.
		logrus.Warnf("failed to unmarshal cached score for lead %s: %v", leadID, err)
		return nil, nil
	}

	return &scored, nil
}

// Set caches a computed score for a lead with the configured TTL.
func (r *RedisScoreCache) Set(ctx context.Context, leadID string, scored *ScoredLead) error {
	key := makeScoreCacheKey(leadID)

	data, err := json.Marshal(scored)
	if err != nil {
		return fmt.Errorf("failed to marshal score: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cached score: %w", err)
	}

	logrus.Debugf("cached score for lead %s with TTL %v", leadID, r.ttl)
	return nil
}

// Invalidate drops a lead's cached score.
func (r *RedisScoreCache) Invalidate(ctx context.Context, leadID string) error {
	if err := r.client.Del(ctx, makeScoreCacheKey(leadID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached score: %w", err)
	}
	return nil
}
