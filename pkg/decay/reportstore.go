package decay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	// reportStoreDefaultTTL keeps past run reports around for a month.
	reportStoreDefaultTTL = 30 * 24 * time.Hour
	// reportStoreKeyPrefix is the prefix for all decay report keys.
	reportStoreKeyPrefix = "loyalty_engine:decay_report:"
	// reportStoreLatestKey always points at the most recent run.
	reportStoreLatestKey = reportStoreKeyPrefix + "latest"
)

// RedisReportStore implements ReportStore using Redis.
type RedisReportStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReportStore creates a Redis-backed report store. A zero ttl
// uses the default.
func NewRedisReportStore(client *redis.Client, ttl time.Duration) *RedisReportStore {
	if ttl <= 0 {
		ttl = reportStoreDefaultTTL
	}
	return &RedisReportStore{
		client: client,
		ttl:    ttl,
	}
}

func makeReportKey(runID string) string {
	return fmt.Sprintf("%s%s", reportStoreKeyPrefix, runID)
}

// SaveReport stores a run report under its run ID and updates the
// latest pointer.
func (r *RedisReportStore) SaveReport(ctx context.Context, report *Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := r.client.Set(ctx, makeReportKey(report.RunID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save report %s: %w", report.RunID, err)
	}
	if err := r.client.Set(ctx, reportStoreLatestKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to update latest report pointer: %w", err)
	}

	logrus.Debugf("saved decay report %s with TTL %v", report.RunID, r.ttl)
	return nil
}

// LatestReport returns the most recent run report, or (nil, nil) when
// no run has happened yet.
func (r *RedisReportStore) LatestReport(ctx context.Context) (*Report, error) {
	data, err := r.client.Get(ctx, reportStoreLatestKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}

	var report Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal latest report: %w", err)
	}
	return &report, nil
}
