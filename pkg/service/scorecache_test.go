package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/wingside/loyalty-engine/pkg/leadscore"
)

// setupTestRedis creates a miniredis instance and a client connected
// to it.
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func TestRedisScoreCache_SetAndGet(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewRedisScoreCache(client, time.Minute)
	ctx := context.Background()

	scored := &ScoredLead{
		LeadID:  "lead-1",
		Score:   85,
		Quality: leadscore.QualityHot,
		Breakdown: []leadscore.FactorContribution{
			{Factor: "source", Value: "referral", Points: 20},
		},
		ComputedAt: fixedNow(),
	}
	if err := cache.Set(ctx, "lead-1", scored); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := cache.Get(ctx, "lead-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil for cached lead")
	}
	if got.Score != 85 || got.Quality != leadscore.QualityHot {
		t.Errorf("got score=%d quality=%q, want 85 / %q", got.Score, got.Quality, leadscore.QualityHot)
	}
	if len(got.Breakdown) != 1 || got.Breakdown[0].Points != 20 {
		t.Errorf("breakdown round trip failed: %+v", got.Breakdown)
	}
}

func TestRedisScoreCache_MissReturnsNilNil(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewRedisScoreCache(client, time.Minute)

	got, err := cache.Get(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil on miss", err)
	}
	if got != nil {
		t.Errorf("Get() = %+v, want nil on miss", got)
	}
}

func TestRedisScoreCache_EntryExpires(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewRedisScoreCache(client, time.Minute)
	ctx := context.Background()

	if err := cache.Set(ctx, "lead-1", &ScoredLead{Score: 42}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, "lead-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("entry should have expired, got %+v", got)
	}
}

func TestRedisScoreCache_Invalidate(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewRedisScoreCache(client, time.Minute)
	ctx := context.Background()

	if err := cache.Set(ctx, "lead-1", &ScoredLead{Score: 42}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Invalidate(ctx, "lead-1"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	got, err := cache.Get(ctx, "lead-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get() after invalidate = %+v, want nil", got)
	}

	// invalidating an absent key is fine
	if err := cache.Invalidate(ctx, "never-seen"); err != nil {
		t.Errorf("Invalidate(absent) error = %v", err)
	}
}

func TestRedisScoreCache_CorruptEntryIsMiss(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewRedisScoreCache(client, time.Minute)

	mr.Set(makeScoreCacheKey("lead-1"), "not json {")

	got, err := cache.Get(context.Background(), "lead-1")
	if err != nil {
		t.Fatalf("Get() error = %v, corrupt entry should read as a miss", err)
	}
	if got != nil {
		t.Errorf("Get() = %+v, want nil for corrupt entry", got)
	}
}
