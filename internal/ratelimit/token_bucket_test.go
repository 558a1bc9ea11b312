package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBucketCostWeighting(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bucket := New(client, 6, 0.1, time.Minute)

	// A generation run (cost 5) fits once; a second does not.
	allowed, remaining, err := bucket.AllowN(ctx, "engine", 5)
	if err != nil || !allowed {
		t.Fatalf("first generation: allowed=%v err=%v", allowed, err)
	}
	if remaining != 1 {
		t.Fatalf("remaining = %v, want 1", remaining)
	}
	allowed, _, err = bucket.AllowN(ctx, "engine", 5)
	if err != nil {
		t.Fatalf("second generation: %v", err)
	}
	if allowed {
		t.Fatalf("second generation should be rejected")
	}

	// A cheap risk refresh (cost 1) still fits in what is left.
	allowed, _, err = bucket.AllowN(ctx, "engine", 1)
	if err != nil || !allowed {
		t.Fatalf("risk refresh: allowed=%v err=%v", allowed, err)
	}
	allowed, _, _ = bucket.AllowN(ctx, "engine", 1)
	if allowed {
		t.Fatalf("empty bucket should reject")
	}

	// Separate keys hold separate buckets.
	allowed, _, err = bucket.AllowN(ctx, "other", 1)
	if err != nil || !allowed {
		t.Fatalf("fresh key: allowed=%v err=%v", allowed, err)
	}
}
