package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestBucket(t *testing.T, capacity int, window time.Duration) (*TokenBucket, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	mr.SetTime(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewTokenBucket(client, capacity, window), mr
}

func TestTokenBucketBurstThenDeny(t *testing.T) {
	bucket, _ := newTestBucket(t, 3, 10*time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := bucket.Allow(ctx, "u1:a1")
		if !res.Allowed {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
		if res.Limit != 3 {
			t.Errorf("limit = %d, want 3", res.Limit)
		}
	}

	res := bucket.Allow(ctx, "u1:a1")
	if res.Allowed {
		t.Fatal("request over capacity must be denied")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", res.Remaining)
	}
	if res.RetryAfterSec < 1 {
		t.Errorf("retry_after = %d, want at least 1s", res.RetryAfterSec)
	}
}

func TestTokenBucketKeysAreIndependent(t *testing.T) {
	bucket, _ := newTestBucket(t, 1, 10*time.Second)
	ctx := context.Background()

	if !bucket.Allow(ctx, "u1:a1").Allowed {
		t.Fatal("first key denied")
	}
	if bucket.Allow(ctx, "u1:a1").Allowed {
		t.Fatal("first key should be exhausted")
	}
	if !bucket.Allow(ctx, "u2:a1").Allowed {
		t.Error("second key must have its own bucket")
	}
}

func TestTokenBucketRefills(t *testing.T) {
	bucket, mr := newTestBucket(t, 2, 2*time.Second)
	ctx := context.Background()

	bucket.Allow(ctx, "k")
	bucket.Allow(ctx, "k")
	if bucket.Allow(ctx, "k").Allowed {
		t.Fatal("bucket should be empty")
	}

	// One full window refills to capacity.
	mr.SetTime(time.Date(2026, 3, 10, 12, 0, 2, 0, time.UTC))
	res := bucket.Allow(ctx, "k")
	if !res.Allowed {
		t.Fatal("bucket must refill after the window elapses")
	}
}

func TestTokenBucketFailsOpenWithoutRedis(t *testing.T) {
	bucket := NewTokenBucket(nil, 5, time.Second)

	res := bucket.Allow(context.Background(), "k")
	if !res.Allowed {
		t.Error("nil client must fail open")
	}
	if res.Limit != 5 || res.Remaining != 5 {
		t.Errorf("open decision = %+v, want full bucket", res)
	}
}

func TestTokenBucketDefaults(t *testing.T) {
	bucket := NewTokenBucket(nil, 0, 0)
	if bucket.capacity != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", bucket.capacity, DefaultCapacity)
	}
	if bucket.window != DefaultWindow {
		t.Errorf("window = %v, want %v", bucket.window, DefaultWindow)
	}
}
