package locks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLock(t *testing.T, ttl time.Duration) (*SubmitLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSubmitLock(client, ttl), mr
}

func TestSubmitLockAcquireRelease(t *testing.T) {
	lock, _ := newTestLock(t, time.Minute)
	ctx := context.Background()

	token, err := lock.Acquire(ctx, 42)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if token == "" {
		t.Fatal("Acquire() returned an empty token")
	}

	if _, err := lock.Acquire(ctx, 42); !errors.Is(err, ErrLockHeld) {
		t.Errorf("second Acquire() error = %v, want ErrLockHeld", err)
	}

	// A different attempt is a different lock.
	other, err := lock.Acquire(ctx, 43)
	if err != nil || other == "" {
		t.Errorf("Acquire(43) = %q, %v, want a fresh token", other, err)
	}

	if err := lock.Release(ctx, 42, token); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := lock.Acquire(ctx, 42); err != nil {
		t.Errorf("Acquire() after release error = %v", err)
	}
}

func TestSubmitLockReleaseChecksToken(t *testing.T) {
	lock, _ := newTestLock(t, time.Minute)
	ctx := context.Background()

	token, err := lock.Acquire(ctx, 7)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if err := lock.Release(ctx, 7, "stale-token"); err != nil {
		t.Fatalf("Release() with wrong token error = %v", err)
	}
	if _, err := lock.Acquire(ctx, 7); !errors.Is(err, ErrLockHeld) {
		t.Error("wrong token must not free the lock")
	}

	if err := lock.Release(ctx, 7, token); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
}

func TestSubmitLockExpires(t *testing.T) {
	lock, mr := newTestLock(t, time.Second)
	ctx := context.Background()

	if _, err := lock.Acquire(ctx, 7); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	mr.FastForward(2 * time.Second)

	token, err := lock.Acquire(ctx, 7)
	if err != nil {
		t.Fatalf("Acquire() after TTL error = %v", err)
	}
	if token == "" {
		t.Error("expired lock must be acquirable again")
	}
}

func TestSubmitLockFailsOpenWithoutRedis(t *testing.T) {
	lock := NewSubmitLock(nil, time.Minute)
	ctx := context.Background()

	token, err := lock.Acquire(ctx, 1)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if token != "" {
		t.Errorf("token = %q, want empty for the degraded path", token)
	}
	if err := lock.Release(ctx, 1, token); err != nil {
		t.Errorf("Release() error = %v", err)
	}
}
