package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/eduolymp/olympiad-service/internal/models"
)

func newTestCache(t *testing.T) (*OlympiadCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewOlympiadCache(client, time.Minute), mr
}

func sampleOlympiad() *models.Olympiad {
	return &models.Olympiad{
		ID:          1,
		Title:       "Autumn Physics Olympiad",
		AgeGroup:    models.AgeGroup("5-6"),
		DurationSec: 1800,
		IsPublished: true,
	}
}

func TestOlympiadCacheWarmAndHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	olympiad := sampleOlympiad()
	tasks := []*models.OlympiadTask{{OlympiadID: 1, TaskID: 11, SortOrder: 0, MaxScore: 2}}

	if err := c.Warm(ctx, olympiad, tasks); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}

	fetches := 0
	got, err := c.MetaOrFetch(ctx, 1, func() (*models.Olympiad, error) {
		fetches++
		return nil, nil
	})
	if err != nil {
		t.Fatalf("MetaOrFetch() error = %v", err)
	}
	if fetches != 0 {
		t.Error("warmed entry must be served without hitting the store")
	}
	if got.Title != olympiad.Title {
		t.Errorf("title = %q, want %q", got.Title, olympiad.Title)
	}

	rows, err := c.TasksOrFetch(ctx, 1, func() ([]*models.OlympiadTask, error) {
		fetches++
		return nil, nil
	})
	if err != nil {
		t.Fatalf("TasksOrFetch() error = %v", err)
	}
	if fetches != 0 {
		t.Error("warmed task list must be served from cache")
	}
	if len(rows) != 1 || rows[0].TaskID != 11 {
		t.Errorf("rows = %+v, want the warmed composition", rows)
	}
}

func TestOlympiadCacheMissFallsThrough(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	fetches := 0
	got, err := c.MetaOrFetch(ctx, 2, func() (*models.Olympiad, error) {
		fetches++
		o := sampleOlympiad()
		o.ID = 2
		return o, nil
	})
	if err != nil {
		t.Fatalf("MetaOrFetch() error = %v", err)
	}
	if fetches != 1 {
		t.Errorf("fetches = %d, want 1", fetches)
	}
	if got.ID != 2 {
		t.Errorf("id = %d, want 2", got.ID)
	}
}

func TestOlympiadCacheEvict(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	olympiad := sampleOlympiad()

	if err := c.Warm(ctx, olympiad, nil); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	c.Evict(ctx, olympiad.ID)

	fetches := 0
	if _, err := c.MetaOrFetch(ctx, olympiad.ID, func() (*models.Olympiad, error) {
		fetches++
		return olympiad, nil
	}); err != nil {
		t.Fatalf("MetaOrFetch() error = %v", err)
	}
	if fetches != 1 {
		t.Error("evicted entry must be refetched from the store")
	}
}

func TestOlympiadCacheEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	olympiad := sampleOlympiad()

	if err := c.Warm(ctx, olympiad, nil); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	mr.FastForward(2 * time.Minute)

	fetches := 0
	if _, err := c.MetaOrFetch(ctx, olympiad.ID, func() (*models.Olympiad, error) {
		fetches++
		return olympiad, nil
	}); err != nil {
		t.Fatalf("MetaOrFetch() error = %v", err)
	}
	if fetches != 1 {
		t.Error("expired entry must be refetched")
	}
}

func TestOlympiadCacheDegradesWithoutRedis(t *testing.T) {
	c := NewOlympiadCache(nil, time.Minute)
	ctx := context.Background()

	fetches := 0
	got, err := c.MetaOrFetch(ctx, 1, func() (*models.Olympiad, error) {
		fetches++
		return sampleOlympiad(), nil
	})
	if err != nil {
		t.Fatalf("MetaOrFetch() error = %v", err)
	}
	if fetches != 1 || got == nil {
		t.Error("nil client must read through to the store")
	}

	// Warm and Evict are harmless no-ops.
	if err := c.Warm(ctx, sampleOlympiad(), nil); err != nil {
		t.Errorf("Warm() error = %v", err)
	}
	c.Evict(ctx, 1)
}
