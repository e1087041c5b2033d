package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eduolymp/olympiad-service/internal/models"
)

// DefaultOlympiadTTL bounds how stale the attempt path may see olympiad
// metadata and task compositions.
const DefaultOlympiadTTL = 5 * time.Minute

// OlympiadCache is the read-through cache in front of olympiad metadata and
// task compositions. The attempt path reads through it; every CMS write to
// an olympiad or its tasks evicts the affected entries.
type OlympiadCache struct {
	meta  *CacheHelper
	tasks *CacheHelper
	ttl   time.Duration
}

func NewOlympiadCache(client *redis.Client, ttl time.Duration) *OlympiadCache {
	if ttl <= 0 {
		ttl = DefaultOlympiadTTL
	}
	return &OlympiadCache{
		meta:  NewCacheHelper(client, "olympiad:meta:"),
		tasks: NewCacheHelper(client, "olympiad:tasks:"),
		ttl:   ttl,
	}
}

// MetaOrFetch returns the olympiad row, from cache when present.
func (c *OlympiadCache) MetaOrFetch(ctx context.Context, olympiadID uint, fetch func() (*models.Olympiad, error)) (*models.Olympiad, error) {
	var olympiad models.Olympiad
	err := c.meta.CacheOrExecute(ctx, idKey(olympiadID), &olympiad, c.ttl, func() (interface{}, error) {
		return fetch()
	})
	if err != nil {
		return nil, err
	}
	return &olympiad, nil
}

// TasksOrFetch returns the olympiad's task composition ordered by sort
// order, from cache when present.
func (c *OlympiadCache) TasksOrFetch(ctx context.Context, olympiadID uint, fetch func() ([]*models.OlympiadTask, error)) ([]*models.OlympiadTask, error) {
	var rows []*models.OlympiadTask
	err := c.tasks.CacheOrExecute(ctx, idKey(olympiadID), &rows, c.ttl, func() (interface{}, error) {
		return fetch()
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Evict drops both entries for each olympiad. Failures are logged, not
// returned: a missed eviction self-heals at TTL expiry.
func (c *OlympiadCache) Evict(ctx context.Context, olympiadIDs ...uint) {
	keys := make([]string, 0, len(olympiadIDs))
	for _, id := range olympiadIDs {
		keys = append(keys, idKey(id))
	}
	if err := c.meta.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "olympiad meta eviction failed", "error", err, "olympiad_ids", olympiadIDs)
	}
	if err := c.tasks.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "olympiad tasks eviction failed", "error", err, "olympiad_ids", olympiadIDs)
	}
}

// Warm preloads one olympiad's entries. Used by the startup warmup job for
// currently open olympiads.
func (c *OlympiadCache) Warm(ctx context.Context, olympiad *models.Olympiad, tasks []*models.OlympiadTask) error {
	if err := c.meta.Set(ctx, idKey(olympiad.ID), olympiad, c.ttl); err != nil {
		return err
	}
	return c.tasks.Set(ctx, idKey(olympiad.ID), tasks, c.ttl)
}

// HealthCheck verifies the backing redis connection.
func (c *OlympiadCache) HealthCheck(ctx context.Context) error {
	return c.meta.HealthCheck(ctx)
}

func idKey(id uint) string {
	return fmt.Sprintf("%d", id)
}
