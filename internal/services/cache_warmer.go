package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/eduolymp/olympiad-service/internal/cache"
	"github.com/eduolymp/olympiad-service/internal/repositories"
)

// CacheWarmer periodically re-materializes cache entries for olympiads that
// are currently open, so the start-of-day stampede hits warm keys.
type CacheWarmer struct {
	repo     repositories.Repository
	cache    *cache.OlympiadCache
	logger   *slog.Logger
	interval time.Duration
}

func NewCacheWarmer(repo repositories.Repository, olympiadCache *cache.OlympiadCache, logger *slog.Logger, interval time.Duration) *CacheWarmer {
	return &CacheWarmer{
		repo:     repo,
		cache:    olympiadCache,
		logger:   logger,
		interval: interval,
	}
}

// Run warms once immediately, then on every tick until cancelled.
func (w *CacheWarmer) Run(ctx context.Context) {
	if n, err := w.WarmOpen(ctx); err != nil {
		w.logger.Error("cache warmup failed", "error", err)
	} else {
		w.logger.Info("cache warmed", "olympiads", n)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.WarmOpen(ctx); err != nil {
				w.logger.Error("cache warmup failed", "error", err)
			}
		}
	}
}

// WarmOpen loads every currently open olympiad and its task list into the
// cache. Returns how many olympiads were warmed.
func (w *CacheWarmer) WarmOpen(ctx context.Context) (int, error) {
	ids, err := w.repo.Olympiad().ListOpenIDs(ctx, nil, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	warmed := 0
	for _, id := range ids {
		olympiad, err := w.repo.Olympiad().GetByID(ctx, nil, id)
		if err != nil {
			w.logger.Warn("warmup skipped olympiad", "olympiad_id", id, "error", err)
			continue
		}
		tasks, err := w.repo.OlympiadTask().GetByOlympiad(ctx, nil, id)
		if err != nil {
			w.logger.Warn("warmup skipped olympiad tasks", "olympiad_id", id, "error", err)
			continue
		}
		if err := w.cache.Warm(ctx, olympiad, tasks); err != nil {
			w.logger.Warn("warmup write failed", "olympiad_id", id, "error", err)
			continue
		}
		warmed++
	}
	return warmed, nil
}
