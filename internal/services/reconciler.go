package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/eduolymp/olympiad-service/internal/repositories"
)

const reconcileBatchSize = 100

// Reconciler sweeps attempts whose deadline passed without a completed
// grade record and settles them. Lazy expiry on the view path only flips
// the status; this job guarantees the grade ledger converges.
type Reconciler struct {
	repo     repositories.Repository
	attempts AttemptService
	logger   *slog.Logger
	interval time.Duration
}

func NewReconciler(repo repositories.Repository, attempts AttemptService, logger *slog.Logger, interval time.Duration) *Reconciler {
	return &Reconciler{
		repo:     repo,
		attempts: attempts,
		logger:   logger,
		interval: interval,
	}
}

// Run loops until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil {
				r.logger.Error("reconcile sweep failed", "error", err)
			} else if n > 0 {
				r.logger.Info("reconcile sweep graded attempts", "count", n)
			}
		}
	}
}

// Sweep grades one batch of overdue attempts and reports how many settled.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	overdue, err := r.repo.Attempt().ListExpiredUngraded(ctx, nil, reconcileBatchSize)
	if err != nil {
		return 0, err
	}

	graded := 0
	for _, attempt := range overdue {
		if err := r.attempts.GradeExpired(ctx, attempt.ID); err != nil {
			r.logger.Error("failed to grade expired attempt", "attempt_id", attempt.ID, "error", err)
			continue
		}
		graded++
	}
	return graded, nil
}
