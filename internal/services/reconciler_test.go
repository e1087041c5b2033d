package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eduolymp/olympiad-service/internal/models"
)

func TestReconcilerSweep(t *testing.T) {
	repo := seedRepo()
	svc, _ := newTestAttemptService(repo)
	ctx := context.Background()

	attempt, err := svc.Start(ctx, studentID, &StartAttemptRequest{OlympiadID: olympiadID})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// The deadline passes with neither a submit nor a view.
	svc.now = func() time.Time { return testBase.Add(2 * time.Hour) }
	repo.now = testBase.Add(2 * time.Hour)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reconciler := NewReconciler(repo, svc, logger, time.Minute)

	graded, err := reconciler.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if graded != 1 {
		t.Errorf("graded = %d, want 1", graded)
	}

	stored := repo.attempts[attempt.ID]
	if stored.Status != models.AttemptExpired {
		t.Errorf("status = %q, want expired", stored.Status)
	}
	if stored.GradedAt == nil {
		t.Error("sweep must complete the grade record")
	}

	// A second sweep finds nothing left to settle.
	graded, err = reconciler.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep() error = %v", err)
	}
	if graded != 0 {
		t.Errorf("second sweep graded = %d, want 0", graded)
	}
}
