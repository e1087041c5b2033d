package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eduolymp/olympiad-service/internal/cache"
	"github.com/eduolymp/olympiad-service/internal/events"
	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/validator"
)

func newTestOlympiadService(repo *fakeRepo) OlympiadService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOlympiadService(repo, cache.NewOlympiadCache(nil, 0), events.NewMemoryPublisher(), logger, validator.New())
}

func adminUser() *models.User {
	return &models.User{ID: 1, Login: "admin", Role: models.RoleAdmin}
}

func TestOlympiadCreate(t *testing.T) {
	repo := seedRepo()
	svc := newTestOlympiadService(repo)

	created, err := svc.Create(context.Background(), adminUser(), &CreateOlympiadRequest{
		Title:       "Winter Informatics",
		AgeGroup:    "5,7-8",
		DurationSec: 1800,
		From:        testBase,
		To:          testBase.Add(24 * time.Hour),
		PassPercent: 60,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.AgeGroup != models.AgeGroup("5,7-8") {
		t.Errorf("age group = %q, want canonical form", created.AgeGroup)
	}
	if created.AttemptsLimit != models.DefaultAttemptsLimit {
		t.Errorf("attempts_limit = %d, want %d", created.AttemptsLimit, models.DefaultAttemptsLimit)
	}
	if created.IsPublished {
		t.Error("new olympiads start unpublished")
	}
}

func TestOlympiadCreateRequiresAdmin(t *testing.T) {
	repo := seedRepo()
	svc := newTestOlympiadService(repo)

	student := repo.users[studentID]
	_, err := svc.Create(context.Background(), student, &CreateOlympiadRequest{
		Title:       "Nope",
		AgeGroup:    "7-8",
		DurationSec: 1800,
		From:        testBase,
		To:          testBase.Add(time.Hour),
	})
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("Create() by student error = %v, want PermissionError", err)
	}
}

func TestOlympiadUpdateFrozenWhenPublished(t *testing.T) {
	repo := seedRepo()
	svc := newTestOlympiadService(repo)
	ctx := context.Background()
	admin := adminUser()

	duration := 7200
	_, err := svc.Update(ctx, admin, olympiadID, &UpdateOlympiadRequest{DurationSec: &duration})
	if !errors.Is(err, ErrOlympiadPublished) {
		t.Errorf("duration edit on published olympiad error = %v, want ErrOlympiadPublished", err)
	}

	later := testBase.Add(48 * time.Hour)
	_, err = svc.Update(ctx, admin, olympiadID, &UpdateOlympiadRequest{To: &later})
	if !errors.Is(err, ErrOlympiadPublished) {
		t.Errorf("window edit on published olympiad error = %v, want ErrOlympiadPublished", err)
	}

	// Presentation fields stay editable while published.
	title := "Spring Math Olympiad, finals"
	updated, err := svc.Update(ctx, admin, olympiadID, &UpdateOlympiadRequest{Title: &title})
	if err != nil {
		t.Fatalf("title edit error = %v", err)
	}
	if updated.Title != title {
		t.Errorf("title = %q, want %q", updated.Title, title)
	}
}

func TestOlympiadDeleteBlockedByAttempts(t *testing.T) {
	repo := seedRepo()
	olympiadSvc := newTestOlympiadService(repo)
	attemptSvc, _ := newTestAttemptService(repo)
	ctx := context.Background()

	if _, err := attemptSvc.Start(ctx, studentID, &StartAttemptRequest{OlympiadID: olympiadID}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	err := olympiadSvc.Delete(ctx, adminUser(), olympiadID)
	if !errors.Is(err, ErrOlympiadHasAttempts) {
		t.Errorf("Delete() error = %v, want ErrOlympiadHasAttempts", err)
	}
	if _, ok := repo.olympiads[olympiadID]; !ok {
		t.Error("blocked delete must leave the olympiad in place")
	}
}

func TestOlympiadPublishRequiresTasks(t *testing.T) {
	repo := seedRepo()
	repo.olympiads[olympiadID].IsPublished = false
	repo.olympiadTasks[olympiadID] = nil
	svc := newTestOlympiadService(repo)

	_, err := svc.Publish(context.Background(), adminUser(), olympiadID)
	if !errors.Is(err, ErrOlympiadHasNoTasks) {
		t.Errorf("Publish() error = %v, want ErrOlympiadHasNoTasks", err)
	}
}

func TestOlympiadPublishIdempotent(t *testing.T) {
	repo := seedRepo()
	repo.olympiads[olympiadID].IsPublished = false
	svc := newTestOlympiadService(repo)
	ctx := context.Background()
	admin := adminUser()

	first, err := svc.Publish(ctx, admin, olympiadID)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !first.IsPublished {
		t.Fatal("olympiad must be published")
	}
	second, err := svc.Publish(ctx, admin, olympiadID)
	if err != nil {
		t.Fatalf("second Publish() error = %v", err)
	}
	if !second.IsPublished {
		t.Error("republish must keep the published flag")
	}
}

func TestOlympiadAttachTaskDuplicateRejected(t *testing.T) {
	repo := seedRepo()
	svc := newTestOlympiadService(repo)

	err := svc.AttachTask(context.Background(), adminUser(), olympiadID, &AttachTaskRequest{
		TaskID:   choiceTaskID,
		MaxScore: 1,
	})
	if !errors.Is(err, ErrTaskAlreadyAttached) {
		t.Errorf("AttachTask() error = %v, want ErrTaskAlreadyAttached", err)
	}
}

func TestOlympiadListStudentSeesOnlyPublished(t *testing.T) {
	repo := seedRepo()
	svc := newTestOlympiadService(repo)

	student := repo.users[studentID]
	resp, err := svc.GetByID(context.Background(), student, olympiadID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if resp.CanEdit || resp.CanDelete {
		t.Error("students must not get edit rights")
	}

	repo.olympiads[olympiadID].IsPublished = false
	if _, err := svc.GetByID(context.Background(), student, olympiadID); !errors.Is(err, ErrOlympiadNotFound) {
		t.Errorf("unpublished olympiad visible to student, error = %v", err)
	}
}

func TestOlympiadReleaseResults(t *testing.T) {
	repo := seedRepo()
	svc := newTestOlympiadService(repo)
	ctx := context.Background()
	admin := adminUser()

	updated, err := svc.ReleaseResults(ctx, admin, olympiadID, true)
	if err != nil {
		t.Fatalf("ReleaseResults() error = %v", err)
	}
	if !updated.ResultsReleased {
		t.Error("results_released must be set")
	}

	updated, err = svc.ReleaseResults(ctx, admin, olympiadID, false)
	if err != nil {
		t.Fatalf("ReleaseResults(false) error = %v", err)
	}
	if updated.ResultsReleased {
		t.Error("results_released must be clearable")
	}
}
