package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
	"github.com/eduolymp/olympiad-service/internal/validator"
)

const (
	tasksSheet   = "Tasks"
	resultsSheet = "Results"
)

var taskSheetHeader = []string{"Subject", "Title", "Content", "Type", "Payload"}

type importExportService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewImportExportService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator) ImportExportService {
	return &importExportService{
		repo:      repo,
		logger:    logger,
		validator: v,
	}
}

// ImportTasks loads tasks from an xlsx task-bank sheet. Each row is
// validated independently; bad rows are reported and skipped rather than
// failing the batch.
func (s *importExportService) ImportTasks(ctx context.Context, actor *models.User, r io.Reader) (*ImportTasksResult, error) {
	if err := requireAdmin(actor, 0, "task_bank", "import"); err != nil {
		return nil, err
	}

	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer file.Close()

	rows, err := file.GetRows(tasksSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", tasksSheet, err)
	}
	if len(rows) < 2 {
		return &ImportTasksResult{}, nil
	}

	result := &ImportTasksResult{}
	for i, row := range rows[1:] {
		rowNum := i + 2
		task, err := s.parseTaskRow(row, actor.ID)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		if err := s.repo.Task().Create(ctx, nil, task); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		result.Imported++
	}

	s.logger.Info("task bank imported",
		"imported", result.Imported,
		"skipped", result.Skipped,
		"imported_by", actor.ID)
	return result, nil
}

func (s *importExportService) parseTaskRow(row []string, createdBy uint) (*models.Task, error) {
	if len(row) < len(taskSheetHeader) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(taskSheetHeader), len(row))
	}

	taskType := models.TaskType(row[3])
	payload := json.RawMessage(row[4])

	req := &CreateTaskRequest{
		Subject: row[0],
		Title:   row[1],
		Content: row[2],
		Type:    row[3],
		Payload: payload,
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if errs := validator.ValidateTaskPayload(taskType, payload); len(errs) > 0 {
		return nil, errs
	}

	return &models.Task{
		Subject:   req.Subject,
		Title:     req.Title,
		Content:   req.Content,
		Type:      taskType,
		Payload:   datatypes.JSON(payload),
		CreatedBy: createdBy,
	}, nil
}

// ExportTasks writes the matching task-bank slice as an xlsx workbook.
func (s *importExportService) ExportTasks(ctx context.Context, actor *models.User, filters repositories.TaskFilters) ([]byte, error) {
	if err := requireAdmin(actor, 0, "task_bank", "export"); err != nil {
		return nil, err
	}

	tasks, _, err := s.repo.Task().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	file := excelize.NewFile()
	defer file.Close()
	if err := file.SetSheetName(file.GetSheetName(0), tasksSheet); err != nil {
		return nil, err
	}

	if err := file.SetSheetRow(tasksSheet, "A1", &taskSheetHeader); err != nil {
		return nil, err
	}
	for i, task := range tasks {
		row := []interface{}{task.Subject, task.Title, task.Content, string(task.Type), string(task.Payload)}
		cell := "A" + strconv.Itoa(i+2)
		if err := file.SetSheetRow(tasksSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	return writeWorkbook(file)
}

// ExportResults writes one olympiad's attempt outcomes as an xlsx workbook.
func (s *importExportService) ExportResults(ctx context.Context, actor *models.User, olympiadID uint) ([]byte, error) {
	if err := requireAdmin(actor, olympiadID, "olympiad", "export_results"); err != nil {
		return nil, err
	}

	olympiad, err := s.repo.Olympiad().GetByID(ctx, nil, olympiadID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrOlympiadNotFound
		}
		return nil, fmt.Errorf("failed to get olympiad: %w", err)
	}

	attempts, _, err := s.repo.Attempt().List(ctx, nil, repositories.AttemptFilters{OlympiadID: &olympiadID})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	file := excelize.NewFile()
	defer file.Close()
	if err := file.SetSheetName(file.GetSheetName(0), resultsSheet); err != nil {
		return nil, err
	}

	header := []interface{}{"Login", "Full name", "Class grade", "Status", "Score", "Max score", "Passed", "Graded at"}
	if err := file.SetSheetRow(resultsSheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, attempt := range attempts {
		user, err := s.repo.User().GetByID(ctx, nil, attempt.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get user %d: %w", attempt.UserID, err)
		}
		classGrade := ""
		if user.ClassGrade != nil {
			classGrade = strconv.Itoa(*user.ClassGrade)
		}
		gradedAt := ""
		if attempt.GradedAt != nil {
			gradedAt = attempt.GradedAt.Format("2006-01-02 15:04:05")
		}
		row := []interface{}{
			user.Login, user.FullName, classGrade,
			string(attempt.Status), attempt.ScoreTotal, attempt.ScoreMax,
			attempt.Passed, gradedAt,
		}
		cell := "A" + strconv.Itoa(i+2)
		if err := file.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	s.logger.Info("results exported", "olympiad_id", olympiad.ID, "attempts", len(attempts), "exported_by", actor.ID)
	return writeWorkbook(file)
}

func writeWorkbook(file *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
