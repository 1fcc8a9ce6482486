package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tasksync/internal/models"
	"tasksync/internal/storage"
	"tasksync/internal/uploads"
)

type taskServiceImpl struct {
	logger  zerolog.Logger
	store   *storage.FileStore
	cleaner uploads.Cleaner
}

func NewTaskService(
	logger zerolog.Logger,
	store *storage.FileStore,
	cleaner uploads.Cleaner,
) TaskService {
	return &taskServiceImpl{
		logger:  logger,
		store:   store,
		cleaner: cleaner,
	}
}

func (s *taskServiceImpl) CreateTask(ctx context.Context, userID string, params CreateTaskParams) (*models.Task, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		s.logger.Warn().
			Str("user_id", userID).
			Msg("rejected task with empty title")
		return nil, ErrEmptyTaskTitle
	}

	status := params.Status
	if status == "" {
		status = models.StatusTodo
	}
	if !models.ValidStatus(status) {
		s.logger.Warn().
			Str("user_id", userID).
			Str("status", status).
			Msg("rejected task with invalid status")
		return nil, ErrInvalidTaskStatus
	}

	dueDate, err := parseDueDate(params.DueDate)
	if err != nil {
		s.logger.Warn().
			Str("user_id", userID).
			Str("due_date", params.DueDate).
			Msg("rejected task with invalid due date")
		return nil, err
	}

	now := time.Now().UTC()
	task := models.Task{
		// A v4 UUID's random component makes collisions effectively
		// impossible even for same-instant creations under load.
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: params.Description,
		Status:      status,
		DueDate:     dueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		Attachments: []models.Attachment{},
	}

	err = s.store.Update(func(db *storage.Database) error {
		db.Tasks = append(db.Tasks, task)
		return nil
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to persist created task")
		return nil, err
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("user_id", userID).
		Msg("created task")
	return &task, nil
}

func (s *taskServiceImpl) UpdateTask(ctx context.Context, params UpdateTaskParams) (*models.Task, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrEmptyTaskTitle
	}
	if !models.ValidStatus(params.Status) {
		return nil, ErrInvalidTaskStatus
	}
	dueDate, err := parseDueDate(params.DueDate)
	if err != nil {
		return nil, err
	}

	var updated models.Task
	err = s.store.Update(func(db *storage.Database) error {
		idx, findErr := findTask(db, params.ID, params.UserID)
		if findErr != nil {
			return findErr
		}

		task := &db.Tasks[idx]
		task.Title = title
		task.Description = params.Description
		task.Status = params.Status
		task.DueDate = dueDate
		task.UpdatedAt = time.Now().UTC()

		updated = *task
		return nil
	})
	if err != nil {
		s.logUpdateFailure(err, params.ID, params.UserID, "update")
		return nil, err
	}

	s.logger.Info().
		Str("task_id", updated.ID).
		Str("user_id", params.UserID).
		Msg("updated task")
	return &updated, nil
}

func (s *taskServiceImpl) PatchTask(ctx context.Context, params PatchTaskParams) (*models.Task, error) {
	var (
		title   string
		status  string
		dueDate *time.Time
		err     error
	)
	if params.Title != nil {
		title = strings.TrimSpace(*params.Title)
		if title == "" {
			return nil, ErrEmptyTaskTitle
		}
	}
	if params.Status != nil {
		status = *params.Status
		if !models.ValidStatus(status) {
			return nil, ErrInvalidTaskStatus
		}
	}
	if params.DueDate != nil {
		dueDate, err = parseDueDate(*params.DueDate)
		if err != nil {
			return nil, err
		}
	}

	var updated models.Task
	err = s.store.Update(func(db *storage.Database) error {
		idx, findErr := findTask(db, params.ID, params.UserID)
		if findErr != nil {
			return findErr
		}

		task := &db.Tasks[idx]
		if params.Title != nil {
			task.Title = title
		}
		if params.Description != nil {
			task.Description = *params.Description
		}
		if params.Status != nil {
			task.Status = status
		}
		if params.DueDate != nil {
			task.DueDate = dueDate
		}
		task.UpdatedAt = time.Now().UTC()

		updated = *task
		return nil
	})
	if err != nil {
		s.logUpdateFailure(err, params.ID, params.UserID, "patch")
		return nil, err
	}

	s.logger.Info().
		Str("task_id", updated.ID).
		Str("user_id", params.UserID).
		Msg("patched task")
	return &updated, nil
}

func (s *taskServiceImpl) DeleteTask(ctx context.Context, params DeleteTaskParams) error {
	var removed models.Task
	err := s.store.Update(func(db *storage.Database) error {
		idx, findErr := findTask(db, params.ID, params.UserID)
		if findErr != nil {
			return findErr
		}

		removed = db.Tasks[idx]
		db.Tasks = append(db.Tasks[:idx], db.Tasks[idx+1:]...)
		return nil
	})
	if err != nil {
		s.logUpdateFailure(err, params.ID, params.UserID, "delete")
		return err
	}

	// The record is already gone; releasing the files happens outside
	// the store lock and never fails the deletion.
	s.cleaner.RemoveTaskFiles(&removed)

	s.logger.Info().
		Str("task_id", params.ID).
		Str("user_id", params.UserID).
		Msg("deleted task")
	return nil
}

func (s *taskServiceImpl) TasksByUserID(ctx context.Context, userID string) ([]models.Task, error) {
	tasks, err := s.store.TasksOf(userID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to load tasks by user id")
		return nil, err
	}
	return tasks, nil
}

func (s *taskServiceImpl) logUpdateFailure(err error, taskID, userID, op string) {
	event := s.logger.Error()
	if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrTaskForbidden) {
		event = s.logger.Warn()
	}
	event.
		Err(err).
		Str("task_id", taskID).
		Str("user_id", userID).
		Str("op", op).
		Msg("task mutation failed")
}

func findTask(db *storage.Database, taskID, userID string) (int, error) {
	for i := range db.Tasks {
		if db.Tasks[i].ID != taskID {
			continue
		}
		if db.Tasks[i].UserID != userID {
			return 0, ErrTaskForbidden
		}
		return i, nil
	}
	return 0, ErrTaskNotFound
}

func parseDueDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidDueDate, raw)
}
