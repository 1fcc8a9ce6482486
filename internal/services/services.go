package services

import (
	"context"
	"errors"

	"tasksync/internal/models"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskForbidden     = errors.New("task forbidden")
	ErrEmptyTaskTitle    = errors.New("task title must not be empty")
	ErrInvalidTaskStatus = errors.New("invalid task status")
	ErrInvalidDueDate    = errors.New("invalid due date")
)

// IsValidationError reports whether err rejects the request contents
// themselves, as opposed to referencing a missing or foreign task.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyTaskTitle) ||
		errors.Is(err, ErrInvalidTaskStatus) ||
		errors.Is(err, ErrInvalidDueDate)
}

type TaskService interface {
	// CreateTask validates the fields, assigns a fresh unique id and
	// identical creation/update timestamps, and appends the task to
	// the store.
	//
	// It returns ErrEmptyTaskTitle, ErrInvalidTaskStatus or
	// ErrInvalidDueDate when validation fails.
	CreateTask(ctx context.Context, userID string, params CreateTaskParams) (*models.Task, error)

	// UpdateTask replaces every mutable field (title, description,
	// status, due date) of the task. Owner, id, creation timestamp
	// and attachments are never touched.
	//
	// It returns ErrTaskNotFound if the task doesn't exist or
	// ErrTaskForbidden if it belongs to a different user.
	UpdateTask(ctx context.Context, params UpdateTaskParams) (*models.Task, error)

	// PatchTask applies only the fields present in the request,
	// leaving the rest unchanged. Same errors as UpdateTask.
	PatchTask(ctx context.Context, params PatchTaskParams) (*models.Task, error)

	// DeleteTask removes the task and releases its attachment files.
	// File removal failures are logged and never abort the removal.
	// Same errors as UpdateTask.
	DeleteTask(ctx context.Context, params DeleteTaskParams) error

	// TasksByUserID returns the user's current tasks. The result is
	// never nil; a user without tasks gets an empty list.
	TasksByUserID(ctx context.Context, userID string) ([]models.Task, error)
}

type CreateTaskParams struct {
	Title       string
	Description string
	// Status defaults to models.StatusTodo when empty.
	Status string
	// DueDate is RFC 3339 or a bare date; empty means no due date.
	DueDate string
}

type UpdateTaskParams struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Status      string
	DueDate     string
}

type PatchTaskParams struct {
	ID          string
	UserID      string
	Title       *string
	Description *string
	Status      *string
	DueDate     *string
}

type DeleteTaskParams struct {
	ID     string
	UserID string
}
