package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/models"
	"tasksync/internal/storage"
	"tasksync/internal/uploads"
)

type serviceFixture struct {
	service    TaskService
	store      *storage.FileStore
	uploadsDir string
}

func setupTaskService(t *testing.T) serviceFixture {
	t.Helper()
	dir := t.TempDir()
	uploadsDir := filepath.Join(dir, "uploads")
	require.NoError(t, os.MkdirAll(uploadsDir, 0o755))

	store := storage.NewFileStore(zerolog.Nop(), filepath.Join(dir, "db.json"))
	cleaner := uploads.NewDirCleaner(zerolog.Nop(), uploadsDir)
	return serviceFixture{
		service:    NewTaskService(zerolog.Nop(), store, cleaner),
		store:      store,
		uploadsDir: uploadsDir,
	}
}

func TestTaskService_CreateTask(t *testing.T) {
	tests := []struct {
		name    string
		params  CreateTaskParams
		wantErr error
		check   func(t *testing.T, task *models.Task)
	}{
		{
			name:   "should create task with defaults",
			params: CreateTaskParams{Title: "Buy milk"},
			check: func(t *testing.T, task *models.Task) {
				assert.Equal(t, "Buy milk", task.Title)
				assert.Equal(t, models.StatusTodo, task.Status)
				assert.Nil(t, task.DueDate)
				assert.NotNil(t, task.Attachments)
				assert.Empty(t, task.Attachments)
			},
		},
		{
			name: "should create task with explicit fields",
			params: CreateTaskParams{
				Title:       "Write report",
				Description: "quarterly numbers",
				Status:      models.StatusInProgress,
				DueDate:     "2026-09-15",
			},
			check: func(t *testing.T, task *models.Task) {
				assert.Equal(t, models.StatusInProgress, task.Status)
				require.NotNil(t, task.DueDate)
				assert.Equal(t, 2026, task.DueDate.Year())
			},
		},
		{
			name:   "should accept RFC 3339 due date",
			params: CreateTaskParams{Title: "x", DueDate: "2026-09-15T10:00:00Z"},
			check: func(t *testing.T, task *models.Task) {
				require.NotNil(t, task.DueDate)
			},
		},
		{
			name:    "should reject empty title",
			params:  CreateTaskParams{Title: ""},
			wantErr: ErrEmptyTaskTitle,
		},
		{
			name:    "should reject whitespace-only title",
			params:  CreateTaskParams{Title: "   "},
			wantErr: ErrEmptyTaskTitle,
		},
		{
			name:    "should reject invalid status",
			params:  CreateTaskParams{Title: "x", Status: "someday"},
			wantErr: ErrInvalidTaskStatus,
		},
		{
			name:    "should reject malformed due date",
			params:  CreateTaskParams{Title: "x", DueDate: "next tuesday"},
			wantErr: ErrInvalidDueDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := setupTaskService(t)

			task, err := fx.service.CreateTask(context.Background(), "alice", tt.params)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsValidationError(err))
				assert.Nil(t, task)

				tasks, loadErr := fx.store.TasksOf("alice")
				require.NoError(t, loadErr)
				assert.Empty(t, tasks)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, task)
			assert.NotEmpty(t, task.ID)
			assert.Equal(t, "alice", task.UserID)
			assert.True(t, task.UpdatedAt.Equal(task.CreatedAt))
			assert.True(t, models.ValidStatus(task.Status))
			if tt.check != nil {
				tt.check(t, task)
			}

			tasks, err := fx.store.TasksOf("alice")
			require.NoError(t, err)
			require.Len(t, tasks, 1)
			assert.Equal(t, task.ID, tasks[0].ID)
		})
	}
}

func TestTaskService_CreateTask_UniqueIDsUnderConcurrency(t *testing.T) {
	fx := setupTaskService(t)
	const creators = 32

	var wg sync.WaitGroup
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.service.CreateTask(context.Background(), "alice",
				CreateTaskParams{Title: "concurrent"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	tasks, err := fx.store.TasksOf("alice")
	require.NoError(t, err)
	require.Len(t, tasks, creators)

	seen := make(map[string]bool, creators)
	for _, task := range tasks {
		assert.False(t, seen[task.ID], "duplicate task id %s", task.ID)
		seen[task.ID] = true
	}
}

func TestTaskService_UpdateTask(t *testing.T) {
	fx := setupTaskService(t)
	created, err := fx.service.CreateTask(context.Background(), "alice",
		CreateTaskParams{Title: "Buy milk", Description: "2 liters"})
	require.NoError(t, err)

	updated, err := fx.service.UpdateTask(context.Background(), UpdateTaskParams{
		ID:     created.ID,
		UserID: "alice",
		Title:  "Buy oat milk",
		Status: models.StatusDone,
	})

	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "alice", updated.UserID)
	assert.Equal(t, "Buy oat milk", updated.Title)
	assert.Equal(t, models.StatusDone, updated.Status)
	// Full replace: the description was not supplied, so it is gone.
	assert.Empty(t, updated.Description)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))
}

func TestTaskService_PatchTask(t *testing.T) {
	strPtr := func(s string) *string { return &s }

	tests := []struct {
		name   string
		params PatchTaskParams
		check  func(t *testing.T, task *models.Task)
	}{
		{
			name:   "should patch only the status",
			params: PatchTaskParams{Status: strPtr(models.StatusDone)},
			check: func(t *testing.T, task *models.Task) {
				assert.Equal(t, models.StatusDone, task.Status)
				assert.Equal(t, "Buy milk", task.Title)
				assert.Equal(t, "2 liters", task.Description)
			},
		},
		{
			name:   "should patch only the title",
			params: PatchTaskParams{Title: strPtr("Buy bread")},
			check: func(t *testing.T, task *models.Task) {
				assert.Equal(t, "Buy bread", task.Title)
				assert.Equal(t, models.StatusTodo, task.Status)
			},
		},
		{
			name: "should clear the due date with an empty string",
			params: PatchTaskParams{
				DueDate: strPtr(""),
			},
			check: func(t *testing.T, task *models.Task) {
				assert.Nil(t, task.DueDate)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := setupTaskService(t)
			created, err := fx.service.CreateTask(context.Background(), "alice",
				CreateTaskParams{
					Title:       "Buy milk",
					Description: "2 liters",
					DueDate:     "2026-09-15",
				})
			require.NoError(t, err)

			params := tt.params
			params.ID = created.ID
			params.UserID = "alice"
			patched, err := fx.service.PatchTask(context.Background(), params)

			require.NoError(t, err)
			assert.Equal(t, created.ID, patched.ID)
			assert.False(t, patched.UpdatedAt.Before(patched.CreatedAt))
			tt.check(t, patched)
		})
	}
}

func TestTaskService_OwnershipChecks(t *testing.T) {
	strPtr := func(s string) *string { return &s }

	tests := []struct {
		name    string
		mutate  func(fx serviceFixture, taskID, userID string) error
		taskID  func(createdID string) string
		userID  string
		wantErr error
	}{
		{
			name: "update of a missing task returns not found",
			mutate: func(fx serviceFixture, taskID, userID string) error {
				_, err := fx.service.UpdateTask(context.Background(), UpdateTaskParams{
					ID: taskID, UserID: userID, Title: "x", Status: models.StatusTodo,
				})
				return err
			},
			taskID:  func(string) string { return "no-such-task" },
			userID:  "alice",
			wantErr: ErrTaskNotFound,
		},
		{
			name: "update of a foreign task returns forbidden",
			mutate: func(fx serviceFixture, taskID, userID string) error {
				_, err := fx.service.UpdateTask(context.Background(), UpdateTaskParams{
					ID: taskID, UserID: userID, Title: "stolen", Status: models.StatusTodo,
				})
				return err
			},
			taskID:  func(id string) string { return id },
			userID:  "mallory",
			wantErr: ErrTaskForbidden,
		},
		{
			name: "patch of a foreign task returns forbidden",
			mutate: func(fx serviceFixture, taskID, userID string) error {
				_, err := fx.service.PatchTask(context.Background(), PatchTaskParams{
					ID: taskID, UserID: userID, Title: strPtr("stolen"),
				})
				return err
			},
			taskID:  func(id string) string { return id },
			userID:  "mallory",
			wantErr: ErrTaskForbidden,
		},
		{
			name: "delete of a foreign task returns forbidden",
			mutate: func(fx serviceFixture, taskID, userID string) error {
				return fx.service.DeleteTask(context.Background(), DeleteTaskParams{
					ID: taskID, UserID: userID,
				})
			},
			taskID:  func(id string) string { return id },
			userID:  "mallory",
			wantErr: ErrTaskForbidden,
		},
		{
			name: "delete of a missing task returns not found",
			mutate: func(fx serviceFixture, taskID, userID string) error {
				return fx.service.DeleteTask(context.Background(), DeleteTaskParams{
					ID: taskID, UserID: userID,
				})
			},
			taskID:  func(string) string { return "no-such-task" },
			userID:  "alice",
			wantErr: ErrTaskNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := setupTaskService(t)
			created, err := fx.service.CreateTask(context.Background(), "alice",
				CreateTaskParams{Title: "Buy milk"})
			require.NoError(t, err)

			err = tt.mutate(fx, tt.taskID(created.ID), tt.userID)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			// A rejected mutation leaves the store untouched.
			tasks, loadErr := fx.store.TasksOf("alice")
			require.NoError(t, loadErr)
			require.Len(t, tasks, 1)
			assert.Equal(t, "Buy milk", tasks[0].Title)
			assert.True(t, tasks[0].UpdatedAt.Equal(created.UpdatedAt))
		})
	}
}

func TestTaskService_DeleteTask_Idempotence(t *testing.T) {
	fx := setupTaskService(t)
	created, err := fx.service.CreateTask(context.Background(), "alice",
		CreateTaskParams{Title: "Buy milk"})
	require.NoError(t, err)

	params := DeleteTaskParams{ID: created.ID, UserID: "alice"}

	require.NoError(t, fx.service.DeleteTask(context.Background(), params))

	err = fx.service.DeleteTask(context.Background(), params)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	tasks, err := fx.store.TasksOf("alice")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskService_DeleteTask_ReleasesAttachmentFiles(t *testing.T) {
	fx := setupTaskService(t)

	stored := filepath.Join(fx.uploadsDir, "169000-report.pdf")
	require.NoError(t, os.WriteFile(stored, []byte("pdf"), 0o644))

	now := time.Now().UTC()
	task := models.Task{
		ID:        "t1",
		UserID:    "alice",
		Title:     "With files",
		Status:    models.StatusTodo,
		CreatedAt: now,
		UpdatedAt: now,
		Attachments: []models.Attachment{
			{
				ID:           "a1",
				TaskID:       "t1",
				Filename:     "169000-report.pdf",
				OriginalName: "report.pdf",
				Path:         "/uploads/169000-report.pdf",
				ContentType:  "application/pdf",
				UploadedAt:   now,
			},
			// A record whose file is already gone must not abort
			// anything.
			{
				ID:       "a2",
				TaskID:   "t1",
				Filename: "169001-missing.png",
			},
		},
	}
	require.NoError(t, fx.store.Update(func(db *storage.Database) error {
		db.Tasks = append(db.Tasks, task)
		return nil
	}))

	err := fx.service.DeleteTask(context.Background(),
		DeleteTaskParams{ID: "t1", UserID: "alice"})

	require.NoError(t, err)
	assert.NoFileExists(t, stored)

	tasks, err := fx.store.TasksOf("alice")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskService_ConcurrentPatches_NoLostUpdate(t *testing.T) {
	fx := setupTaskService(t)
	created, err := fx.service.CreateTask(context.Background(), "alice",
		CreateTaskParams{Title: "Buy milk"})
	require.NoError(t, err)

	title := "Buy oat milk"
	status := models.StatusDone

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, patchErr := fx.service.PatchTask(context.Background(), PatchTaskParams{
			ID: created.ID, UserID: "alice", Title: &title,
		})
		assert.NoError(t, patchErr)
	}()
	go func() {
		defer wg.Done()
		_, patchErr := fx.service.PatchTask(context.Background(), PatchTaskParams{
			ID: created.ID, UserID: "alice", Status: &status,
		})
		assert.NoError(t, patchErr)
	}()
	wg.Wait()

	// Serialized application of both patches in either order yields
	// the same final state; a lost update would drop one field.
	tasks, err := fx.store.TasksOf("alice")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, title, tasks[0].Title)
	assert.Equal(t, status, tasks[0].Status)
}

func TestTaskService_TasksByUserID_EmptyIsNotNil(t *testing.T) {
	fx := setupTaskService(t)

	tasks, err := fx.service.TasksByUserID(context.Background(), "nobody")

	require.NoError(t, err)
	require.NotNil(t, tasks)
	assert.Empty(t, tasks)
}
