package realtime

import (
	"context"

	"github.com/rs/zerolog"

	"tasksync/internal/models"
)

// TaskLister is the slice of the task service the dispatcher needs.
type TaskLister interface {
	TasksByUserID(ctx context.Context, userID string) ([]models.Task, error)
}

// Dispatcher recomputes a user's task view and pushes it to every
// connection in that user's group. Pushes are full replaces: each
// device always receives the complete current list, never a diff.
type Dispatcher struct {
	logger   zerolog.Logger
	registry Registry
	tasks    TaskLister
}

func NewDispatcher(
	logger zerolog.Logger,
	registry Registry,
	tasks TaskLister,
) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		registry: registry,
		tasks:    tasks,
	}
}

// Broadcast pushes the user's current task list to all of the user's
// live connections. Callers invoke it only after the triggering
// mutation has committed, so the view read here is never older than
// that write. A send failure on one connection never affects the rest.
func (d *Dispatcher) Broadcast(ctx context.Context, userID string) {
	tasks, err := d.tasks.TasksByUserID(ctx, userID)
	if err != nil {
		d.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to compute task view for broadcast")
		return
	}

	event := Event{
		Event: EventTasksUpdated,
		Data:  tasks,
	}
	members := d.registry.MembersOf(userID)
	for _, conn := range members {
		err = conn.Send(event)
		if err != nil {
			d.logger.Warn().
				Err(err).
				Str("user_id", userID).
				Msg("failed to push task view to connection")
		}
	}
	d.logger.Debug().
		Str("user_id", userID).
		Int("connections", len(members)).
		Int("tasks", len(tasks)).
		Msg("broadcast task view")
}
