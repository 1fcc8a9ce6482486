package uploads

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"tasksync/internal/models"
)

// Cleaner releases the stored files referenced by a task's
// attachments. It is called after the task record itself is already
// gone; removal failures are logged and swallowed so a stray file can
// never resurrect a deleted task.
type Cleaner interface {
	RemoveTaskFiles(task *models.Task)
}

type dirCleaner struct {
	logger zerolog.Logger
	dir    string
}

// NewDirCleaner builds a Cleaner over a flat uploads directory, the
// layout the upload subsystem writes into.
func NewDirCleaner(logger zerolog.Logger, dir string) Cleaner {
	return &dirCleaner{
		logger: logger,
		dir:    dir,
	}
}

func (c *dirCleaner) RemoveTaskFiles(task *models.Task) {
	for _, att := range task.Attachments {
		path := filepath.Join(c.dir, filepath.Base(att.Filename))
		err := os.Remove(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			c.logger.Error().
				Err(err).
				Str("task_id", task.ID).
				Str("path", path).
				Msg("failed to remove attachment file")
			continue
		}
		c.logger.Debug().
			Str("task_id", task.ID).
			Str("path", path).
			Msg("removed attachment file")
	}
}
