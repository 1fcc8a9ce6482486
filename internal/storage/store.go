package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"tasksync/internal/models"
)

// ErrStorageFailure marks an unreadable or unwritable persistence
// medium. A missing database file is not a failure (the store starts
// empty); a corrupt or unreadable one is.
var ErrStorageFailure = errors.New("storage failure")

// Database is the whole durable unit: everything is loaded and written
// back as a single JSON document. Users are owned by the credential
// subsystem and carried through untouched so task writes never clobber
// them.
type Database struct {
	Tasks []models.Task     `json:"tasks"`
	Users []json.RawMessage `json:"users"`
}

// FileStore persists a Database as one JSON file. All mutations go
// through Update, which holds a single writer lock around the whole
// load-modify-save cycle so two mutations can never interleave their
// halves and lose an update.
type FileStore struct {
	logger zerolog.Logger
	path   string
	mu     sync.Mutex
}

func NewFileStore(logger zerolog.Logger, path string) *FileStore {
	return &FileStore{
		logger: logger,
		path:   path,
	}
}

// LoadAll returns the current database contents.
func (s *FileStore) LoadAll() (*Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// SaveAll replaces the database contents wholesale.
func (s *FileStore) SaveAll(db *Database) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(db)
}

// Update runs fn on the freshly loaded database and persists the
// result, all under the store's writer lock. If fn returns an error
// nothing is written and the error is returned unchanged, so callers
// can surface their own NotFound/Forbidden errors through it.
func (s *FileStore) Update(fn func(db *Database) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.load()
	if err != nil {
		return err
	}
	err = fn(db)
	if err != nil {
		return err
	}
	return s.save(db)
}

// TasksOf returns the tasks owned by the given user. The result is
// never nil so an empty view still serializes as a JSON array.
func (s *FileStore) TasksOf(userID string) ([]models.Task, error) {
	db, err := s.LoadAll()
	if err != nil {
		return nil, err
	}

	tasks := make([]models.Task, 0, len(db.Tasks))
	for _, task := range db.Tasks {
		if task.UserID == userID {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (s *FileStore) load() (*Database, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().
				Str("path", s.path).
				Msg("database file does not exist yet")
			return &Database{}, nil
		}

		s.logger.Error().
			Err(err).
			Str("path", s.path).
			Msg("failed to read database file")
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorageFailure, s.path, err)
	}

	db := new(Database)
	err = json.Unmarshal(data, db)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("path", s.path).
			Msg("failed to decode database file")
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStorageFailure, s.path, err)
	}
	return db, nil
}

func (s *FileStore) save(db *Database) error {
	if db.Tasks == nil {
		db.Tasks = []models.Task{}
	}
	if db.Users == nil {
		db.Users = []json.RawMessage{}
	}

	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to encode database")
		return fmt.Errorf("%w: encode: %v", ErrStorageFailure, err)
	}

	// Write-then-rename keeps the previous contents intact if the
	// process dies mid-write.
	tmp := s.path + ".tmp"
	err = os.WriteFile(tmp, data, 0o644)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("path", tmp).
			Msg("failed to write database file")
		return fmt.Errorf("%w: write %s: %v", ErrStorageFailure, tmp, err)
	}

	err = os.Rename(tmp, s.path)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("path", s.path).
			Msg("failed to replace database file")
		return fmt.Errorf("%w: rename %s: %v", ErrStorageFailure, s.path, err)
	}

	s.logger.Debug().
		Str("path", s.path).
		Int("tasks", len(db.Tasks)).
		Msg("saved database")
	return nil
}

// Path returns the location of the backing file, mainly for logging.
func (s *FileStore) Path() string {
	return filepath.Clean(s.path)
}
