package app

import (
	"os"
	"path/filepath"

	"tasksync/internal/config"
	"tasksync/internal/storage"
)

var globalStore *storage.FileStore

func MustOpenStore() {
	cfg := config.Global().Storage

	for _, dir := range []string{cfg.DataDir, cfg.UploadsDir} {
		err := os.MkdirAll(dir, 0o755)
		if err != nil {
			globalLogger.Error().
				Err(err).
				Str("dir", dir).
				Msg("failed to create storage directory")
			panic(err)
		}
	}

	path := filepath.Join(cfg.DataDir, cfg.DatabaseFile)
	globalStore = storage.NewFileStore(globalLogger, path)

	// Fail at startup, not on the first mutation, if the existing
	// database file is unreadable.
	_, err := globalStore.LoadAll()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Str("path", path).
			Msg("failed to open task store")
		panic(err)
	}
	globalLogger.Info().
		Str("path", globalStore.Path()).
		Msg("opened task store")
}
