// Package snapshotdb selects and opens the configured snapshot store.
package snapshotdb

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ersonp/confighistory/internal/domain/ports"
	"github.com/ersonp/confighistory/internal/infrastructure/config"
	"github.com/ersonp/confighistory/internal/infrastructure/logging"
	"github.com/ersonp/confighistory/internal/infrastructure/snapshotdb/badger"
	"github.com/ersonp/confighistory/internal/infrastructure/snapshotdb/filesystem"
	"github.com/ersonp/confighistory/internal/infrastructure/snapshotdb/sqlite"
)

// Open opens the backend named by cfg.Backend with paths resolved against
// basePath, and makes sure its schema exists.
func Open(ctx context.Context, basePath string, cfg config.StorageConfig, log zerolog.Logger) (ports.SnapshotStore, error) {
	var (
		store ports.SnapshotStore
		err   error
	)

	switch cfg.Backend {
	case config.BackendSQLite:
		sc := cfg.SQLite
		sc.Path = config.ResolvePath(basePath, sc.Path)
		store, err = sqlite.NewRepository(sc)
	case config.BackendBadger:
		bc := cfg.Badger
		bc.Path = config.ResolvePath(basePath, bc.Path)
		store, err = badger.NewRepository(bc, logging.Component(log, "badger"))
	case config.BackendFilesystem:
		store, err = filesystem.NewRepository(config.ResolvePath(basePath, cfg.FilesystemPath))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Backend, err)
	}

	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("preparing %s store: %w", cfg.Backend, err)
	}
	return store, nil
}
