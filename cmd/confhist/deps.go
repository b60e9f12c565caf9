package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ersonp/confighistory/internal/application/handlers"
	"github.com/ersonp/confighistory/internal/domain/ports"
	"github.com/ersonp/confighistory/internal/domain/services"
	"github.com/ersonp/confighistory/internal/infrastructure/config"
	"github.com/ersonp/confighistory/internal/infrastructure/logging"
	"github.com/ersonp/confighistory/internal/infrastructure/metrics"
	"github.com/ersonp/confighistory/internal/infrastructure/snapshotdb"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config  *config.Config
	Logger  zerolog.Logger
	History *handlers.HistoryHandler
	Import  *handlers.ImportHandler
}

// basePath returns the absolute directory holding .confhist.
func basePath() (string, error) {
	dir, err := filepath.Abs(globalDir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	return dir, nil
}

// newLogger builds the logger from config, letting --log-level win.
func newLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level := cfg.Level
	if globalLogLevel != "" {
		level = globalLogLevel
	}
	return logging.New(logging.Config{Level: level, Pretty: cfg.Pretty, Output: out})
}

// openStore opens the configured backend. It is the StoreOpener used by init.
func openStore(log zerolog.Logger) handlers.StoreOpener {
	return func(ctx context.Context, base string, cfg *config.Config) (ports.SnapshotStore, error) {
		return snapshotdb.Open(ctx, base, cfg.Storage, logging.Component(log, "store"))
	}
}

// withDeps loads config and builds dependencies, then calls the provided function.
// It handles cleanup automatically and exports metrics when configured.
func withDeps(ctx context.Context, logOut io.Writer, fn func(*Deps) error) (err error) {
	base, err := basePath()
	if err != nil {
		return err
	}

	cfg, err := config.Load(base)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := newLogger(cfg.Logging, logOut)

	exclude, err := cfg.History.Exclude()
	if err != nil {
		return err
	}

	store, err := openStore(log)(ctx, base, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing store: %w", cerr)
		}
	}()

	m := metrics.NewMetrics()
	instrumented := metrics.NewInstrumentedStore(store, m)

	historyService := services.NewHistoryService(instrumented, services.HistoryOptions{
		SkipDuplicates: cfg.History.SkipDuplicates,
		MaxEntries:     cfg.History.MaxEntries,
		MaxAge:         cfg.History.MaxAge(),
		Exclude:        exclude,
	}, logging.Component(log, "history"))
	compareService := services.NewCompareService(instrumented)

	deps := &Deps{
		Config: cfg,
		Logger: log,
		History: handlers.NewHistoryHandler(historyService, compareService,
			handlers.WithReadPermission(ports.AllowAll),
			handlers.WithObserver(m),
		),
		Import: handlers.NewImportHandler(services.NewImportService(historyService, nil), m),
	}

	err = fn(deps)

	if cfg.Metrics.Textfile != "" {
		path := config.ResolvePath(base, cfg.Metrics.Textfile)
		if werr := m.WriteTextfile(path); werr != nil {
			log.Warn().Err(werr).Str("path", path).Msg("metrics export failed")
		}
	}
	return err
}
