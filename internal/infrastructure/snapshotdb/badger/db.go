// Package badger provides a BadgerDB implementation of the SnapshotStore interface.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Options configures how the underlying database is opened.
type Options struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in memory. Useful for testing.
	InMemory bool
	// SyncWrites makes every commit durable before it returns.
	SyncWrites bool
	// GCInterval is how often to run value log garbage collection; 0 disables it.
	GCInterval time.Duration
	// GCDiscardRatio is the minimum discardable fraction before a value log file is rewritten.
	GCDiscardRatio float64
	// Logger receives BadgerDB's internal log output.
	Logger zerolog.Logger
}

// DefaultOptions returns durable on-disk options for path.
func DefaultOptions(path string) Options {
	return Options{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
		Logger:         zerolog.Nop(),
	}
}

// InMemoryOptions returns options for a throwaway in-memory database.
func InMemoryOptions() Options {
	return Options{
		InMemory: true,
		Logger:   zerolog.Nop(),
	}
}

// badgerLogger adapts zerolog to badger.Logger.
type badgerLogger struct {
	log zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// DB wraps a Badger database with transaction helpers and background GC.
type DB struct {
	*badger.DB
	gc       *gcRunner
	inMemory bool
}

// OpenDB opens the database described by opts and starts value log GC if configured.
func OpenDB(opts Options) (*DB, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("badger path is required for a persistent database")
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0750); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", opts.Path, err)
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.
		WithSyncWrites(opts.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{log: opts.Logger})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}

	wrapped := &DB{DB: db, inMemory: opts.InMemory}
	if opts.GCInterval > 0 && !opts.InMemory {
		wrapped.gc = newGCRunner(db, opts.GCInterval, opts.GCDiscardRatio, opts.Logger)
		wrapped.gc.start()
	}
	return wrapped, nil
}

// Close stops GC and closes the database.
func (d *DB) Close() error {
	if d.gc != nil {
		d.gc.stop()
	}
	return d.DB.Close()
}

// WithTxn runs fn in a read-write transaction and commits it.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}

// gcRunner periodically rewrites value log files with enough garbage.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	log      zerolog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newGCRunner(db *badger.DB, interval time.Duration, ratio float64, log zerolog.Logger) *gcRunner {
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	return &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (r *gcRunner) start() {
	go r.run()
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runOnce()
		}
	}
}

func (r *gcRunner) runOnce() {
	// ErrNoRewrite means nothing was worth collecting.
	err := r.db.RunValueLogGC(r.ratio)
	switch {
	case err == nil:
		r.log.Debug().Msg("badger value log GC completed")
	case !errors.Is(err, badger.ErrNoRewrite):
		r.log.Warn().Err(err).Msg("badger value log GC failed")
	}
}
