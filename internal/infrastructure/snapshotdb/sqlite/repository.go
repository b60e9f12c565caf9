// Package sqlite provides a SQLite implementation of the SnapshotStore interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ersonp/confighistory/internal/domain/entities"
	"github.com/ersonp/confighistory/internal/infrastructure/config"
)

// generateUUID returns a new UUID string.
func generateUUID() string {
	return uuid.New().String()
}

// Repository implements ports.SnapshotStore using SQLite. Each revision is
// one row holding both metadata and content, so a write is atomic.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// One connection: pragmas below are per-connection and ":memory:"
	// databases are private to the connection that created them.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Every committed revision must survive a crash.
	if _, err := db.Exec("PRAGMA synchronous = FULL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting synchronous mode: %w", err)
	}

	busyTimeout := cfg.BusyTimeoutMS
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}
	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- One row per recorded configuration revision
	CREATE TABLE IF NOT EXISTS revisions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		operation TEXT NOT NULL,
		author TEXT,
		checksum TEXT NOT NULL,
		size INTEGER NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(entity_id, timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_revisions_entity ON revisions(entity_id, timestamp);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("%w: creating schema: %w", entities.ErrStorage, err)
	}
	return nil
}

// Put records a revision. An existing (entity, timestamp) row is left
// untouched and reported as a storage conflict.
func (r *Repository) Put(ctx context.Context, rev *entities.Revision, content string) error {
	if err := rev.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO revisions (id, entity_id, timestamp, operation, author, checksum, size, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, timestamp) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		generateUUID(),
		rev.EntityID,
		rev.Timestamp,
		string(rev.Operation),
		rev.Author,
		rev.Checksum,
		rev.Size,
		content,
	)
	if err != nil {
		return fmt.Errorf("%w: saving revision: %w", entities.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking saved revision: %w", entities.ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: revision %s@%s already exists", entities.ErrStorage, rev.EntityID, rev.Timestamp)
	}
	return nil
}

// Get returns the content recorded for a revision.
func (r *Repository) Get(ctx context.Context, entityID, timestamp string) (string, error) {
	query := `SELECT content FROM revisions WHERE entity_id = ? AND timestamp = ?`

	var content string
	err := r.db.QueryRowContext(ctx, query, entityID, timestamp).Scan(&content)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: revision %s@%s", entities.ErrNotFound, entityID, timestamp)
	}
	if err != nil {
		return "", fmt.Errorf("%w: loading revision content: %w", entities.ErrStorage, err)
	}
	return content, nil
}

// Delete removes a revision and its content.
func (r *Repository) Delete(ctx context.Context, entityID, timestamp string) error {
	query := `DELETE FROM revisions WHERE entity_id = ? AND timestamp = ?`
	res, err := r.db.ExecContext(ctx, query, entityID, timestamp)
	if err != nil {
		return fmt.Errorf("%w: deleting revision: %w", entities.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking deleted revision: %w", entities.ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: revision %s@%s", entities.ErrNotFound, entityID, timestamp)
	}
	return nil
}

// List returns an entity's revisions ordered by timestamp ascending.
func (r *Repository) List(ctx context.Context, entityID string) ([]entities.Revision, error) {
	query := `
		SELECT entity_id, timestamp, operation, author, checksum, size
		FROM revisions
		WHERE entity_id = ?
		ORDER BY timestamp ASC
	`
	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying revisions: %w", entities.ErrStorage, err)
	}
	defer rows.Close()

	revisions := make([]entities.Revision, 0, 16)
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, *rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating revisions: %w", entities.ErrStorage, err)
	}
	return revisions, nil
}

// ListEntities returns every entity id with at least one revision.
func (r *Repository) ListEntities(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT entity_id FROM revisions ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying entities: %w", entities.ErrStorage, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scanning entity id: %w", entities.ErrStorage, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating entities: %w", entities.ErrStorage, err)
	}
	return ids, nil
}

// scanRevision is a helper to scan a revision metadata row.
func scanRevision(rows *sql.Rows) (*entities.Revision, error) {
	var rev entities.Revision
	var operation string
	var author sql.NullString

	err := rows.Scan(
		&rev.EntityID,
		&rev.Timestamp,
		&operation,
		&author,
		&rev.Checksum,
		&rev.Size,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: scanning revision: %w", entities.ErrStorage, err)
	}

	rev.Operation = entities.OperationKind(operation)
	rev.Author = author.String
	return &rev, nil
}
