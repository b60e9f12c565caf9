package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/ersonp/confighistory/internal/domain/entities"
	"github.com/ersonp/confighistory/internal/infrastructure/config"
)

// schemaVersion is bumped whenever the key layout changes.
const schemaVersion = "1"

var (
	schemaKey  = []byte("meta\x00schema")
	revPrefix  = []byte("rev\x00")
	snapPrefix = []byte("snap\x00")
)

// revKey is "rev\x00<entity>\x00<timestamp>". Entity ids never contain NUL,
// so a prefix scan over "rev\x00<entity>\x00" yields one entity in
// timestamp order.
func revKey(entityID, timestamp string) []byte {
	return append(entityPrefix(revPrefix, entityID), timestamp...)
}

func snapKey(entityID, timestamp string) []byte {
	return append(entityPrefix(snapPrefix, entityID), timestamp...)
}

func entityPrefix(prefix []byte, entityID string) []byte {
	key := make([]byte, 0, len(prefix)+len(entityID)+1+len(entities.TimestampLayout))
	key = append(key, prefix...)
	key = append(key, entityID...)
	return append(key, 0)
}

// Repository implements ports.SnapshotStore using BadgerDB. A revision's
// metadata and content are written in one transaction.
type Repository struct {
	db *DB
}

// NewRepository opens a Badger-backed repository.
func NewRepository(cfg config.BadgerConfig, log zerolog.Logger) (*Repository, error) {
	opts := DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = InMemoryOptions()
	}
	opts.GCInterval = time.Duration(cfg.GCIntervalMinutes) * time.Minute
	opts.Logger = log

	db, err := OpenDB(opts)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// EnsureSchema records the key layout version, refusing to open a database
// written with a different layout.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	err := r.db.WithTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(schemaKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return txn.Set(schemaKey, []byte(schemaVersion))
		}
		if err != nil {
			return err
		}
		existing, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(existing) != schemaVersion {
			return fmt.Errorf("unsupported schema version %q", existing)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: ensuring schema: %w", entities.ErrStorage, err)
	}
	return nil
}

// Put records a revision. An existing (entity, timestamp) pair is left
// untouched and reported as a storage conflict.
func (r *Repository) Put(ctx context.Context, rev *entities.Revision, content string) error {
	if err := rev.Validate(); err != nil {
		return err
	}
	meta, err := json.Marshal(rev)
	if err != nil {
		return fmt.Errorf("marshaling revision: %w", err)
	}

	errExists := errors.New("revision already exists")
	err = r.db.WithTxn(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(revKey(rev.EntityID, rev.Timestamp))
		if err == nil {
			return errExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(revKey(rev.EntityID, rev.Timestamp), meta); err != nil {
			return err
		}
		return txn.Set(snapKey(rev.EntityID, rev.Timestamp), []byte(content))
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errExists), errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%w: revision %s@%s already exists", entities.ErrStorage, rev.EntityID, rev.Timestamp)
	default:
		return fmt.Errorf("%w: saving revision: %w", entities.ErrStorage, err)
	}
}

// Get returns the content recorded for a revision.
func (r *Repository) Get(ctx context.Context, entityID, timestamp string) (string, error) {
	var content []byte
	err := r.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(snapKey(entityID, timestamp))
		if err != nil {
			return err
		}
		content, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: revision %s@%s", entities.ErrNotFound, entityID, timestamp)
	}
	if err != nil {
		return "", fmt.Errorf("%w: loading revision content: %w", entities.ErrStorage, err)
	}
	return string(content), nil
}

// Delete removes a revision and its content.
func (r *Repository) Delete(ctx context.Context, entityID, timestamp string) error {
	err := r.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(revKey(entityID, timestamp)); err != nil {
			return err
		}
		if err := txn.Delete(revKey(entityID, timestamp)); err != nil {
			return err
		}
		return txn.Delete(snapKey(entityID, timestamp))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: revision %s@%s", entities.ErrNotFound, entityID, timestamp)
	}
	if err != nil {
		return fmt.Errorf("%w: deleting revision: %w", entities.ErrStorage, err)
	}
	return nil
}

// List returns an entity's revisions ordered by timestamp ascending.
func (r *Repository) List(ctx context.Context, entityID string) ([]entities.Revision, error) {
	prefix := entityPrefix(revPrefix, entityID)
	revisions := make([]entities.Revision, 0, 16)

	err := r.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 64})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rev entities.Revision
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rev)
			})
			if err != nil {
				return fmt.Errorf("decoding %q: %w", it.Item().Key(), err)
			}
			revisions = append(revisions, rev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing revisions: %w", entities.ErrStorage, err)
	}
	return revisions, nil
}

// ListEntities returns every entity id with at least one revision.
func (r *Repository) ListEntities(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: revPrefix})
		defer it.Close()

		for it.Seek(revPrefix); it.ValidForPrefix(revPrefix); it.Next() {
			rest := it.Item().Key()[len(revPrefix):]
			sep := bytes.IndexByte(rest, 0)
			if sep < 0 {
				continue
			}
			id := string(rest[:sep])
			if len(ids) == 0 || ids[len(ids)-1] != id {
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing entities: %w", entities.ErrStorage, err)
	}
	return ids, nil
}
