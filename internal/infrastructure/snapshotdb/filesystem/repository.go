// Package filesystem stores configuration revisions as plain directories:
//
//	<root>/<escaped entity id>/<timestamp>/history.yaml
//	<root>/<escaped entity id>/<timestamp>/config.txt
//
// A revision directory is built under a staging name and published with a
// single rename, so readers see either the whole revision or nothing.
// Entity ids whose escaped form would exceed a directory-name limit are
// stored under a hashed name; the id itself is kept in history.yaml.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ersonp/confighistory/internal/domain/entities"
	"github.com/ersonp/confighistory/internal/infrastructure/lockmap"
)

const (
	metadataFile = "history.yaml"
	contentFile  = "config.txt"
	stagingDir   = ".staging"
	trashDir     = ".trash"

	// maxDirName is the common NAME_MAX of Linux and macOS filesystems.
	maxDirName = 255
	// hashedPrefix marks hashed entity directories. Valid entity ids never
	// contain '~', so escaped names cannot start with it.
	hashedPrefix = "~"

	// DefaultStaleAfter is how old a staging or trash entry must be before
	// EnsureSchema treats it as abandoned.
	DefaultStaleAfter = time.Hour
)

// Repository implements ports.SnapshotStore on a directory tree.
type Repository struct {
	root       string
	locks      *lockmap.Map
	staleAfter time.Duration
	now        func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithStaleAfter sets the age after which staging and trash leftovers are swept.
func WithStaleAfter(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.staleAfter = d
		}
	}
}

// NewRepository creates a repository rooted at root.
func NewRepository(root string, opts ...Option) (*Repository, error) {
	if root == "" {
		return nil, errors.New("filesystem root is required")
	}
	r := &Repository{
		root:       root,
		locks:      lockmap.New(),
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Root returns the history root directory.
func (r *Repository) Root() string {
	return r.root
}

// Close is a no-op; the repository holds no open handles.
func (r *Repository) Close() error {
	return nil
}

// EnsureSchema creates the root and its housekeeping directories, and
// sweeps staging and trash entries abandoned by an interrupted write or
// delete. Entries younger than the stale threshold may belong to another
// process sharing the root and are left alone.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cutoff := r.now().Add(-r.staleAfter)
	for _, dir := range []string{stagingDir, trashDir} {
		path := filepath.Join(r.root, dir)
		if err := os.MkdirAll(path, 0750); err != nil {
			return fmt.Errorf("%w: creating %s: %w", entities.ErrStorage, path, err)
		}
		if err := sweepStale(path, cutoff); err != nil {
			return fmt.Errorf("%w: clearing %s: %w", entities.ErrStorage, path, err)
		}
	}
	return nil
}

// sweepStale removes the entries of dir last modified before cutoff.
func sweepStale(dir string, cutoff time.Time) error {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, de := range dirEntries {
		info, err := de.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, de.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) entityDir(entityID string) string {
	return filepath.Join(r.root, escapeEntityID(entityID))
}

// escapeEntityID turns an entity id into a single directory name. A leading
// dot is escaped too so entity directories never collide with housekeeping
// ones. Names that would not fit in one path element are replaced by a hash.
func escapeEntityID(entityID string) string {
	name := url.PathEscape(entityID)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	if len(name) > maxDirName {
		sum := sha256.Sum256([]byte(entityID))
		name = hashedPrefix + hex.EncodeToString(sum[:])
	}
	return name
}

// entityIDForDir recovers the entity id stored under a directory name.
// Hashed names are resolved through the metadata of any revision inside.
func (r *Repository) entityIDForDir(name string) (string, bool, error) {
	if !strings.HasPrefix(name, hashedPrefix) {
		id, err := url.PathUnescape(name)
		return id, err == nil, nil
	}

	dirEntries, err := os.ReadDir(filepath.Join(r.root, name))
	if err != nil {
		return "", false, fmt.Errorf("%w: listing %s: %w", entities.ErrStorage, name, err)
	}
	for _, de := range dirEntries {
		if !de.IsDir() || !entities.IsValidTimestamp(de.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.root, name, de.Name(), metadataFile))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("%w: reading metadata: %w", entities.ErrStorage, err)
		}
		var rev entities.Revision
		if err := yaml.Unmarshal(data, &rev); err != nil {
			return "", false, fmt.Errorf("%w: decoding %s/%s metadata: %w", entities.ErrStorage, name, de.Name(), err)
		}
		return rev.EntityID, escapeEntityID(rev.EntityID) == name, nil
	}
	return "", false, nil
}

func (r *Repository) revisionDir(entityID, timestamp string) string {
	return filepath.Join(r.entityDir(entityID), timestamp)
}

// Put stages the revision and renames it into place.
func (r *Repository) Put(ctx context.Context, rev *entities.Revision, content string) error {
	if err := rev.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", entities.ErrStorage, err)
	}

	unlock := r.locks.Lock(rev.EntityID)
	defer unlock()

	target := r.revisionDir(rev.EntityID, rev.Timestamp)
	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("%w: revision %s@%s already exists", entities.ErrStorage, rev.EntityID, rev.Timestamp)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: checking %s: %w", entities.ErrStorage, target, err)
	}

	meta, err := yaml.Marshal(rev)
	if err != nil {
		return fmt.Errorf("marshaling revision: %w", err)
	}

	stage := filepath.Join(r.root, stagingDir, uuid.New().String())
	if err := os.MkdirAll(stage, 0750); err != nil {
		return fmt.Errorf("%w: creating staging directory: %w", entities.ErrStorage, err)
	}
	published := false
	defer func() {
		if !published {
			os.RemoveAll(stage)
		}
	}()

	if err := writeFileSync(filepath.Join(stage, contentFile), []byte(content)); err != nil {
		return fmt.Errorf("%w: writing content: %w", entities.ErrStorage, err)
	}
	if err := writeFileSync(filepath.Join(stage, metadataFile), meta); err != nil {
		return fmt.Errorf("%w: writing metadata: %w", entities.ErrStorage, err)
	}

	if err := os.MkdirAll(r.entityDir(rev.EntityID), 0750); err != nil {
		return fmt.Errorf("%w: creating entity directory: %w", entities.ErrStorage, err)
	}
	if err := os.Rename(stage, target); err != nil {
		return fmt.Errorf("%w: publishing revision: %w", entities.ErrStorage, err)
	}
	published = true
	syncDir(r.entityDir(rev.EntityID))
	return nil
}

// Get returns the content recorded for a revision.
func (r *Repository) Get(ctx context.Context, entityID, timestamp string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", entities.ErrStorage, err)
	}
	if !entities.IsValidTimestamp(timestamp) {
		return "", fmt.Errorf("%w: revision %s@%s", entities.ErrNotFound, entityID, timestamp)
	}

	data, err := os.ReadFile(filepath.Join(r.revisionDir(entityID, timestamp), contentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: revision %s@%s", entities.ErrNotFound, entityID, timestamp)
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading content: %w", entities.ErrStorage, err)
	}
	return string(data), nil
}

// Delete moves the revision directory aside, then removes it.
func (r *Repository) Delete(ctx context.Context, entityID, timestamp string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", entities.ErrStorage, err)
	}
	if !entities.IsValidTimestamp(timestamp) {
		return fmt.Errorf("%w: revision %s@%s", entities.ErrNotFound, entityID, timestamp)
	}

	unlock := r.locks.Lock(entityID)
	defer unlock()

	target := r.revisionDir(entityID, timestamp)
	trash := filepath.Join(r.root, trashDir, uuid.New().String())
	if err := os.MkdirAll(filepath.Dir(trash), 0750); err != nil {
		return fmt.Errorf("%w: creating trash directory: %w", entities.ErrStorage, err)
	}
	if err := os.Rename(target, trash); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: revision %s@%s", entities.ErrNotFound, entityID, timestamp)
		}
		return fmt.Errorf("%w: deleting revision: %w", entities.ErrStorage, err)
	}
	if err := os.RemoveAll(trash); err != nil {
		return fmt.Errorf("%w: removing %s: %w", entities.ErrStorage, trash, err)
	}

	// Only succeeds once the entity has no revisions left.
	os.Remove(r.entityDir(entityID))
	return nil
}

// List returns an entity's revisions ordered by timestamp ascending.
func (r *Repository) List(ctx context.Context, entityID string) ([]entities.Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", entities.ErrStorage, err)
	}

	dirEntries, err := os.ReadDir(r.entityDir(entityID))
	if errors.Is(err, fs.ErrNotExist) {
		return []entities.Revision{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: listing revisions: %w", entities.ErrStorage, err)
	}

	revisions := make([]entities.Revision, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.IsDir() || !entities.IsValidTimestamp(de.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.entityDir(entityID), de.Name(), metadataFile))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading metadata: %w", entities.ErrStorage, err)
		}
		var rev entities.Revision
		if err := yaml.Unmarshal(data, &rev); err != nil {
			return nil, fmt.Errorf("%w: decoding %s/%s metadata: %w", entities.ErrStorage, entityID, de.Name(), err)
		}
		revisions = append(revisions, rev)
	}

	// os.ReadDir sorts by name, and timestamp names sort chronologically.
	return revisions, nil
}

// ListEntities returns every entity id with at least one revision.
func (r *Repository) ListEntities(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", entities.ErrStorage, err)
	}

	dirEntries, err := os.ReadDir(r.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: listing entities: %w", entities.ErrStorage, err)
	}

	ids := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		id, ok, err := r.entityIDForDir(de.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		revs, err := r.List(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(revs) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syncDir flushes directory metadata after a rename. Failures are ignored;
// some platforms cannot fsync directories.
func syncDir(path string) {
	d, err := os.Open(path)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
