package ports

import (
	"context"

	"github.com/ersonp/confighistory/internal/domain/entities"
)

// SnapshotStore defines durable storage for configuration revisions.
// Each (entity, timestamp) pair holds one revision's metadata and its raw
// content; both become visible together.
type SnapshotStore interface {
	// EnsureSchema prepares the underlying medium if it isn't already.
	EnsureSchema(ctx context.Context) error

	// Close releases the underlying medium.
	Close() error

	// Put records a revision and its content.
	// Returns an error wrapping entities.ErrStorage if the entity already
	// has a revision at that timestamp; the existing revision is untouched.
	Put(ctx context.Context, rev *entities.Revision, content string) error

	// Get returns the raw content recorded for a revision.
	// Returns an error wrapping entities.ErrNotFound if it does not exist.
	Get(ctx context.Context, entityID, timestamp string) (string, error)

	// Delete removes a revision and its content.
	// Returns an error wrapping entities.ErrNotFound if it does not exist.
	Delete(ctx context.Context, entityID, timestamp string) error

	// List returns an entity's revisions in ascending timestamp order.
	// An entity without history yields an empty slice, not an error.
	List(ctx context.Context, entityID string) ([]entities.Revision, error)

	// ListEntities returns every entity id that has at least one revision, sorted.
	ListEntities(ctx context.Context) ([]string, error)
}

// ReadPermission reports whether the caller may read an entity's history.
// The host decides the policy; the core only consults it.
type ReadPermission func(ctx context.Context, entityID string) bool

// AllowAll is a ReadPermission that grants every read.
func AllowAll(_ context.Context, _ string) bool { return true }
