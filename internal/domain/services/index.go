package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ersonp/confighistory/internal/domain/entities"
	"github.com/ersonp/confighistory/internal/domain/ports"
)

// HistoryIndex answers ordering questions about an entity's revisions.
// It reads the store on every call and caches nothing, so it always reflects
// exactly the revisions present.
type HistoryIndex struct {
	store ports.SnapshotStore
}

// NewHistoryIndex creates a new HistoryIndex.
func NewHistoryIndex(store ports.SnapshotStore) *HistoryIndex {
	return &HistoryIndex{store: store}
}

// List returns the entity's revisions in ascending timestamp order.
func (x *HistoryIndex) List(ctx context.Context, entityID string) ([]entities.Revision, error) {
	if err := entities.ValidateEntityID(entityID); err != nil {
		return nil, err
	}
	revs, err := x.store.List(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("listing revisions: %w", err)
	}
	return revs, nil
}

// Resolve returns the revision at timestamp. It fails with ErrValidation for
// a malformed timestamp and ErrNotFound when no such revision exists.
func (x *HistoryIndex) Resolve(ctx context.Context, entityID, timestamp string) (*entities.Revision, error) {
	revs, i, err := x.locate(ctx, entityID, timestamp)
	if err != nil {
		return nil, err
	}
	rev := revs[i]
	return &rev, nil
}

// Previous returns the revision immediately before timestamp, or nil if
// timestamp is the first one.
func (x *HistoryIndex) Previous(ctx context.Context, entityID, timestamp string) (*entities.Revision, error) {
	revs, i, err := x.locate(ctx, entityID, timestamp)
	if err != nil {
		return nil, err
	}
	if i == 0 {
		return nil, nil
	}
	rev := revs[i-1]
	return &rev, nil
}

// Next returns the revision immediately after timestamp, or nil if
// timestamp is the latest one.
func (x *HistoryIndex) Next(ctx context.Context, entityID, timestamp string) (*entities.Revision, error) {
	revs, i, err := x.locate(ctx, entityID, timestamp)
	if err != nil {
		return nil, err
	}
	if i == len(revs)-1 {
		return nil, nil
	}
	rev := revs[i+1]
	return &rev, nil
}

// ValidateTimestamp reports whether timestamp is well formed and names an
// existing revision of the entity. It never fails on malformed input.
func (x *HistoryIndex) ValidateTimestamp(ctx context.Context, entityID, timestamp string) bool {
	if !entities.IsValidTimestamp(timestamp) {
		return false
	}
	_, _, err := x.locate(ctx, entityID, timestamp)
	return err == nil
}

// Latest returns the newest revision, or nil if the entity has no history.
func (x *HistoryIndex) Latest(ctx context.Context, entityID string) (*entities.Revision, error) {
	revs, err := x.List(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		return nil, nil
	}
	rev := revs[len(revs)-1]
	return &rev, nil
}

// AsOf returns the revision that was current at t, or nil if the entity had
// no history yet.
func (x *HistoryIndex) AsOf(ctx context.Context, entityID string, t time.Time) (*entities.Revision, error) {
	revs, err := x.List(ctx, entityID)
	if err != nil {
		return nil, err
	}
	key := entities.FormatTimestamp(t)
	i := sort.Search(len(revs), func(i int) bool { return revs[i].Timestamp > key })
	if i == 0 {
		return nil, nil
	}
	rev := revs[i-1]
	return &rev, nil
}

func (x *HistoryIndex) locate(ctx context.Context, entityID, timestamp string) ([]entities.Revision, int, error) {
	if _, err := entities.ParseTimestamp(timestamp); err != nil {
		return nil, 0, err
	}
	revs, err := x.List(ctx, entityID)
	if err != nil {
		return nil, 0, err
	}
	i := sort.Search(len(revs), func(i int) bool { return revs[i].Timestamp >= timestamp })
	if i == len(revs) || revs[i].Timestamp != timestamp {
		return nil, 0, fmt.Errorf("%w: no such revision %s@%s", entities.ErrNotFound, entityID, timestamp)
	}
	return revs, i, nil
}
