package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ersonp/confighistory/internal/domain/diff"
	"github.com/ersonp/confighistory/internal/domain/entities"
	"github.com/ersonp/confighistory/internal/domain/ports"
)

// Comparison is the full result of comparing two revisions.
type Comparison struct {
	EntityID string
	// Old is nil when comparing the first revision against empty content.
	Old  *entities.Revision
	New  entities.Revision
	Diff *diff.Result
	// Rows holds every line of both sides, unchanged lines included.
	Rows  []diff.Line
	Stats diff.Stats
}

// CompareService diffs stored revisions.
type CompareService struct {
	store ports.SnapshotStore
	index *HistoryIndex
}

// NewCompareService creates a new CompareService.
func NewCompareService(store ports.SnapshotStore) *CompareService {
	return &CompareService{store: store, index: NewHistoryIndex(store)}
}

// Compare diffs the revision at ts1 against the one at ts2. A negative
// contextLines uses diff.DefaultContext.
func (s *CompareService) Compare(ctx context.Context, entityID, ts1, ts2 string, contextLines int) (*Comparison, error) {
	oldRev, err := s.index.Resolve(ctx, entityID, ts1)
	if err != nil {
		return nil, err
	}
	newRev, err := s.index.Resolve(ctx, entityID, ts2)
	if err != nil {
		return nil, err
	}
	return s.compare(ctx, oldRev, newRev, contextLines)
}

// CompareWithPrevious diffs the revision at ts against its predecessor. The
// first revision is compared against empty content.
func (s *CompareService) CompareWithPrevious(ctx context.Context, entityID, ts string, contextLines int) (*Comparison, error) {
	newRev, err := s.index.Resolve(ctx, entityID, ts)
	if err != nil {
		return nil, err
	}
	oldRev, err := s.index.Previous(ctx, entityID, ts)
	if err != nil {
		return nil, err
	}
	return s.compare(ctx, oldRev, newRev, contextLines)
}

func (s *CompareService) compare(ctx context.Context, oldRev, newRev *entities.Revision, contextLines int) (*Comparison, error) {
	if contextLines < 0 {
		contextLines = diff.DefaultContext
	}

	var oldContent, newContent string
	g, gctx := errgroup.WithContext(ctx)
	if oldRev != nil {
		g.Go(func() error {
			content, err := s.store.Get(gctx, oldRev.EntityID, oldRev.Timestamp)
			if err != nil {
				return fmt.Errorf("loading %s: %w", oldRev.Timestamp, err)
			}
			oldContent = content
			return nil
		})
	}
	g.Go(func() error {
		content, err := s.store.Get(gctx, newRev.EntityID, newRev.Timestamp)
		if err != nil {
			return fmt.Errorf("loading %s: %w", newRev.Timestamp, err)
		}
		newContent = content
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	oldLabel := newRev.EntityID + "@(none)"
	if oldRev != nil {
		oldLabel = label(*oldRev)
	}

	a, b := diff.SplitLines(oldContent), diff.SplitLines(newContent)
	result := diff.Compute(a, b, oldLabel, label(*newRev), contextLines)
	stats, err := diff.Stat(result.Unified)
	if err != nil {
		return nil, fmt.Errorf("summarizing diff: %w", err)
	}

	return &Comparison{
		EntityID: newRev.EntityID,
		Old:      oldRev,
		New:      *newRev,
		Diff:     result,
		Rows:     diff.Align(a, b, result.Script),
		Stats:    stats,
	}, nil
}

func label(rev entities.Revision) string {
	return rev.EntityID + "@" + rev.Timestamp
}
