package services

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/ersonp/confighistory/internal/domain/entities"
	"github.com/ersonp/confighistory/internal/domain/ports"
	"github.com/ersonp/confighistory/internal/infrastructure/lockmap"
)

// Skip reasons reported by Record.
const (
	SkipExcluded  = "excluded"
	SkipDuplicate = "duplicate"
)

// HistoryOptions controls what HistoryService records and keeps.
type HistoryOptions struct {
	// SkipDuplicates drops CHANGED records whose content equals the latest revision.
	SkipDuplicates bool
	// MaxEntries caps revisions per entity; 0 keeps everything.
	MaxEntries int
	// MaxAge is the retention window applied by Purge; 0 disables it.
	MaxAge time.Duration
	// Exclude matches entity ids that are never recorded.
	Exclude *regexp.Regexp
	// Clock returns the current time; defaults to time.Now.
	Clock func() time.Time
}

// RecordRequest describes an observed configuration change.
type RecordRequest struct {
	EntityID  string
	Content   string
	Operation entities.OperationKind
	Author    string
}

// RecordResult is the outcome of Record.
type RecordResult struct {
	Revision *entities.Revision
	Skipped  bool
	Reason   string
	// Pruned lists revisions removed by MaxEntries after the write.
	Pruned []entities.Revision
	// PruneErr is set when the write succeeded but pruning did not.
	PruneErr error
}

// PurgePolicy selects revisions for removal. Zero fields are ignored.
type PurgePolicy struct {
	MaxEntries int
	MaxAge     time.Duration
}

// HistoryService records configuration changes and manages stored history.
type HistoryService struct {
	store ports.SnapshotStore
	index *HistoryIndex
	opts  HistoryOptions
	locks *lockmap.Map
	log   zerolog.Logger
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(store ports.SnapshotStore, opts HistoryOptions, log zerolog.Logger) *HistoryService {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &HistoryService{
		store: store,
		index: NewHistoryIndex(store),
		opts:  opts,
		locks: lockmap.New(),
		log:   log,
	}
}

// Index returns the history index backed by the same store.
func (s *HistoryService) Index() *HistoryIndex {
	return s.index
}

// Record stores a new revision for an observed change. Writes for one
// entity are serialized so timestamps stay unique and increasing.
func (s *HistoryService) Record(ctx context.Context, req RecordRequest) (*RecordResult, error) {
	if err := entities.ValidateEntityID(req.EntityID); err != nil {
		return nil, err
	}
	if !req.Operation.IsValid() {
		return nil, fmt.Errorf("%w: unknown operation %q", entities.ErrValidation, req.Operation)
	}
	if s.opts.Exclude != nil && s.opts.Exclude.MatchString(req.EntityID) {
		s.log.Debug().Str("entity", req.EntityID).Msg("entity excluded from history")
		return &RecordResult{Skipped: true, Reason: SkipExcluded}, nil
	}

	unlock := s.locks.Lock(req.EntityID)
	defer unlock()

	revs, err := s.store.List(ctx, req.EntityID)
	if err != nil {
		return nil, fmt.Errorf("listing revisions: %w", err)
	}

	latest := ""
	if len(revs) > 0 {
		last := revs[len(revs)-1]
		latest = last.Timestamp
		if s.opts.SkipDuplicates && req.Operation == entities.OperationChanged &&
			last.Checksum == entities.Checksum(req.Content) {
			s.log.Debug().
				Str("entity", req.EntityID).
				Str("latest", last.Timestamp).
				Msg("duplicate content, skipping")
			return &RecordResult{Revision: &last, Skipped: true, Reason: SkipDuplicate}, nil
		}
	}

	ts := entities.NextTimestamp(s.opts.Clock(), latest)
	rev := entities.NewRevision(req.EntityID, ts, req.Operation, req.Author, req.Content)
	if err := s.store.Put(ctx, rev, req.Content); err != nil {
		return nil, fmt.Errorf("storing revision: %w", err)
	}

	s.log.Info().
		Str("entity", rev.EntityID).
		Str("timestamp", rev.Timestamp).
		Str("operation", string(rev.Operation)).
		Int64("size", rev.Size).
		Msg("revision recorded")

	result := &RecordResult{Revision: rev}
	if s.opts.MaxEntries > 0 {
		revs = append(revs, *rev)
		pruned, err := s.deleteAll(ctx, req.EntityID, selectByCount(revs, s.opts.MaxEntries))
		result.Pruned = pruned
		if err != nil {
			// The revision is stored; the next write retries the prune.
			s.log.Warn().Err(err).Str("entity", req.EntityID).Msg("pruning after record failed")
			result.PruneErr = err
		}
	}
	return result, nil
}

// ListRevisions returns an entity's revisions in chronological order.
func (s *HistoryService) ListRevisions(ctx context.Context, entityID string) ([]entities.Revision, error) {
	return s.index.List(ctx, entityID)
}

// ListEntities returns every entity that has recorded history.
func (s *HistoryService) ListEntities(ctx context.Context) ([]string, error) {
	ids, err := s.store.ListEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	return ids, nil
}

// GetSnapshot returns a revision together with its content.
func (s *HistoryService) GetSnapshot(ctx context.Context, entityID, timestamp string) (*entities.Snapshot, error) {
	rev, err := s.index.Resolve(ctx, entityID, timestamp)
	if err != nil {
		return nil, err
	}
	content, err := s.store.Get(ctx, entityID, timestamp)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return &entities.Snapshot{Revision: *rev, Content: content}, nil
}

// DeleteRevision removes one revision.
func (s *HistoryService) DeleteRevision(ctx context.Context, entityID, timestamp string) error {
	if err := entities.ValidateEntityID(entityID); err != nil {
		return err
	}
	if _, err := entities.ParseTimestamp(timestamp); err != nil {
		return err
	}

	unlock := s.locks.Lock(entityID)
	defer unlock()

	if err := s.store.Delete(ctx, entityID, timestamp); err != nil {
		return fmt.Errorf("deleting revision: %w", err)
	}
	s.log.Info().Str("entity", entityID).Str("timestamp", timestamp).Msg("revision deleted")
	return nil
}

// Purge removes revisions outside the retention policy. A zero policy uses
// the service's configured limits. The latest revision is never removed by
// age. Returns the removed revisions, oldest first.
func (s *HistoryService) Purge(ctx context.Context, entityID string, policy PurgePolicy) ([]entities.Revision, error) {
	if err := entities.ValidateEntityID(entityID); err != nil {
		return nil, err
	}
	if policy == (PurgePolicy{}) {
		policy = PurgePolicy{MaxEntries: s.opts.MaxEntries, MaxAge: s.opts.MaxAge}
	}

	unlock := s.locks.Lock(entityID)
	defer unlock()

	revs, err := s.store.List(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("listing revisions: %w", err)
	}

	doomed := make(map[string]bool)
	for _, ts := range selectByCount(revs, policy.MaxEntries) {
		doomed[ts] = true
	}
	for _, ts := range selectByAge(revs, policy.MaxAge, s.opts.Clock()) {
		doomed[ts] = true
	}

	var timestamps []string
	for _, rev := range revs {
		if doomed[rev.Timestamp] {
			timestamps = append(timestamps, rev.Timestamp)
		}
	}

	purged, err := s.deleteAll(ctx, entityID, timestamps)
	if err != nil {
		return purged, err
	}
	if len(purged) > 0 {
		s.log.Info().Str("entity", entityID).Int("count", len(purged)).Msg("history purged")
	}
	return purged, nil
}

// Restore records the content of an old revision as a new CHANGED revision.
func (s *HistoryService) Restore(ctx context.Context, entityID, timestamp, author string) (*RecordResult, *entities.Snapshot, error) {
	snap, err := s.GetSnapshot(ctx, entityID, timestamp)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.Record(ctx, RecordRequest{
		EntityID:  entityID,
		Content:   snap.Content,
		Operation: entities.OperationChanged,
		Author:    author,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("restoring %s: %w", timestamp, err)
	}
	return result, snap, nil
}

// deleteAll removes the given timestamps. Callers hold the entity lock.
func (s *HistoryService) deleteAll(ctx context.Context, entityID string, timestamps []string) ([]entities.Revision, error) {
	if len(timestamps) == 0 {
		return nil, nil
	}
	revs, err := s.store.List(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("listing revisions: %w", err)
	}
	byTS := make(map[string]entities.Revision, len(revs))
	for _, rev := range revs {
		byTS[rev.Timestamp] = rev
	}

	removed := make([]entities.Revision, 0, len(timestamps))
	for _, ts := range timestamps {
		if err := s.store.Delete(ctx, entityID, ts); err != nil {
			return removed, fmt.Errorf("deleting revision %s: %w", ts, err)
		}
		removed = append(removed, byTS[ts])
		s.log.Debug().Str("entity", entityID).Str("timestamp", ts).Msg("revision pruned")
	}
	return removed, nil
}

// selectByCount returns the oldest timestamps beyond the newest limit revisions.
func selectByCount(revs []entities.Revision, limit int) []string {
	if limit <= 0 || len(revs) <= limit {
		return nil
	}
	out := make([]string, 0, len(revs)-limit)
	for _, rev := range revs[:len(revs)-limit] {
		out = append(out, rev.Timestamp)
	}
	return out
}

// selectByAge returns timestamps older than maxAge, never the latest one.
func selectByAge(revs []entities.Revision, maxAge time.Duration, now time.Time) []string {
	if maxAge <= 0 || len(revs) < 2 {
		return nil
	}
	cutoff := now.UTC().Add(-maxAge)
	var out []string
	for _, rev := range revs[:len(revs)-1] {
		if rev.Time().Before(cutoff) {
			out = append(out, rev.Timestamp)
		}
	}
	return out
}
