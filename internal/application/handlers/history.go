package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/confighistory/internal/domain/diff"
	"github.com/ersonp/confighistory/internal/domain/entities"
	"github.com/ersonp/confighistory/internal/domain/ports"
	"github.com/ersonp/confighistory/internal/domain/services"
)

// Observer is notified about completed operations. metrics.Metrics
// satisfies it.
type Observer interface {
	RevisionRecorded(op entities.OperationKind)
	DiffComputed(counts map[diff.ChangeType]int)
}

type nopObserver struct{}

func (nopObserver) RevisionRecorded(entities.OperationKind) {}
func (nopObserver) DiffComputed(map[diff.ChangeType]int)    {}

// HistoryOption configures a HistoryHandler.
type HistoryOption func(*HistoryHandler)

// WithReadPermission sets the capability consulted before any history read.
func WithReadPermission(p ports.ReadPermission) HistoryOption {
	return func(h *HistoryHandler) {
		if p != nil {
			h.mayRead = p
		}
	}
}

// WithObserver sets the observer notified after records and diffs.
func WithObserver(o Observer) HistoryOption {
	return func(h *HistoryHandler) {
		if o != nil {
			h.observer = o
		}
	}
}

// HistoryHandler handles configuration history operations at the
// application layer.
type HistoryHandler struct {
	historyService *services.HistoryService
	compareService *services.CompareService
	mayRead        ports.ReadPermission
	observer       Observer
}

// NewHistoryHandler creates a new HistoryHandler. Without WithReadPermission
// every read is allowed.
func NewHistoryHandler(historyService *services.HistoryService, compareService *services.CompareService, opts ...HistoryOption) *HistoryHandler {
	h := &HistoryHandler{
		historyService: historyService,
		compareService: compareService,
		mayRead:        ports.AllowAll,
		observer:       nopObserver{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HistoryHandler) authorize(ctx context.Context, entityID string) error {
	if !h.mayRead(ctx, entityID) {
		return fmt.Errorf("%w: history of %q", entities.ErrAccessDenied, entityID)
	}
	return nil
}

// RevisionListResult contains an entity's revisions, oldest first.
type RevisionListResult struct {
	EntityID  string              `json:"entity_id"`
	Revisions []entities.Revision `json:"revisions"`
	Total     int                 `json:"total"`
}

// HandleList returns the entity's revisions in chronological order.
func (h *HistoryHandler) HandleList(ctx context.Context, entityID string) (*RevisionListResult, error) {
	if err := h.authorize(ctx, entityID); err != nil {
		return nil, err
	}
	revs, err := h.historyService.ListRevisions(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return &RevisionListResult{
		EntityID:  entityID,
		Revisions: revs,
		Total:     len(revs),
	}, nil
}

// EntityListResult contains the entities that have recorded history.
type EntityListResult struct {
	Entities []string `json:"entities"`
	Total    int      `json:"total"`
}

// HandleListEntities returns every entity with history that the caller may read.
func (h *HistoryHandler) HandleListEntities(ctx context.Context) (*EntityListResult, error) {
	ids, err := h.historyService.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]string, 0, len(ids))
	for _, id := range ids {
		if h.mayRead(ctx, id) {
			visible = append(visible, id)
		}
	}
	return &EntityListResult{Entities: visible, Total: len(visible)}, nil
}

// HandleShow returns one revision and its content.
func (h *HistoryHandler) HandleShow(ctx context.Context, entityID, timestamp string) (*entities.Snapshot, error) {
	if err := h.authorize(ctx, entityID); err != nil {
		return nil, err
	}
	return h.historyService.GetSnapshot(ctx, entityID, timestamp)
}

// DiffRequest selects the two revisions to compare.
type DiffRequest struct {
	EntityID string
	From     string
	// To is optional; when empty From is compared with its predecessor.
	To string
	// Context is the number of unchanged lines around each hunk; negative
	// means diff.DefaultContext.
	Context int
}

// HandleDiff compares two revisions of an entity.
func (h *HistoryHandler) HandleDiff(ctx context.Context, req DiffRequest) (*services.Comparison, error) {
	if err := h.authorize(ctx, req.EntityID); err != nil {
		return nil, err
	}

	var (
		cmp *services.Comparison
		err error
	)
	if req.To == "" {
		cmp, err = h.compareService.CompareWithPrevious(ctx, req.EntityID, req.From, req.Context)
	} else {
		cmp, err = h.compareService.Compare(ctx, req.EntityID, req.From, req.To, req.Context)
	}
	if err != nil {
		return nil, err
	}

	h.observer.DiffComputed(diff.CountChanges(cmp.Rows))
	return cmp, nil
}

// HandleRecord stores an observed configuration change.
func (h *HistoryHandler) HandleRecord(ctx context.Context, req services.RecordRequest) (*services.RecordResult, error) {
	result, err := h.historyService.Record(ctx, req)
	if err != nil {
		return nil, err
	}
	if !result.Skipped {
		h.observer.RevisionRecorded(result.Revision.Operation)
	}
	return result, nil
}

// HandleDelete removes one revision.
func (h *HistoryHandler) HandleDelete(ctx context.Context, entityID, timestamp string) error {
	if err := h.authorize(ctx, entityID); err != nil {
		return err
	}
	return h.historyService.DeleteRevision(ctx, entityID, timestamp)
}

// HandlePurge removes revisions outside policy and returns them.
func (h *HistoryHandler) HandlePurge(ctx context.Context, entityID string, policy services.PurgePolicy) ([]entities.Revision, error) {
	if err := h.authorize(ctx, entityID); err != nil {
		return nil, err
	}
	return h.historyService.Purge(ctx, entityID, policy)
}

// RestoreResult describes a restore.
type RestoreResult struct {
	// Source is the revision whose content was restored.
	Source entities.Snapshot
	// Record is the outcome of recording that content again.
	Record *services.RecordResult
}

// HandleRestore records the content of an old revision as the newest one.
func (h *HistoryHandler) HandleRestore(ctx context.Context, entityID, timestamp, author string) (*RestoreResult, error) {
	if err := h.authorize(ctx, entityID); err != nil {
		return nil, err
	}
	record, source, err := h.historyService.Restore(ctx, entityID, timestamp, author)
	if err != nil {
		return nil, err
	}
	if !record.Skipped {
		h.observer.RevisionRecorded(record.Revision.Operation)
	}
	return &RestoreResult{Source: *source, Record: record}, nil
}

// CheckResult reports whether a timestamp names a revision, and its neighbours.
type CheckResult struct {
	EntityID  string             `json:"entity_id"`
	Timestamp string             `json:"timestamp"`
	Valid     bool               `json:"valid"`
	Previous  *entities.Revision `json:"previous,omitempty"`
	Next      *entities.Revision `json:"next,omitempty"`
}

// HandleCheck validates a timestamp against an entity's history. A malformed
// or unknown timestamp is reported as invalid, not as an error.
func (h *HistoryHandler) HandleCheck(ctx context.Context, entityID, timestamp string) (*CheckResult, error) {
	if err := h.authorize(ctx, entityID); err != nil {
		return nil, err
	}

	index := h.historyService.Index()
	result := &CheckResult{
		EntityID:  entityID,
		Timestamp: timestamp,
		Valid:     index.ValidateTimestamp(ctx, entityID, timestamp),
	}
	if !result.Valid {
		return result, nil
	}

	prev, err := index.Previous(ctx, entityID, timestamp)
	if err != nil {
		return nil, err
	}
	next, err := index.Next(ctx, entityID, timestamp)
	if err != nil {
		return nil, err
	}
	result.Previous = prev
	result.Next = next
	return result, nil
}
