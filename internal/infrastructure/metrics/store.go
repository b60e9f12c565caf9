package metrics

import (
	"context"
	"time"

	"github.com/ersonp/confighistory/internal/domain/entities"
	"github.com/ersonp/confighistory/internal/domain/ports"
)

// Ensure InstrumentedStore implements the interface.
var _ ports.SnapshotStore = (*InstrumentedStore)(nil)

// InstrumentedStore decorates a SnapshotStore with operation metrics.
type InstrumentedStore struct {
	next    ports.SnapshotStore
	metrics *Metrics
}

// NewInstrumentedStore wraps next.
func NewInstrumentedStore(next ports.SnapshotStore, m *Metrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, metrics: m}
}

func (s *InstrumentedStore) observe(operation string, start time.Time, err error) {
	s.metrics.RecordStoreOperation(operation, time.Since(start), err)
}

// EnsureSchema delegates to the wrapped store.
func (s *InstrumentedStore) EnsureSchema(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.observe("ensure_schema", start, err) }()
	return s.next.EnsureSchema(ctx)
}

// Close delegates to the wrapped store.
func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}

// Put delegates to the wrapped store.
func (s *InstrumentedStore) Put(ctx context.Context, rev *entities.Revision, content string) (err error) {
	start := time.Now()
	defer func() { s.observe("put", start, err) }()
	return s.next.Put(ctx, rev, content)
}

// Get delegates to the wrapped store.
func (s *InstrumentedStore) Get(ctx context.Context, entityID, timestamp string) (content string, err error) {
	start := time.Now()
	defer func() { s.observe("get", start, err) }()
	return s.next.Get(ctx, entityID, timestamp)
}

// Delete delegates to the wrapped store.
func (s *InstrumentedStore) Delete(ctx context.Context, entityID, timestamp string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete", start, err) }()
	return s.next.Delete(ctx, entityID, timestamp)
}

// List delegates to the wrapped store.
func (s *InstrumentedStore) List(ctx context.Context, entityID string) (revs []entities.Revision, err error) {
	start := time.Now()
	defer func() { s.observe("list", start, err) }()
	return s.next.List(ctx, entityID)
}

// ListEntities delegates to the wrapped store.
func (s *InstrumentedStore) ListEntities(ctx context.Context) (ids []string, err error) {
	start := time.Now()
	defer func() { s.observe("list_entities", start, err) }()
	return s.next.ListEntities(ctx)
}
