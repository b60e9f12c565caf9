package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/confighistory/internal/domain/entities"
	"github.com/ersonp/confighistory/internal/domain/mocks"
)

// fakeClock returns a fixed time that tests advance explicitly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestHistoryService(t *testing.T, opts HistoryOptions) (*HistoryService, *mocks.SnapshotStore, *fakeClock) {
	t.Helper()
	store := mocks.NewSnapshotStore()
	clock := newFakeClock()
	if opts.Clock == nil {
		opts.Clock = clock.Now
	}
	return NewHistoryService(store, opts, zerolog.Nop()), store, clock
}

func record(t *testing.T, svc *HistoryService, entityID, content string, op entities.OperationKind) *RecordResult {
	t.Helper()
	res, err := svc.Record(context.Background(), RecordRequest{
		EntityID:  entityID,
		Content:   content,
		Operation: op,
		Author:    "tester",
	})
	require.NoError(t, err)
	return res
}

func TestHistoryService_Record(t *testing.T) {
	svc, store, _ := newTestHistoryService(t, HistoryOptions{})

	res := record(t, svc, "jobs/build", "<project/>", entities.OperationCreated)

	require.False(t, res.Skipped)
	require.NotNil(t, res.Revision)
	assert.Equal(t, "2024-01-10_09-00-00", res.Revision.Timestamp)
	assert.Equal(t, entities.OperationCreated, res.Revision.Operation)
	assert.Equal(t, "tester", res.Revision.Author)
	assert.Equal(t, "<project/>", store.Contents["jobs/build"]["2024-01-10_09-00-00"])
}

func TestHistoryService_Record_SameSecondGetsDistinctTimestamps(t *testing.T) {
	svc, _, _ := newTestHistoryService(t, HistoryOptions{})

	first := record(t, svc, "job", "v1", entities.OperationCreated)
	second := record(t, svc, "job", "v2", entities.OperationChanged)
	third := record(t, svc, "job", "v3", entities.OperationChanged)

	assert.Equal(t, "2024-01-10_09-00-00", first.Revision.Timestamp)
	assert.Equal(t, "2024-01-10_09-00-01", second.Revision.Timestamp)
	assert.Equal(t, "2024-01-10_09-00-02", third.Revision.Timestamp)
}

func TestHistoryService_Record_ConcurrentWritersNeverCollide(t *testing.T) {
	svc, store, _ := newTestHistoryService(t, HistoryOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Record(context.Background(), RecordRequest{
				EntityID:  "job",
				Content:   fmt.Sprintf("v%d", i),
				Operation: entities.OperationChanged,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	revs, err := store.List(context.Background(), "job")
	require.NoError(t, err)
	assert.Len(t, revs, 20)
}

func TestHistoryService_Record_Validation(t *testing.T) {
	svc, store, _ := newTestHistoryService(t, HistoryOptions{})

	_, err := svc.Record(context.Background(), RecordRequest{EntityID: "../etc", Operation: entities.OperationCreated})
	assert.True(t, errors.Is(err, entities.ErrValidation))

	_, err = svc.Record(context.Background(), RecordRequest{EntityID: "job", Operation: "MOVED"})
	assert.True(t, errors.Is(err, entities.ErrValidation))

	assert.Zero(t, store.Calls["Put"])
}

func TestHistoryService_Record_SkipDuplicates(t *testing.T) {
	svc, store, clock := newTestHistoryService(t, HistoryOptions{SkipDuplicates: true})

	record(t, svc, "job", "same", entities.OperationCreated)
	clock.Advance(time.Minute)

	res := record(t, svc, "job", "same", entities.OperationChanged)
	assert.True(t, res.Skipped)
	assert.Equal(t, SkipDuplicate, res.Reason)
	assert.Equal(t, "2024-01-10_09-00-00", res.Revision.Timestamp)

	t.Run("non-change operations are always recorded", func(t *testing.T) {
		res := record(t, svc, "job", "same", entities.OperationRenamed)
		assert.False(t, res.Skipped)
	})

	assert.Equal(t, 2, store.Calls["Put"])
}

func TestHistoryService_Record_Excluded(t *testing.T) {
	svc, store, _ := newTestHistoryService(t, HistoryOptions{Exclude: regexp.MustCompile(`^tmp/`)})

	res := record(t, svc, "tmp/scratch", "x", entities.OperationCreated)

	assert.True(t, res.Skipped)
	assert.Equal(t, SkipExcluded, res.Reason)
	assert.Zero(t, store.Calls["Put"])
}

func TestHistoryService_Record_MaxEntriesPrunesOldest(t *testing.T) {
	svc, store, clock := newTestHistoryService(t, HistoryOptions{MaxEntries: 2})

	record(t, svc, "job", "v1", entities.OperationCreated)
	clock.Advance(time.Minute)
	record(t, svc, "job", "v2", entities.OperationChanged)
	clock.Advance(time.Minute)
	res := record(t, svc, "job", "v3", entities.OperationChanged)

	require.Len(t, res.Pruned, 1)
	assert.Equal(t, "2024-01-10_09-00-00", res.Pruned[0].Timestamp)

	revs, err := store.List(context.Background(), "job")
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, "2024-01-10_09-01-00", revs[0].Timestamp)
	assert.Equal(t, "2024-01-10_09-02-00", revs[1].Timestamp)
}

func TestHistoryService_Record_PruneFailureKeepsRecord(t *testing.T) {
	svc, store, clock := newTestHistoryService(t, HistoryOptions{MaxEntries: 1})
	record(t, svc, "job", "v1", entities.OperationCreated)
	store.DeleteErr = fmt.Errorf("%w: disk gone", entities.ErrStorage)
	clock.Advance(time.Minute)

	res, err := svc.Record(context.Background(), RecordRequest{
		EntityID:  "job",
		Content:   "v2",
		Operation: entities.OperationChanged,
	})

	require.NoError(t, err)
	require.NotNil(t, res.Revision)
	assert.Equal(t, "2024-01-10_09-01-00", res.Revision.Timestamp)
	assert.Empty(t, res.Pruned)
	require.Error(t, res.PruneErr)
	assert.True(t, errors.Is(res.PruneErr, entities.ErrStorage))

	revs, err := store.List(context.Background(), "job")
	require.NoError(t, err)
	assert.Len(t, revs, 2)

	store.DeleteErr = nil
	clock.Advance(time.Minute)
	res = record(t, svc, "job", "v3", entities.OperationChanged)
	assert.Len(t, res.Pruned, 2, "the next write catches up on pruning")
	assert.NoError(t, res.PruneErr)
}

func TestHistoryService_Record_StorageErrorSurfaces(t *testing.T) {
	svc, store, _ := newTestHistoryService(t, HistoryOptions{})
	store.PutErr = fmt.Errorf("%w: disk full", entities.ErrStorage)

	_, err := svc.Record(context.Background(), RecordRequest{EntityID: "job", Operation: entities.OperationCreated})

	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrStorage))
	assert.Equal(t, 1, store.Calls["Put"])
}

func TestHistoryService_GetSnapshot(t *testing.T) {
	svc, _, _ := newTestHistoryService(t, HistoryOptions{})
	rev := record(t, svc, "job", "content", entities.OperationCreated).Revision

	snap, err := svc.GetSnapshot(context.Background(), "job", rev.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, "content", snap.Content)
	assert.Equal(t, *rev, snap.Revision)

	_, err = svc.GetSnapshot(context.Background(), "job", "2030-01-01_00-00-00")
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	_, err = svc.GetSnapshot(context.Background(), "job", "null")
	assert.True(t, errors.Is(err, entities.ErrValidation))
}

func TestHistoryService_DeleteRevision(t *testing.T) {
	svc, _, clock := newTestHistoryService(t, HistoryOptions{})
	first := record(t, svc, "job", "v1", entities.OperationCreated).Revision
	clock.Advance(time.Second)
	second := record(t, svc, "job", "v2", entities.OperationChanged).Revision

	require.NoError(t, svc.DeleteRevision(context.Background(), "job", first.Timestamp))

	_, err := svc.GetSnapshot(context.Background(), "job", first.Timestamp)
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	revs, err := svc.ListRevisions(context.Background(), "job")
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, second.Timestamp, revs[0].Timestamp)

	err = svc.DeleteRevision(context.Background(), "job", first.Timestamp)
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	err = svc.DeleteRevision(context.Background(), "job", "bad")
	assert.True(t, errors.Is(err, entities.ErrValidation))
}

func TestHistoryService_Purge(t *testing.T) {
	tests := []struct {
		name      string
		policy    PurgePolicy
		remaining []string
	}{
		{
			name:      "by count",
			policy:    PurgePolicy{MaxEntries: 2},
			remaining: []string{"2024-01-03_09-00-00", "2024-01-04_09-00-00"},
		},
		{
			name:      "by age",
			policy:    PurgePolicy{MaxAge: 48 * time.Hour},
			remaining: []string{"2024-01-03_09-00-00", "2024-01-04_09-00-00"},
		},
		{
			name:      "age never removes latest",
			policy:    PurgePolicy{MaxAge: time.Hour},
			remaining: []string{"2024-01-04_09-00-00"},
		},
		{
			name:      "count and age combine",
			policy:    PurgePolicy{MaxEntries: 3, MaxAge: 72 * time.Hour},
			remaining: []string{"2024-01-02_09-00-00", "2024-01-03_09-00-00", "2024-01-04_09-00-00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
			svc, store, _ := newTestHistoryService(t, HistoryOptions{Clock: clock.Now})
			for i := 0; i < 4; i++ {
				record(t, svc, "job", fmt.Sprintf("v%d", i), entities.OperationChanged)
				clock.Advance(24 * time.Hour)
			}
			// now is 2024-01-05 09:00

			_, err := svc.Purge(context.Background(), "job", tt.policy)
			require.NoError(t, err)

			revs, err := store.List(context.Background(), "job")
			require.NoError(t, err)
			var got []string
			for _, r := range revs {
				got = append(got, r.Timestamp)
			}
			assert.Equal(t, tt.remaining, got)
		})
	}
}

func TestHistoryService_Purge_DefaultsToConfiguredLimits(t *testing.T) {
	svc, _, clock := newTestHistoryService(t, HistoryOptions{MaxAge: time.Hour})
	for i := 0; i < 3; i++ {
		record(t, svc, "job", fmt.Sprintf("v%d", i), entities.OperationChanged)
		clock.Advance(24 * time.Hour)
	}

	purged, err := svc.Purge(context.Background(), "job", PurgePolicy{})
	require.NoError(t, err)
	require.Len(t, purged, 2)
	assert.Equal(t, "2024-01-10_09-00-00", purged[0].Timestamp)
	assert.Equal(t, "2024-01-11_09-00-00", purged[1].Timestamp)
}

func TestHistoryService_Restore(t *testing.T) {
	svc, _, clock := newTestHistoryService(t, HistoryOptions{})
	first := record(t, svc, "job", "original", entities.OperationCreated).Revision
	clock.Advance(time.Minute)
	record(t, svc, "job", "broken", entities.OperationChanged)
	clock.Advance(time.Minute)

	res, snap, err := svc.Restore(context.Background(), "job", first.Timestamp, "admin")
	require.NoError(t, err)
	assert.Equal(t, "original", snap.Content)
	assert.Equal(t, entities.OperationChanged, res.Revision.Operation)
	assert.Equal(t, "admin", res.Revision.Author)
	assert.Equal(t, first.Checksum, res.Revision.Checksum)

	revs, err := svc.ListRevisions(context.Background(), "job")
	require.NoError(t, err)
	assert.Len(t, revs, 3)
}

func TestHistoryService_ListEntities(t *testing.T) {
	svc, _, _ := newTestHistoryService(t, HistoryOptions{})
	record(t, svc, "b/job", "x", entities.OperationCreated)
	record(t, svc, "a", "y", entities.OperationCreated)

	ids, err := svc.ListEntities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b/job"}, ids)
}
