// Package storetest holds the behavioural checks every SnapshotStore
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/confighistory/internal/domain/entities"
	"github.com/ersonp/confighistory/internal/domain/ports"
)

// Factory returns an empty, schema-ready store. Cleanup is registered on t.
type Factory func(t *testing.T) ports.SnapshotStore

// Run exercises store against the SnapshotStore contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("empty history", func(t *testing.T) { testEmpty(t, newStore(t)) })
	t.Run("put and get", func(t *testing.T) { testPutGet(t, newStore(t)) })
	t.Run("content is stored verbatim", func(t *testing.T) { testVerbatim(t, newStore(t)) })
	t.Run("list is ascending", func(t *testing.T) { testListOrder(t, newStore(t)) })
	t.Run("duplicate put conflicts", func(t *testing.T) { testDuplicate(t, newStore(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("entities are isolated", func(t *testing.T) { testIsolation(t, newStore(t)) })
	t.Run("list entities", func(t *testing.T) { testListEntities(t, newStore(t)) })
	t.Run("concurrent puts", func(t *testing.T) { testConcurrentPuts(t, newStore(t)) })
	t.Run("longest entity ids", func(t *testing.T) { testLongEntityIDs(t, newStore(t)) })
}

func put(t *testing.T, store ports.SnapshotStore, entityID, ts, content string) *entities.Revision {
	t.Helper()
	rev := entities.NewRevision(entityID, ts, entities.OperationChanged, "alice", content)
	require.NoError(t, store.Put(context.Background(), rev, content))
	return rev
}

func timestamps(revs []entities.Revision) []string {
	out := make([]string, 0, len(revs))
	for _, r := range revs {
		out = append(out, r.Timestamp)
	}
	return out
}

func testEmpty(t *testing.T, store ports.SnapshotStore) {
	ctx := context.Background()

	revs, err := store.List(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, revs)

	ids, err := store.ListEntities(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = store.Get(ctx, "nothing", "2024-01-01_00-00-00")
	assert.True(t, errors.Is(err, entities.ErrNotFound), "got %v", err)
}

func testPutGet(t *testing.T, store ports.SnapshotStore) {
	ctx := context.Background()
	rev := entities.NewRevision("jobs/build", "2024-01-01_00-00-00", entities.OperationCreated, "alice", "<project/>")
	require.NoError(t, store.Put(ctx, rev, "<project/>"))

	content, err := store.Get(ctx, "jobs/build", "2024-01-01_00-00-00")
	require.NoError(t, err)
	assert.Equal(t, "<project/>", content)

	revs, err := store.List(ctx, "jobs/build")
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, *rev, revs[0])
}

func testVerbatim(t *testing.T, store ports.SnapshotStore) {
	ctx := context.Background()
	contents := map[string]string{
		"2024-01-01_00-00-00": "",
		"2024-01-01_00-00-01": "line\n\n\n",
		"2024-01-01_00-00-02": "crlf\r\nünïcødé ✓\r\n",
		"2024-01-01_00-00-03": "no trailing newline",
	}
	for ts, content := range contents {
		put(t, store, "job", ts, content)
	}
	for ts, want := range contents {
		got, err := store.Get(ctx, "job", ts)
		require.NoError(t, err)
		assert.Equal(t, want, got, ts)
	}
}

func testListOrder(t *testing.T, store ports.SnapshotStore) {
	put(t, store, "job", "2024-03-01_00-00-00", "t3")
	put(t, store, "job", "2024-01-01_00-00-00", "t1")
	put(t, store, "job", "2024-02-01_00-00-00", "t2")

	revs, err := store.List(context.Background(), "job")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01_00-00-00", "2024-02-01_00-00-00", "2024-03-01_00-00-00"}, timestamps(revs))
}

func testDuplicate(t *testing.T, store ports.SnapshotStore) {
	ctx := context.Background()
	put(t, store, "job", "2024-01-01_00-00-00", "first")

	second := entities.NewRevision("job", "2024-01-01_00-00-00", entities.OperationChanged, "bob", "second")
	err := store.Put(ctx, second, "second")
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrStorage), "got %v", err)

	content, err := store.Get(ctx, "job", "2024-01-01_00-00-00")
	require.NoError(t, err)
	assert.Equal(t, "first", content)

	revs, err := store.List(ctx, "job")
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, "alice", revs[0].Author)
}

func testDelete(t *testing.T, store ports.SnapshotStore) {
	ctx := context.Background()
	put(t, store, "job", "2024-01-01_00-00-00", "one")
	put(t, store, "job", "2024-01-02_00-00-00", "two")

	require.NoError(t, store.Delete(ctx, "job", "2024-01-01_00-00-00"))

	_, err := store.Get(ctx, "job", "2024-01-01_00-00-00")
	assert.True(t, errors.Is(err, entities.ErrNotFound), "got %v", err)

	revs, err := store.List(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-02_00-00-00"}, timestamps(revs))

	err = store.Delete(ctx, "job", "2024-01-01_00-00-00")
	assert.True(t, errors.Is(err, entities.ErrNotFound), "got %v", err)

	put(t, store, "job", "2024-01-01_00-00-00", "again")
	content, err := store.Get(ctx, "job", "2024-01-01_00-00-00")
	require.NoError(t, err)
	assert.Equal(t, "again", content)
}

func testIsolation(t *testing.T, store ports.SnapshotStore) {
	ctx := context.Background()
	put(t, store, "job", "2024-01-01_00-00-00", "job")
	put(t, store, "job2", "2024-01-02_00-00-00", "job2")
	put(t, store, "job/child", "2024-01-03_00-00-00", "child")

	for id, want := range map[string]string{
		"job":       "2024-01-01_00-00-00",
		"job2":      "2024-01-02_00-00-00",
		"job/child": "2024-01-03_00-00-00",
	} {
		revs, err := store.List(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{want}, timestamps(revs), id)
	}

	_, err := store.Get(ctx, "job", "2024-01-02_00-00-00")
	assert.True(t, errors.Is(err, entities.ErrNotFound), "got %v", err)
}

func testListEntities(t *testing.T, store ports.SnapshotStore) {
	ctx := context.Background()
	put(t, store, "zeta", "2024-01-01_00-00-00", "z")
	put(t, store, "alpha/beta", "2024-01-01_00-00-00", "ab")
	put(t, store, "alpha/beta", "2024-01-02_00-00-00", "ab2")
	put(t, store, "alpha", "2024-01-01_00-00-00", "a")

	ids, err := store.ListEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "alpha/beta", "zeta"}, ids)

	require.NoError(t, store.Delete(ctx, "zeta", "2024-01-01_00-00-00"))
	ids, err = store.ListEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "alpha/beta"}, ids)
}

func testConcurrentPuts(t *testing.T, store ports.SnapshotStore) {
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ts := fmt.Sprintf("2024-01-01_00-00-%02d", i)
			rev := entities.NewRevision("job", ts, entities.OperationChanged, "", ts)
			assert.NoError(t, store.Put(ctx, rev, ts))
		}(i)
	}
	wg.Wait()

	revs, err := store.List(ctx, "job")
	require.NoError(t, err)
	assert.Len(t, revs, 10)
}

func testLongEntityIDs(t *testing.T, store ports.SnapshotStore) {
	ctx := context.Background()
	long := strings.Repeat("a", entities.MaxEntityIDLength)
	nested := strings.Repeat("ab/", (entities.MaxEntityIDLength-1)/3) + "a"

	for _, id := range []string{long, nested} {
		require.NoError(t, entities.ValidateEntityID(id))

		revs, err := store.List(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, revs)
	}

	put(t, store, long, "2024-01-01_00-00-00", "long")
	put(t, store, nested, "2024-01-01_00-00-00", "nested")
	put(t, store, nested, "2024-01-02_00-00-00", "nested2")

	content, err := store.Get(ctx, nested, "2024-01-02_00-00-00")
	require.NoError(t, err)
	assert.Equal(t, "nested2", content)

	revs, err := store.List(ctx, nested)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01_00-00-00", "2024-01-02_00-00-00"}, timestamps(revs))
	assert.Equal(t, nested, revs[0].EntityID)

	ids, err := store.ListEntities(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{long, nested}, ids)

	require.NoError(t, store.Delete(ctx, long, "2024-01-01_00-00-00"))
	ids, err = store.ListEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{nested}, ids)
}
