package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ersonp/confighistory/internal/domain/entities"
)

// SnapshotStore is an in-memory implementation of ports.SnapshotStore.
type SnapshotStore struct {
	mu        sync.Mutex
	Revisions map[string]map[string]entities.Revision
	Contents  map[string]map[string]string
	// Err, when set, is returned by every operation.
	Err error
	// PutErr, when set, is returned by Put only.
	PutErr error
	// DeleteErr, when set, is returned by Delete only.
	DeleteErr error
	Calls     map[string]int
}

// NewSnapshotStore creates a new mock SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		Revisions: make(map[string]map[string]entities.Revision),
		Contents:  make(map[string]map[string]string),
		Calls:     make(map[string]int),
	}
}

func (m *SnapshotStore) called(name string) {
	m.Calls[name]++
}

// EnsureSchema does nothing.
func (m *SnapshotStore) EnsureSchema(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called("EnsureSchema")
	return m.Err
}

// Close does nothing.
func (m *SnapshotStore) Close() error {
	return nil
}

// Put records a revision, rejecting duplicate timestamps.
func (m *SnapshotStore) Put(_ context.Context, rev *entities.Revision, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called("Put")
	if m.Err != nil {
		return m.Err
	}
	if m.PutErr != nil {
		return m.PutErr
	}
	if _, ok := m.Revisions[rev.EntityID][rev.Timestamp]; ok {
		return fmt.Errorf("%w: revision %s@%s already exists", entities.ErrStorage, rev.EntityID, rev.Timestamp)
	}
	if m.Revisions[rev.EntityID] == nil {
		m.Revisions[rev.EntityID] = make(map[string]entities.Revision)
		m.Contents[rev.EntityID] = make(map[string]string)
	}
	m.Revisions[rev.EntityID][rev.Timestamp] = *rev
	m.Contents[rev.EntityID][rev.Timestamp] = content
	return nil
}

// Get returns recorded content.
func (m *SnapshotStore) Get(_ context.Context, entityID, timestamp string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called("Get")
	if m.Err != nil {
		return "", m.Err
	}
	content, ok := m.Contents[entityID][timestamp]
	if !ok {
		return "", fmt.Errorf("%w: revision %s@%s", entities.ErrNotFound, entityID, timestamp)
	}
	return content, nil
}

// Delete removes a revision.
func (m *SnapshotStore) Delete(_ context.Context, entityID, timestamp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called("Delete")
	if m.Err != nil {
		return m.Err
	}
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, ok := m.Revisions[entityID][timestamp]; !ok {
		return fmt.Errorf("%w: revision %s@%s", entities.ErrNotFound, entityID, timestamp)
	}
	delete(m.Revisions[entityID], timestamp)
	delete(m.Contents[entityID], timestamp)
	if len(m.Revisions[entityID]) == 0 {
		delete(m.Revisions, entityID)
		delete(m.Contents, entityID)
	}
	return nil
}

// List returns an entity's revisions in ascending timestamp order.
func (m *SnapshotStore) List(_ context.Context, entityID string) ([]entities.Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called("List")
	if m.Err != nil {
		return nil, m.Err
	}
	result := make([]entities.Revision, 0, len(m.Revisions[entityID]))
	for _, rev := range m.Revisions[entityID] {
		result = append(result, rev)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

// ListEntities returns every entity with history, sorted.
func (m *SnapshotStore) ListEntities(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called("ListEntities")
	if m.Err != nil {
		return nil, m.Err
	}
	ids := make([]string, 0, len(m.Revisions))
	for id := range m.Revisions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
