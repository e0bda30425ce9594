package services

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmirror/backend/domain"
	"github.com/taskmirror/backend/internal/infrastructure/remote"
	"github.com/taskmirror/backend/repository"
)

// memStore is an in-memory stand-in for the Postgres-backed queue and
// transactional store.
type memStore struct {
	tasks   map[string]*domain.Task
	entries []domain.QueueEntry
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[string]*domain.Task)}
}

func (s *memStore) addTask(task domain.Task) {
	copied := task
	s.tasks[task.ID] = &copied
}

func (s *memStore) addEntry(entry domain.QueueEntry) {
	s.entries = append(s.entries, entry)
}

func (s *memStore) Pending(_ context.Context) ([]domain.QueueEntry, error) {
	var pending []domain.QueueEntry
	for _, entry := range s.entries {
		task, ok := s.tasks[entry.TaskID]
		if ok && task.SyncStatus == domain.SyncStatusError {
			continue
		}
		pending = append(pending, entry)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

func (s *memStore) ForTask(_ context.Context, taskID string) ([]domain.QueueEntry, error) {
	var out []domain.QueueEntry
	for _, entry := range s.entries {
		if entry.TaskID == taskID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *memStore) Size(_ context.Context) (int, error) {
	return len(s.entries), nil
}

func (s *memStore) SaveTaskWithEntry(_ context.Context, task *domain.Task, entry *domain.QueueEntry) error {
	copied := *task
	s.tasks[task.ID] = &copied
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *memStore) MarkTaskSynced(_ context.Context, taskID, serverID string, syncedAt time.Time, resolved *domain.TaskSnapshot) error {
	task, ok := s.tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if resolved != nil {
		resolved.Apply(task)
	}
	task.SyncStatus = domain.SyncStatusSynced
	task.ServerID = serverID
	task.LastSyncedAt = &syncedAt

	kept := s.entries[:0]
	for _, entry := range s.entries {
		if entry.TaskID != taskID {
			kept = append(kept, entry)
		}
	}
	s.entries = kept
	return nil
}

func (s *memStore) RecordEntryFailure(_ context.Context, entryID, taskID, message string, retryCount int, terminal bool) error {
	for i := range s.entries {
		if s.entries[i].ID == entryID {
			s.entries[i].RetryCount = retryCount
			s.entries[i].ErrorMessage = message
		}
	}
	if terminal {
		if task, ok := s.tasks[taskID]; ok {
			task.SyncStatus = domain.SyncStatusError
		}
	}
	return nil
}

var (
	_ repository.QueueRepository = (*memStore)(nil)
	_ repository.TxStore         = (*memStore)(nil)
)

// fakeDispatcher scripts the remote authority.
type fakeDispatcher struct {
	healthy bool
	batches [][]domain.QueueEntry
	respond func(batch remote.BatchRequest) (*remote.BatchResponse, error)
}

func (d *fakeDispatcher) Healthy() bool { return d.healthy }

func (d *fakeDispatcher) PushBatch(batch remote.BatchRequest) (*remote.BatchResponse, error) {
	d.batches = append(d.batches, batch.Items)
	if d.respond != nil {
		return d.respond(batch)
	}
	return acceptAll(batch), nil
}

// acceptAll answers success for every item with a derived server id.
func acceptAll(batch remote.BatchRequest) *remote.BatchResponse {
	resp := &remote.BatchResponse{}
	for _, item := range batch.Items {
		resp.ProcessedItems = append(resp.ProcessedItems, remote.ProcessedItem{
			ClientID: item.TaskID,
			ServerID: "srv-" + item.TaskID,
			Status:   remote.ItemStatusSuccess,
		})
	}
	return resp
}

func pendingTask(id string, at time.Time) domain.Task {
	return domain.Task{
		ID:         id,
		Title:      "task " + id,
		SyncStatus: domain.SyncStatusPending,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func entryFor(task domain.Task, operation string, at time.Time) domain.QueueEntry {
	return domain.QueueEntry{
		ID:        "entry-" + task.ID + "-" + operation,
		TaskID:    task.ID,
		Operation: operation,
		Payload:   task.Snapshot(),
		CreatedAt: at,
	}
}

func newOrchestrator(store *memStore, dispatcher Dispatcher, cfg SyncConfig) *SyncOrchestrator {
	return NewSyncOrchestrator(store, store, dispatcher, nil, cfg)
}

func TestSyncOfflineShortCircuits(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	task := pendingTask("t1", now)
	store.addTask(task)
	store.addEntry(entryFor(task, domain.OperationCreate, now))

	dispatcher := &fakeDispatcher{healthy: false}
	orc := newOrchestrator(store, dispatcher, SyncConfig{})

	result := orc.Sync(context.Background())

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.SyncedItems)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "sync", result.Errors[0].Operation)
	assert.Equal(t, "Offline", result.Errors[0].Error)

	// Queue was never touched.
	assert.Len(t, store.entries, 1)
	assert.Empty(t, dispatcher.batches)
	assert.Equal(t, domain.SyncStatusPending, store.tasks["t1"].SyncStatus)
}

func TestSyncSuccessMarksTaskAndPrunesQueue(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	task := pendingTask("t1", now)
	store.addTask(task)
	store.addEntry(entryFor(task, domain.OperationCreate, now))

	dispatcher := &fakeDispatcher{
		healthy: true,
		respond: func(batch remote.BatchRequest) (*remote.BatchResponse, error) {
			return &remote.BatchResponse{ProcessedItems: []remote.ProcessedItem{{
				ClientID: "t1",
				ServerID: "srv-1",
				Status:   remote.ItemStatusSuccess,
			}}}, nil
		},
	}
	orc := newOrchestrator(store, dispatcher, SyncConfig{})

	result := orc.Sync(context.Background())

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SyncedItems)
	assert.Equal(t, 0, result.FailedItems)

	synced := store.tasks["t1"]
	assert.Equal(t, domain.SyncStatusSynced, synced.SyncStatus)
	assert.Equal(t, "srv-1", synced.ServerID)
	require.NotNil(t, synced.LastSyncedAt)
	assert.Empty(t, store.entries)
}

func TestSyncConflictAppliesResolvedData(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	task := pendingTask("t1", now)
	store.addTask(task)
	store.addEntry(entryFor(task, domain.OperationUpdate, now))

	serverUpdated := now.Add(time.Hour)
	dispatcher := &fakeDispatcher{
		healthy: true,
		respond: func(batch remote.BatchRequest) (*remote.BatchResponse, error) {
			return &remote.BatchResponse{ProcessedItems: []remote.ProcessedItem{{
				ClientID: "t1",
				ServerID: "srv-1",
				Status:   remote.ItemStatusConflict,
				ResolvedData: &domain.TaskSnapshot{
					Version:   domain.SnapshotVersion,
					ID:        "t1",
					Title:     "Server title",
					UpdatedAt: serverUpdated,
				},
			}}}, nil
		},
	}
	orc := newOrchestrator(store, dispatcher, SyncConfig{})

	result := orc.Sync(context.Background())

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SyncedItems)

	resolved := store.tasks["t1"]
	assert.Equal(t, "Server title", resolved.Title)
	assert.Equal(t, domain.SyncStatusSynced, resolved.SyncStatus)
	assert.True(t, resolved.UpdatedAt.Equal(serverUpdated))
	assert.Empty(t, store.entries)
}

func TestSyncTransportFailureRetriesWholeBatch(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	for _, id := range []string{"t1", "t2"} {
		task := pendingTask(id, now)
		store.addTask(task)
		store.addEntry(entryFor(task, domain.OperationCreate, now))
		now = now.Add(time.Second)
	}

	dispatcher := &fakeDispatcher{
		healthy: true,
		respond: func(remote.BatchRequest) (*remote.BatchResponse, error) {
			return nil, domain.WrapError(domain.ErrCodeTransport, "batch dispatch failed", context.DeadlineExceeded)
		},
	}
	orc := newOrchestrator(store, dispatcher, SyncConfig{MaxRetries: 3})

	result := orc.Sync(context.Background())

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.FailedItems)
	assert.Len(t, result.Errors, 2)

	for _, entry := range store.entries {
		assert.Equal(t, 1, entry.RetryCount)
		assert.NotEmpty(t, entry.ErrorMessage)
	}
	// Below the ceiling: records stay pending for the next run.
	assert.Equal(t, domain.SyncStatusPending, store.tasks["t1"].SyncStatus)
}

func TestSyncRetryCeilingKeepsEntryAndStopsDispatch(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	task := pendingTask("t1", now)
	store.addTask(task)
	entry := entryFor(task, domain.OperationCreate, now)
	entry.RetryCount = 2
	store.addEntry(entry)

	dispatcher := &fakeDispatcher{
		healthy: true,
		respond: func(remote.BatchRequest) (*remote.BatchResponse, error) {
			return nil, domain.WrapError(domain.ErrCodeTransport, "batch dispatch failed", context.DeadlineExceeded)
		},
	}
	orc := newOrchestrator(store, dispatcher, SyncConfig{MaxRetries: 3})

	result := orc.Sync(context.Background())
	assert.False(t, result.Success)

	// Ceiling reached: record is terminal, entry is kept for inspection.
	require.Len(t, store.entries, 1)
	assert.Equal(t, 3, store.entries[0].RetryCount)
	assert.Equal(t, domain.SyncStatusError, store.tasks["t1"].SyncStatus)

	// The next run never dispatches the terminal entry.
	second := orc.Sync(context.Background())
	assert.True(t, second.Success)
	assert.Equal(t, 0, second.SyncedItems)
	assert.Equal(t, 0, second.FailedItems)
	assert.Len(t, dispatcher.batches, 1)
}

func TestSyncBatchesPreserveQueueOrder(t *testing.T) {
	store := newMemStore()
	base := time.Now()
	for i, id := range []string{"t1", "t2", "t3"} {
		task := pendingTask(id, base.Add(time.Duration(i)*time.Second))
		store.addTask(task)
		store.addEntry(entryFor(task, domain.OperationCreate, task.CreatedAt))
	}

	dispatcher := &fakeDispatcher{healthy: true}
	orc := newOrchestrator(store, dispatcher, SyncConfig{BatchSize: 2})

	result := orc.Sync(context.Background())

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.SyncedItems)

	require.Len(t, dispatcher.batches, 2)
	require.Len(t, dispatcher.batches[0], 2)
	require.Len(t, dispatcher.batches[1], 1)
	assert.Equal(t, "t1", dispatcher.batches[0][0].TaskID)
	assert.Equal(t, "t2", dispatcher.batches[0][1].TaskID)
	assert.Equal(t, "t3", dispatcher.batches[1][0].TaskID)
}

func TestSyncSecondRunIsIdempotent(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	task := pendingTask("t1", now)
	store.addTask(task)
	store.addEntry(entryFor(task, domain.OperationCreate, now))

	dispatcher := &fakeDispatcher{healthy: true}
	orc := newOrchestrator(store, dispatcher, SyncConfig{})

	first := orc.Sync(context.Background())
	assert.Equal(t, 1, first.SyncedItems)
	assert.Empty(t, store.entries)

	second := orc.Sync(context.Background())
	assert.True(t, second.Success)
	assert.Equal(t, 0, second.SyncedItems)
	assert.Len(t, dispatcher.batches, 1)
}

func TestSyncPerItemErrorOnlyRetriesThatEntry(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	good := pendingTask("t1", now)
	bad := pendingTask("t2", now.Add(time.Second))
	store.addTask(good)
	store.addTask(bad)
	store.addEntry(entryFor(good, domain.OperationCreate, good.CreatedAt))
	store.addEntry(entryFor(bad, domain.OperationCreate, bad.CreatedAt))

	dispatcher := &fakeDispatcher{
		healthy: true,
		respond: func(batch remote.BatchRequest) (*remote.BatchResponse, error) {
			return &remote.BatchResponse{ProcessedItems: []remote.ProcessedItem{
				{ClientID: "t1", ServerID: "srv-1", Status: remote.ItemStatusSuccess},
				{ClientID: "t2", Status: remote.ItemStatusError, Error: "invalid title"},
			}}, nil
		},
	}
	orc := newOrchestrator(store, dispatcher, SyncConfig{MaxRetries: 3})

	result := orc.Sync(context.Background())

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.SyncedItems)
	assert.Equal(t, 1, result.FailedItems)

	assert.Equal(t, domain.SyncStatusSynced, store.tasks["t1"].SyncStatus)
	assert.Equal(t, domain.SyncStatusPending, store.tasks["t2"].SyncStatus)
	require.Len(t, store.entries, 1)
	assert.Equal(t, "t2", store.entries[0].TaskID)
	assert.Equal(t, "invalid title", store.entries[0].ErrorMessage)
}

func TestSyncMissingResponseItemCountsAsFailure(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	task := pendingTask("t1", now)
	store.addTask(task)
	store.addEntry(entryFor(task, domain.OperationCreate, now))

	dispatcher := &fakeDispatcher{
		healthy: true,
		respond: func(remote.BatchRequest) (*remote.BatchResponse, error) {
			return &remote.BatchResponse{}, nil
		},
	}
	orc := newOrchestrator(store, dispatcher, SyncConfig{MaxRetries: 3})

	result := orc.Sync(context.Background())

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.FailedItems)
	require.Len(t, store.entries, 1)
	assert.Equal(t, 1, store.entries[0].RetryCount)
	assert.Contains(t, store.entries[0].ErrorMessage, "missing from batch response")
}

func TestSyncStateReturnsToIdle(t *testing.T) {
	store := newMemStore()
	dispatcher := &fakeDispatcher{healthy: true}
	orc := newOrchestrator(store, dispatcher, SyncConfig{})

	assert.Equal(t, SyncStateIdle, orc.State())
	orc.Sync(context.Background())
	assert.Equal(t, SyncStateIdle, orc.State())
}
