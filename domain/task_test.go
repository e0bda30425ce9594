package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotFreezesTaskFields(t *testing.T) {
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	task := &Task{
		ID:          "task-1",
		Title:       "Buy milk",
		Description: "two liters",
		Completed:   true,
		IsDeleted:   false,
		SyncStatus:  SyncStatusPending,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}

	snap := task.Snapshot()

	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Equal(t, "task-1", snap.ID)
	assert.Equal(t, "Buy milk", snap.Title)
	assert.Equal(t, "two liters", snap.Description)
	assert.True(t, snap.Completed)
	assert.Equal(t, updated, snap.UpdatedAt)

	// Mutations after the snapshot must not leak into it.
	task.Title = "changed"
	assert.Equal(t, "Buy milk", snap.Title)
}

func TestApplyOverwritesMutableFields(t *testing.T) {
	task := &Task{
		ID:         "task-1",
		Title:      "local title",
		Completed:  false,
		SyncStatus: SyncStatusPending,
		ServerID:   "srv-1",
		UpdatedAt:  time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}

	resolved := TaskSnapshot{
		Version:     SnapshotVersion,
		ID:          "task-1",
		Title:       "server title",
		Description: "server wins",
		Completed:   true,
		UpdatedAt:   time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC),
	}

	resolved.Apply(task)

	assert.Equal(t, "server title", task.Title)
	assert.Equal(t, "server wins", task.Description)
	assert.True(t, task.Completed)
	assert.Equal(t, resolved.UpdatedAt, task.UpdatedAt)

	// Identity and sync bookkeeping are untouched.
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, "srv-1", task.ServerID)
	assert.Equal(t, SyncStatusPending, task.SyncStatus)
}

func TestApplyKeepsUpdatedAtWhenSnapshotHasNone(t *testing.T) {
	updated := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	task := &Task{ID: "task-1", Title: "local", UpdatedAt: updated}

	TaskSnapshot{ID: "task-1", Title: "remote"}.Apply(task)

	assert.Equal(t, "remote", task.Title)
	assert.Equal(t, updated, task.UpdatedAt)
}
