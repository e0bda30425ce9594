package domain

import "time"

// SyncStatus tracks how a task relates to the remote authority.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusError   SyncStatus = "error"
)

// Task represents a locally owned record mirrored to the remote authority.
// Deletes are soft: the row stays forever so reconciliation can see it.
type Task struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Completed    bool       `json:"completed"`
	IsDeleted    bool       `json:"is_deleted"`
	SyncStatus   SyncStatus `json:"sync_status"`
	ServerID     string     `json:"server_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

func (t *Task) IsSynced() bool {
	return t != nil && t.SyncStatus == SyncStatusSynced
}

// Snapshot captures the task's current field values for a queue entry payload.
func (t *Task) Snapshot() TaskSnapshot {
	return TaskSnapshot{
		Version:     SnapshotVersion,
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		IsDeleted:   t.IsDeleted,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// SnapshotVersion is the current TaskSnapshot schema version.
const SnapshotVersion = 1

// TaskSnapshot is the self-contained payload stored with a queue entry.
// It never references the record store again: replay and dispatch work
// from the values frozen at enqueue time.
type TaskSnapshot struct {
	Version     int       `json:"version"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	IsDeleted   bool      `json:"is_deleted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Apply overwrites the task's mutable fields with the snapshot values.
// Used when the remote authority returns resolved data for a conflict.
func (s TaskSnapshot) Apply(t *Task) {
	if t == nil {
		return
	}
	t.Title = s.Title
	t.Description = s.Description
	t.Completed = s.Completed
	t.IsDeleted = s.IsDeleted
	if !s.UpdatedAt.IsZero() {
		t.UpdatedAt = s.UpdatedAt
	}
}
