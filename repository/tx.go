package repository

import (
	"context"
	"time"

	"github.com/taskmirror/backend/domain"
)

// TxStore groups the composite writes that must be atomic with respect to
// crash recovery. Each method runs its statements in a single database
// transaction: a record is never persisted without its queue entry, and a
// record is never marked synced while stale entries still point at it.
type TxStore interface {
	// SaveTaskWithEntry upserts the task and appends the queue entry.
	SaveTaskWithEntry(ctx context.Context, task *domain.Task, entry *domain.QueueEntry) error

	// MarkTaskSynced sets sync_status=synced, records server_id and
	// last_synced_at, optionally applies a remote-resolved snapshot, and
	// prunes every queue entry for the task.
	MarkTaskSynced(ctx context.Context, taskID, serverID string, syncedAt time.Time, resolved *domain.TaskSnapshot) error

	// RecordEntryFailure bumps the entry's retry counter and stores the
	// failure reason. When terminal is true the task is flipped to
	// sync_status=error in the same transaction; the entry itself is kept.
	RecordEntryFailure(ctx context.Context, entryID, taskID, message string, retryCount int, terminal bool) error
}
