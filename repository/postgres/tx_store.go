package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskmirror/backend/domain"
	"github.com/taskmirror/backend/repository"
)

type txStore struct {
	pool *pgxpool.Pool
}

// NewTxStore returns the transactional write half of the record store.
func NewTxStore(pool *pgxpool.Pool) repository.TxStore {
	return &txStore{pool: pool}
}

func (s *txStore) SaveTaskWithEntry(ctx context.Context, task *domain.Task, entry *domain.QueueEntry) error {
	if task == nil || entry == nil {
		return domain.ErrInvalidPayload
	}

	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrCodeUnavailable, "record store unavailable", err)
	}
	defer tx.Rollback(ctx)

	const upsertTask = `
	INSERT INTO tasks (id, title, description, completed, is_deleted, sync_status, server_id, created_at, updated_at, last_synced_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		completed = EXCLUDED.completed,
		is_deleted = EXCLUDED.is_deleted,
		sync_status = EXCLUDED.sync_status,
		updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.Exec(ctx, upsertTask,
		task.ID,
		task.Title,
		task.Description,
		task.Completed,
		task.IsDeleted,
		task.SyncStatus,
		task.ServerID,
		task.CreatedAt,
		task.UpdatedAt,
		task.LastSyncedAt,
	); err != nil {
		return err
	}

	const insertEntry = `
	INSERT INTO sync_queue (id, task_id, operation, payload, retry_count, error_message, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.Exec(ctx, insertEntry,
		entry.ID,
		entry.TaskID,
		entry.Operation,
		payload,
		entry.RetryCount,
		entry.ErrorMessage,
		entry.CreatedAt,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *txStore) MarkTaskSynced(ctx context.Context, taskID, serverID string, syncedAt time.Time, resolved *domain.TaskSnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrCodeUnavailable, "record store unavailable", err)
	}
	defer tx.Rollback(ctx)

	if resolved != nil {
		const applyResolved = `
		UPDATE tasks
		SET title = $2,
			description = $3,
			completed = $4,
			is_deleted = $5,
			updated_at = $6,
			sync_status = 'synced',
			server_id = $7,
			last_synced_at = $8
		WHERE id = $1
		`
		updatedAt := resolved.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = syncedAt
		}
		tag, err := tx.Exec(ctx, applyResolved,
			taskID,
			resolved.Title,
			resolved.Description,
			resolved.Completed,
			resolved.IsDeleted,
			updatedAt,
			serverID,
			syncedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrTaskNotFound
		}
	} else {
		const markSynced = `
		UPDATE tasks
		SET sync_status = 'synced',
			server_id = $2,
			last_synced_at = $3
		WHERE id = $1
		`
		tag, err := tx.Exec(ctx, markSynced, taskID, serverID, syncedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrTaskNotFound
		}
	}

	// Eager prune: synced records must have no entries left behind.
	if _, err := tx.Exec(ctx, `DELETE FROM sync_queue WHERE task_id = $1`, taskID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *txStore) RecordEntryFailure(ctx context.Context, entryID, taskID, message string, retryCount int, terminal bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrCodeUnavailable, "record store unavailable", err)
	}
	defer tx.Rollback(ctx)

	const bumpEntry = `
	UPDATE sync_queue
	SET retry_count = $2,
		error_message = $3
	WHERE id = $1
	`
	if _, err := tx.Exec(ctx, bumpEntry, entryID, retryCount, message); err != nil {
		return err
	}

	if terminal {
		if _, err := tx.Exec(ctx, `UPDATE tasks SET sync_status = 'error' WHERE id = $1`, taskID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
