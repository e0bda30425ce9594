package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskmirror/backend/domain"
	"github.com/taskmirror/backend/repository"
)

type queueRepository struct {
	pool *pgxpool.Pool
}

// NewQueueRepository returns a Postgres-backed implementation of QueueRepository.
func NewQueueRepository(pool *pgxpool.Pool) repository.QueueRepository {
	return &queueRepository{pool: pool}
}

func (r *queueRepository) Pending(ctx context.Context) ([]domain.QueueEntry, error) {
	// Entries whose task already hit the retry ceiling stay in the table
	// for inspection but are never dispatched again.
	const query = `
	SELECT q.id, q.task_id, q.operation, q.payload, q.retry_count, q.error_message, q.created_at
	FROM sync_queue q
	JOIN tasks t ON t.id = q.task_id
	WHERE t.sync_status <> 'error'
	ORDER BY q.created_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *queueRepository) ForTask(ctx context.Context, taskID string) ([]domain.QueueEntry, error) {
	const query = `
	SELECT id, task_id, operation, payload, retry_count, error_message, created_at
	FROM sync_queue
	WHERE task_id = $1
	ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *queueRepository) Size(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count)
	return count, err
}

func collectEntries(rows pgx.Rows) ([]domain.QueueEntry, error) {
	var entries []domain.QueueEntry
	for rows.Next() {
		var entry domain.QueueEntry
		var payload []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.TaskID,
			&entry.Operation,
			&payload,
			&entry.RetryCount,
			&entry.ErrorMessage,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &entry.Payload); err != nil {
			return nil, domain.WrapError(domain.ErrCodeInternal, "corrupt queue payload", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
