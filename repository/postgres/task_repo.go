package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskmirror/backend/domain"
	"github.com/taskmirror/backend/repository"
)

const taskColumns = `id, title, description, completed, is_deleted, sync_status, server_id, created_at, updated_at, last_synced_at`

const maxListLimit = 100

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns the Postgres-backed read side of the record store.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	task, err := scanTask(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	return task, err
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE ($1 = '' OR sync_status = $1)
	  AND ($2 OR NOT is_deleted)
	ORDER BY created_at DESC
	LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, filter.Status, filter.IncludeDeleted, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(scan func(dest ...interface{}) error) (*domain.Task, error) {
	var task domain.Task
	err := scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Completed,
		&task.IsDeleted,
		&task.SyncStatus,
		&task.ServerID,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.LastSyncedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}
