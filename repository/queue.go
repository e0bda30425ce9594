package repository

import (
	"context"

	"github.com/taskmirror/backend/domain"
)

// QueueRepository provides read access to the pending operation queue.
type QueueRepository interface {
	// Pending returns queue entries ordered by created_at ascending,
	// excluding entries whose task has reached terminal error status.
	Pending(ctx context.Context) ([]domain.QueueEntry, error)
	// ForTask returns all entries referencing the given task id, oldest first.
	ForTask(ctx context.Context, taskID string) ([]domain.QueueEntry, error)
	// Size counts every entry in the queue, terminal ones included.
	Size(ctx context.Context) (int, error)
}
