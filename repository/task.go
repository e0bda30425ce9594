package repository

import (
	"context"

	"github.com/taskmirror/backend/domain"
)

type TaskFilter struct {
	Status         string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// TaskRepository provides read access to the record store. All writes go
// through TxStore so a record change and its queue entry stay atomic.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
}
