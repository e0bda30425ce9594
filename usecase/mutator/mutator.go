package mutator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskmirror/backend/domain"
	"github.com/taskmirror/backend/repository"
	"github.com/taskmirror/backend/usecase"
)

// CreateInput carries the fields accepted for a new task.
type CreateInput struct {
	Title       string
	Description string
}

// Patch describes a partial update; nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	Completed   *bool
}

// Mutator applies local create/update/delete to the record store and
// appends the matching queue entry in the same transaction. Every
// successful call leaves exactly one new durable queue entry behind.
type Mutator struct {
	tasks  repository.TaskRepository
	store  repository.TxStore
	buffer usecase.OperationBuffer
	logger *zap.Logger
	now    func() time.Time
}

func New(tasks repository.TaskRepository, store repository.TxStore, buffer usecase.OperationBuffer, logger *zap.Logger) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mutator{
		tasks:  tasks,
		store:  store,
		buffer: buffer,
		logger: logger,
		now:    time.Now,
	}
}

func (m *Mutator) Create(ctx context.Context, input CreateInput) (*domain.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domain.ErrEmptyTitle
	}

	now := m.now()
	task := &domain.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: input.Description,
		SyncStatus:  domain.SyncStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := m.persist(ctx, domain.OperationCreate, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (m *Mutator) Update(ctx context.Context, id string, patch Patch) (*domain.Task, error) {
	task, err := m.mutable(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, domain.ErrEmptyTitle
		}
		task.Title = title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}

	task.UpdatedAt = m.now()
	task.SyncStatus = domain.SyncStatusPending

	if err := m.persist(ctx, domain.OperationUpdate, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (m *Mutator) Delete(ctx context.Context, id string) error {
	task, err := m.mutable(ctx, id)
	if err != nil {
		return err
	}

	task.IsDeleted = true
	task.UpdatedAt = m.now()
	task.SyncStatus = domain.SyncStatusPending

	return m.persist(ctx, domain.OperationDelete, task)
}

// mutable loads a task and rejects mutations on soft-deleted records.
func (m *Mutator) mutable(ctx context.Context, id string) (*domain.Task, error) {
	task, err := m.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.IsDeleted {
		return nil, domain.ErrTaskGone
	}
	return task, nil
}

func (m *Mutator) persist(ctx context.Context, operation string, task *domain.Task) error {
	entry := &domain.QueueEntry{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		Operation: operation,
		Payload:   task.Snapshot(),
		CreatedAt: task.UpdatedAt,
	}

	err := m.store.SaveTaskWithEntry(ctx, task, entry)
	if err == nil {
		return nil
	}

	// Only availability failures fall back to the outage buffer. Anything
	// else is a real write error the caller has to see.
	if m.buffer != nil && domain.IsDomainError(err, domain.ErrCodeUnavailable) {
		if bufErr := m.buffer.BufferEntry(ctx, *entry); bufErr != nil {
			m.logger.Error("failed to buffer mutation",
				zap.String("operation", operation),
				zap.Error(bufErr))
			return err
		}
		m.logger.Warn("mutation buffered, record store unavailable",
			zap.String("operation", operation),
			zap.String("task_id", task.ID))
		return nil
	}

	return err
}
