package services

import (
	"context"

	"github.com/taskmirror/backend/domain"
	"github.com/taskmirror/backend/internal/infrastructure/buffer"
	"github.com/taskmirror/backend/usecase"
)

// BufferBridge adapts the bbolt buffer store to the mutator's buffer port.
type BufferBridge struct {
	store *buffer.Store
}

func NewBufferBridge(store *buffer.Store) *BufferBridge {
	return &BufferBridge{store: store}
}

func (b *BufferBridge) BufferEntry(_ context.Context, entry domain.QueueEntry) error {
	if b.store == nil || entry.TaskID == "" {
		return domain.ErrInvalidPayload
	}
	return b.store.Enqueue(buffer.Item{
		ID:    entry.ID,
		Entry: entry,
	})
}

var _ usecase.OperationBuffer = (*BufferBridge)(nil)
