package usecase

import (
	"context"

	"github.com/taskmirror/backend/domain"
)

// OperationBuffer abstracts the outage buffer so use cases stay storage-agnostic.
// A buffered entry carries its full snapshot, so replay never needs the
// record store state at buffering time.
type OperationBuffer interface {
	BufferEntry(ctx context.Context, entry domain.QueueEntry) error
}
