package repository

import (
	"context"

	"github.com/taskmirror/backend/domain"
)

// SyncReportRepository caches the most recent sync run outcome for
// status queries.
type SyncReportRepository interface {
	SaveLast(ctx context.Context, result *domain.SyncResult) error
	Last(ctx context.Context) (*domain.SyncResult, error)
}
