package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/taskmirror/backend/domain"
	"github.com/taskmirror/backend/internal/infrastructure/buffer"
	"github.com/taskmirror/backend/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the outage buffer is replayed.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

func (c *ProcessorConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
}

// BufferProcessor replays buffered mutations into the record store once
// the database is reachable again. Replay goes through the same atomic
// task+entry write as a live mutation, so the queue invariant holds for
// recovered operations too. Unlike the sync queue this buffer is
// best-effort: items that keep failing are eventually dropped.
type BufferProcessor struct {
	store   *buffer.Store
	monitor ConnectionHealth
	txStore repository.TxStore
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewBufferProcessor(store *buffer.Store, monitor ConnectionHealth, txStore repository.TxStore, logger *zap.Logger, cfg ProcessorConfig) *BufferProcessor {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BufferProcessor{
		store:   store,
		monitor: monitor,
		txStore: txStore,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start schedules periodic replay.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron != nil {
		return
	}
	bp.cron = cron.New(cron.WithSeconds())
	_, _ = bp.cron.AddFunc(everySchedule(bp.cfg.Interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), bp.cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("buffer replay failed", zap.Error(err))
		}
	})
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop halts the schedule, waiting for an in-flight replay.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	select {
	case <-bp.cron.Stop().Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Drain replays one batch of buffered mutations synchronously.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer replay (record store offline)")
		return nil
	}

	if bp.cfg.Retention > 0 {
		if err := bp.store.Cleanup(time.Now().Add(-bp.cfg.Retention)); err != nil {
			bp.logger.Warn("buffer cleanup failed", zap.Error(err))
		}
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		err := bp.replay(ctx, item)
		if err == nil {
			if err := bp.store.Remove(item); err != nil {
				bp.logger.Warn("failed to purge replayed mutation", zap.Error(err))
			}
			continue
		}

		bp.logger.Error("failed to replay buffered mutation",
			zap.String("item_id", item.ID),
			zap.String("operation", item.Entry.Operation),
			zap.Error(err))
		bp.retryOrDrop(item)
	}
	return nil
}

// retryOrDrop bumps the item's retry count and moves it to the back of
// the buffer, or discards it once the cap is hit.
func (bp *BufferProcessor) retryOrDrop(item buffer.Item) {
	item.Retries++
	if item.Retries >= bp.cfg.MaxRetries {
		bp.logger.Warn("dropping buffered mutation (max retries reached)", zap.String("item_id", item.ID))
		_ = bp.store.Remove(item)
		return
	}
	if err := bp.store.Remove(item); err != nil {
		bp.logger.Warn("failed to remove buffered mutation", zap.Error(err))
	}
	if err := bp.store.Requeue(item); err != nil {
		bp.logger.Error("failed to requeue buffered mutation", zap.Error(err))
	}
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (bp *BufferProcessor) replay(ctx context.Context, item buffer.Item) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch item.Entry.Operation {
	case domain.OperationCreate, domain.OperationUpdate, domain.OperationDelete:
		entry := item.Entry
		task := taskFromSnapshot(entry.Payload)
		return bp.txStore.SaveTaskWithEntry(ctx, task, &entry)
	default:
		return fmt.Errorf("unsupported operation %s", item.Entry.Operation)
	}
}

// taskFromSnapshot rebuilds the record row a buffered entry describes.
// The record is pending again: it still has to reach the remote authority.
func taskFromSnapshot(s domain.TaskSnapshot) *domain.Task {
	return &domain.Task{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Completed:   s.Completed,
		IsDeleted:   s.IsDeleted,
		SyncStatus:  domain.SyncStatusPending,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// everySchedule renders an interval as a cron "@every" expression.
func everySchedule(interval time.Duration) string {
	return fmt.Sprintf("@every %ds", int(interval.Seconds()))
}
