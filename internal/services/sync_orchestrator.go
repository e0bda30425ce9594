package services

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taskmirror/backend/domain"
	"github.com/taskmirror/backend/internal/infrastructure/remote"
	"github.com/taskmirror/backend/repository"
)

// SyncState is the orchestrator's current position in a run.
type SyncState int32

const (
	SyncStateIdle SyncState = iota
	SyncStateCheckingConnectivity
	SyncStateDraining
)

func (s SyncState) String() string {
	switch s {
	case SyncStateCheckingConnectivity:
		return "checking_connectivity"
	case SyncStateDraining:
		return "draining"
	default:
		return "idle"
	}
}

// Dispatcher abstracts the remote authority boundary.
type Dispatcher interface {
	Healthy() bool
	PushBatch(batch remote.BatchRequest) (*remote.BatchResponse, error)
}

// SyncConfig controls batching and the retry ceiling.
type SyncConfig struct {
	BatchSize  int
	MaxRetries int
}

// SyncOrchestrator drains the operation queue in ordered batches and
// reconciles remote verdicts back into the record store. A run is strictly
// sequential; callers are responsible for not starting two runs at once
// (see SyncTrigger).
type SyncOrchestrator struct {
	queue      repository.QueueRepository
	store      repository.TxStore
	dispatcher Dispatcher
	logger     *zap.Logger
	cfg        SyncConfig
	state      atomic.Int32
	now        func() time.Time
}

func NewSyncOrchestrator(
	queue repository.QueueRepository,
	store repository.TxStore,
	dispatcher Dispatcher,
	logger *zap.Logger,
	cfg SyncConfig,
) *SyncOrchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncOrchestrator{
		queue:      queue,
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// State reports the current run phase for status endpoints.
func (o *SyncOrchestrator) State() SyncState {
	return SyncState(o.state.Load())
}

// Sync performs one full run: connectivity check, then sequential batches
// until the queue is drained. Already-applied successes are never rolled
// back when later batches fail.
func (o *SyncOrchestrator) Sync(ctx context.Context) *domain.SyncResult {
	result := &domain.SyncResult{
		Success:   true,
		StartedAt: o.now(),
	}
	defer func() {
		result.FinishedAt = o.now()
		o.state.Store(int32(SyncStateIdle))
	}()

	o.state.Store(int32(SyncStateCheckingConnectivity))
	if !o.dispatcher.Healthy() {
		o.logger.Info("sync skipped, remote authority offline")
		result.AddIssue("sync", "", "Offline")
		return result
	}

	o.state.Store(int32(SyncStateDraining))
	entries, err := o.queue.Pending(ctx)
	if err != nil {
		o.logger.Error("failed to read operation queue", zap.Error(err))
		result.AddIssue("sync", "", err.Error())
		return result
	}
	if len(entries) == 0 {
		return result
	}

	o.logger.Info("sync run started",
		zap.Int("pending", len(entries)),
		zap.Int("batch_size", o.cfg.BatchSize))

	for start := 0; start < len(entries); start += o.cfg.BatchSize {
		end := start + o.cfg.BatchSize
		if end > len(entries) {
			end = len(entries)
		}
		o.processBatch(ctx, entries[start:end], result)
	}

	o.logger.Info("sync run finished",
		zap.Int("synced", result.SyncedItems),
		zap.Int("failed", result.FailedItems))
	return result
}

func (o *SyncOrchestrator) processBatch(ctx context.Context, batch []domain.QueueEntry, result *domain.SyncResult) {
	resp, err := o.dispatcher.PushBatch(remote.BatchRequest{
		Items:           batch,
		ClientTimestamp: o.now(),
	})
	if err != nil {
		// Transport failure: no per-item verdicts, so every entry in the
		// batch takes a retry hit. Later batches still get their chance.
		o.logger.Warn("batch dispatch failed", zap.Int("size", len(batch)), zap.Error(err))
		for _, entry := range batch {
			o.handleRetry(ctx, entry, err.Error(), result)
		}
		return
	}

	// One verdict per request item, matched by client_id echoing the task id.
	// Multiple entries for the same task consume verdicts oldest-first.
	pending := make(map[string][]domain.QueueEntry, len(batch))
	for _, entry := range batch {
		pending[entry.TaskID] = append(pending[entry.TaskID], entry)
	}

	for _, item := range resp.ProcessedItems {
		queue := pending[item.ClientID]
		if len(queue) == 0 {
			o.logger.Warn("verdict for unknown client id", zap.String("client_id", item.ClientID))
			continue
		}
		entry := queue[0]
		pending[item.ClientID] = queue[1:]

		switch item.Status {
		case remote.ItemStatusSuccess, remote.ItemStatusConflict:
			// Conflict verdicts carry the authority's resolution and are
			// applied exactly like plain successes.
			o.applyAccepted(ctx, entry, item, result)
		case remote.ItemStatusError:
			message := item.Error
			if message == "" {
				message = "remote authority rejected item"
			}
			o.handleRetry(ctx, entry, message, result)
		default:
			o.handleRetry(ctx, entry, "unknown item status "+item.Status, result)
		}
	}

	// Request items the authority never answered count as failed too.
	for _, leftovers := range pending {
		for _, entry := range leftovers {
			o.handleRetry(ctx, entry, "missing from batch response", result)
		}
	}
}

func (o *SyncOrchestrator) applyAccepted(ctx context.Context, entry domain.QueueEntry, item remote.ProcessedItem, result *domain.SyncResult) {
	if err := o.store.MarkTaskSynced(ctx, entry.TaskID, item.ServerID, o.now(), item.ResolvedData); err != nil {
		// The remote already accepted the item; failing to record that
		// locally must be visible, not silently swallowed.
		o.logger.Error("failed to apply accepted item",
			zap.String("task_id", entry.TaskID),
			zap.Error(err))
		result.FailedItems++
		result.AddIssue(entry.Operation, entry.TaskID, "apply failed: "+err.Error())
		return
	}
	result.SyncedItems++
}

// handleRetry runs the per-entry retry bookkeeping. Reaching the ceiling
// flips the task to terminal error status but keeps the entry around for
// inspection or a future manual reset.
func (o *SyncOrchestrator) handleRetry(ctx context.Context, entry domain.QueueEntry, message string, result *domain.SyncResult) {
	entry.RetryCount++
	terminal := entry.RetryCount >= o.cfg.MaxRetries

	if err := o.store.RecordEntryFailure(ctx, entry.ID, entry.TaskID, message, entry.RetryCount, terminal); err != nil {
		o.logger.Error("failed to record entry failure",
			zap.String("entry_id", entry.ID),
			zap.Error(err))
		message = message + "; bookkeeping failed: " + err.Error()
	}

	if terminal {
		o.logger.Warn("queue entry reached retry ceiling",
			zap.String("entry_id", entry.ID),
			zap.String("task_id", entry.TaskID),
			zap.Int("retry_count", entry.RetryCount))
	}

	result.FailedItems++
	result.AddIssue(entry.Operation, entry.TaskID, message)
}
