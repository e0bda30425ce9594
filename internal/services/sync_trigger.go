package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/taskmirror/backend/domain"
	"github.com/taskmirror/backend/repository"
)

// TriggerConfig controls the periodic schedule and the per-run deadline.
type TriggerConfig struct {
	Interval   time.Duration
	RunTimeout time.Duration
}

// SyncTrigger is the single entry point for starting sync runs. It
// serializes runs with a mutex (the orchestrator itself does not), drives
// the periodic schedule, and caches the last run report.
type SyncTrigger struct {
	orchestrator *SyncOrchestrator
	reports      repository.SyncReportRepository
	logger       *zap.Logger
	cron         *cron.Cron
	cfg          TriggerConfig
	mu           sync.Mutex
}

func NewSyncTrigger(
	orchestrator *SyncOrchestrator,
	reports repository.SyncReportRepository,
	logger *zap.Logger,
	cfg TriggerConfig,
) *SyncTrigger {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &SyncTrigger{
		orchestrator: orchestrator,
		reports:      reports,
		logger:       logger,
		cfg:          cfg,
		cron:         cron.New(cron.WithSeconds()),
	}

	_, _ = t.cron.AddFunc(everySchedule(cfg.Interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
		defer cancel()
		if _, err := t.Run(ctx); err != nil && !domain.IsDomainError(err, domain.ErrCodeConflict) {
			t.logger.Error("scheduled sync failed", zap.Error(err))
		}
	})

	return t
}

// Start launches the periodic schedule.
func (t *SyncTrigger) Start() {
	if t == nil || t.cron == nil {
		return
	}
	t.cron.Start()
	t.logger.Info("sync trigger started", zap.Duration("interval", t.cfg.Interval))
}

// Stop gracefully stops the schedule, waiting for an in-flight run.
func (t *SyncTrigger) Stop(ctx context.Context) {
	if t == nil || t.cron == nil {
		return
	}
	stopCtx := t.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	t.logger.Info("sync trigger stopped")
}

// TriggerNow runs a sync under the trigger's own run deadline, independent
// of the caller's request lifetime.
func (t *SyncTrigger) TriggerNow() (*domain.SyncResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.RunTimeout)
	defer cancel()
	return t.Run(ctx)
}

// Run executes one sync run unless another is already in flight.
func (t *SyncTrigger) Run(ctx context.Context) (*domain.SyncResult, error) {
	if !t.mu.TryLock() {
		return nil, domain.ErrSyncInFlight
	}
	defer t.mu.Unlock()

	result := t.orchestrator.Sync(ctx)

	if t.reports != nil {
		if err := t.reports.SaveLast(ctx, result); err != nil {
			// Recorded in the report rather than dropped, but a stale
			// status cache does not fail the run itself.
			t.logger.Warn("failed to cache sync report", zap.Error(err))
			result.Errors = append(result.Errors, domain.SyncIssue{
				Operation: "report",
				Error:     "report cache write failed: " + err.Error(),
			})
		}
	}

	if err := flattenIssues(result); err != nil {
		t.logger.Warn("sync run completed with failures", zap.Error(err))
	}
	return result, nil
}

// LastReport returns the cached report of the most recent run, if any.
func (t *SyncTrigger) LastReport(ctx context.Context) (*domain.SyncResult, error) {
	if t.reports == nil {
		return nil, nil
	}
	return t.reports.Last(ctx)
}

// State exposes the orchestrator phase for status endpoints.
func (t *SyncTrigger) State() SyncState {
	return t.orchestrator.State()
}

func flattenIssues(result *domain.SyncResult) error {
	var merr *multierror.Error
	for _, issue := range result.Errors {
		if issue.TaskID != "" {
			merr = multierror.Append(merr, fmt.Errorf("%s %s: %s", issue.Operation, issue.TaskID, issue.Error))
			continue
		}
		merr = multierror.Append(merr, fmt.Errorf("%s: %s", issue.Operation, issue.Error))
	}
	return merr.ErrorOrNil()
}
