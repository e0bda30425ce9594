package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmirror/backend/domain"
)

// blockingDispatcher holds the health probe until released so a run can be
// kept in flight from the test.
type blockingDispatcher struct {
	fakeDispatcher
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (d *blockingDispatcher) Healthy() bool {
	d.once.Do(func() { close(d.started) })
	<-d.release
	return d.fakeDispatcher.healthy
}

type fakeReports struct {
	saved   []*domain.SyncResult
	saveErr error
}

func (r *fakeReports) SaveLast(_ context.Context, result *domain.SyncResult) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, result)
	return nil
}

func (r *fakeReports) Last(_ context.Context) (*domain.SyncResult, error) {
	if len(r.saved) == 0 {
		return nil, nil
	}
	return r.saved[len(r.saved)-1], nil
}

func TestTriggerRejectsConcurrentRuns(t *testing.T) {
	store := newMemStore()
	dispatcher := &blockingDispatcher{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	orc := newOrchestrator(store, dispatcher, SyncConfig{})
	trigger := NewSyncTrigger(orc, nil, nil, TriggerConfig{Interval: time.Hour})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := trigger.Run(context.Background())
		assert.NoError(t, err)
	}()

	<-dispatcher.started
	_, err := trigger.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrSyncInFlight)

	close(dispatcher.release)
	<-done

	// With the first run finished, triggering works again.
	_, err = trigger.Run(context.Background())
	assert.NoError(t, err)
}

func TestTriggerCachesRunReport(t *testing.T) {
	store := newMemStore()
	dispatcher := &fakeDispatcher{healthy: true}
	orc := newOrchestrator(store, dispatcher, SyncConfig{})
	reports := &fakeReports{}
	trigger := NewSyncTrigger(orc, reports, nil, TriggerConfig{Interval: time.Hour})

	result, err := trigger.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports.saved, 1)
	assert.Equal(t, result, reports.saved[0])

	last, err := trigger.LastReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result, last)
}

func TestTriggerReportCacheFailureIsNonFatal(t *testing.T) {
	store := newMemStore()
	dispatcher := &fakeDispatcher{healthy: true}
	orc := newOrchestrator(store, dispatcher, SyncConfig{})
	reports := &fakeReports{saveErr: errors.New("redis gone")}
	trigger := NewSyncTrigger(orc, reports, nil, TriggerConfig{Interval: time.Hour})

	result, err := trigger.Run(context.Background())
	require.NoError(t, err)

	// The run outcome stands; the cache failure shows up as an issue.
	assert.True(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "report", result.Errors[0].Operation)
	assert.Contains(t, result.Errors[0].Error, "redis gone")
}
