package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskmirror/backend/internal/infrastructure/buffer"
)

const (
	databaseProbeTimeout = 3 * time.Second
	redisProbeTimeout    = 2 * time.Second
)

// RemoteProbe abstracts the remote authority health check.
type RemoteProbe interface {
	Healthy() bool
}

// Monitor polls every dependency on an interval and exposes the latest
// snapshot. IsOnline reflects only the local record store: buffered
// mutations can replay while the remote authority is still down.
type Monitor struct {
	pg     *pgxpool.Pool
	redis  *redislib.Client
	remote RemoteProbe
	buffer *buffer.Store

	interval time.Duration
	logger   *zap.Logger
	stopCh   chan struct{}

	mu     sync.RWMutex
	status Status
}

func New(pg *pgxpool.Pool, redis *redislib.Client, remote RemoteProbe, buf *buffer.Store, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		pg:       pg,
		redis:    redis,
		remote:   remote,
		buffer:   buf,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (m *Monitor) Start() {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.refresh()
		for {
			select {
			case <-ticker.C:
				m.refresh()
			case <-m.stopCh:
				return
			}
		}
	}()
}

func (m *Monitor) Stop() {
	close(m.stopCh)
}

// IsOnline reports record store reachability.
func (m *Monitor) IsOnline() bool {
	return m.GetStatus().Database
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) refresh() {
	var next Status
	next.LastCheck = time.Now()

	if m.pg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), databaseProbeTimeout)
		next.Database = m.pg.Ping(ctx) == nil
		cancel()
	}
	if m.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), redisProbeTimeout)
		next.Redis = m.redis.Ping(ctx).Err() == nil
		cancel()
	}
	if m.remote != nil {
		next.Remote = m.remote.Healthy()
	}
	if m.buffer != nil {
		size, err := m.buffer.Size()
		next.BufferSize = size
		next.Buffer = err == nil
		if err != nil {
			m.logger.Warn("buffer size probe failed", zap.Error(err))
		}
	}

	m.mu.Lock()
	m.status = next
	m.mu.Unlock()
}
