package redis

import (
	"context"
	"encoding/json"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/taskmirror/backend/domain"
	"github.com/taskmirror/backend/repository"
)

type syncReportRepository struct {
	client *redislib.Client
	key    string
	ttl    time.Duration
}

// NewSyncReportRepository creates a Redis-backed cache for the most recent
// sync run report.
func NewSyncReportRepository(client *redislib.Client, ttl time.Duration) repository.SyncReportRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &syncReportRepository{
		client: client,
		key:    "sync:last_report",
		ttl:    ttl,
	}
}

func (r *syncReportRepository) SaveLast(ctx context.Context, result *domain.SyncResult) error {
	if result == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, payload, r.ttl).Err()
}

func (r *syncReportRepository) Last(ctx context.Context) (*domain.SyncResult, error) {
	raw, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if err == redislib.Nil {
			return nil, nil
		}
		return nil, err
	}

	var result domain.SyncResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
