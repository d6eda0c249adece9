package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	redisadapter "prodigy/internal/adapters/redis"
	"prodigy/internal/domain/counsel"
	"prodigy/pkg/errors"
)

const (
	runKeyPrefix  = "prodigy:run:"
	recentRunsKey = "prodigy:runs:recent"
	recentRunsCap = 500
)

var _ counsel.Repository = (*RunCache)(nil)

// RunCache keeps recent run records in Redis with a TTL, plus a sorted set
// of ids by completion time for listing.
type RunCache struct {
	client *redisadapter.Client
	ttl    time.Duration
}

func NewRunCache(client *redisadapter.Client, ttl time.Duration) *RunCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RunCache{client: client, ttl: ttl}
}

// Save stores the run record and indexes it by completion time
func (r *RunCache) Save(ctx context.Context, run *counsel.Run) error {
	rec, err := counsel.NewRecord(run)
	if err != nil {
		return errors.Wrapf(err, "encode run %s", run.ID)
	}

	if err := r.client.Set(ctx, r.key(rec.ID), rec, r.ttl); err != nil {
		return errors.Wrapf(err, "cache run %s", rec.ID)
	}

	rdb := r.client.Client()
	_, err = rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, recentRunsKey, redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: rec.ID.String()})
		pipe.ZRemRangeByRank(ctx, recentRunsKey, 0, -recentRunsCap-1)
		pipe.Expire(ctx, recentRunsKey, r.ttl)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "index run %s", rec.ID)
	}
	return nil
}

// Get returns a cached run or ErrNotFound
func (r *RunCache) Get(ctx context.Context, id uuid.UUID) (*counsel.Record, error) {
	var rec counsel.Record
	if err := r.client.Get(ctx, r.key(id), &rec); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Wrapf(errors.ErrNotFound, "run %s", id)
		}
		return nil, errors.Wrapf(err, "get cached run %s", id)
	}
	return &rec, nil
}

// List returns up to limit cached runs, newest first. Expired entries are skipped.
func (r *RunCache) List(ctx context.Context, limit int) ([]*counsel.Record, error) {
	if limit <= 0 {
		limit = 20
	}

	ids, err := r.client.Client().ZRevRange(ctx, recentRunsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list cached runs")
	}

	records := make([]*counsel.Record, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		rec, err := r.Get(ctx, id)
		if errors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *RunCache) key(id uuid.UUID) string {
	return fmt.Sprintf("%s%s", runKeyPrefix, id)
}
