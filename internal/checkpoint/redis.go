package checkpoint

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
)

type RedisStore struct {
	client     *redis.Client
	expiration time.Duration
}

func NewRedisStore(client *redis.Client, expiration time.Duration) *RedisStore {
	return &RedisStore{
		client:     client,
		expiration: expiration,
	}
}

func (s *RedisStore) Save(ctx context.Context, runID string, householdID int64, counts map[domain.Stage]int) error {
	if len(counts) == 0 {
		return nil
	}

	key := countsKey(runID, householdID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, encodeCounts(counts))
		pipe.Expire(ctx, key, s.expiration)
		return nil
	})
	return err
}

func (s *RedisStore) Load(ctx context.Context, runID string, householdID int64) (map[domain.Stage]int, error) {
	fields, err := s.client.HGetAll(ctx, countsKey(runID, householdID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeCounts(fields)
}

// AddProgress 原子地累加处理数和失败数，返回累加后的进度
func (s *RedisStore) AddProgress(ctx context.Context, runID string, processed, failed int64) (Progress, error) {
	key := progressKey(runID)

	var processedCmd, failedCmd *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		processedCmd = pipe.HIncrBy(ctx, key, "processed", processed)
		failedCmd = pipe.HIncrBy(ctx, key, "failed", failed)
		pipe.Expire(ctx, key, s.expiration)
		return nil
	})
	if err != nil {
		return Progress{}, err
	}

	return Progress{Processed: processedCmd.Val(), Failed: failedCmd.Val()}, nil
}

func (s *RedisStore) Progress(ctx context.Context, runID string) (Progress, error) {
	fields, err := s.client.HGetAll(ctx, progressKey(runID)).Result()
	if err != nil {
		return Progress{}, err
	}
	return decodeProgress(fields)
}
