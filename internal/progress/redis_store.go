package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/claimcheck/models"
)

// RedisJobStore keeps job records as JSON strings so several instances share them.
type RedisJobStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisJobStore stores jobs under prefix+id. ttl <= 0 keeps them forever.
func NewRedisJobStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisJobStore {
	if prefix == "" {
		prefix = "claimcheck:job:"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisJobStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisJobStore) key(id string) string { return s.prefix + id }

func (s *RedisJobStore) Create(ctx context.Context, job models.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(job.ID), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, jobID string) (models.Job, bool, error) {
	raw, err := s.client.Get(ctx, s.key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Job{}, false, nil
	}
	if err != nil {
		return models.Job{}, false, fmt.Errorf("redis get: %w", err)
	}
	var job models.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return models.Job{}, false, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, true, nil
}

func (s *RedisJobStore) Save(ctx context.Context, job models.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ok, err := s.client.SetXX(ctx, s.key(job.ID), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setxx: %w", err)
	}
	if !ok {
		return ErrJobNotFound
	}
	return nil
}
