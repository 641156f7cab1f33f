package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"loanflow/internal/bureau"
	"loanflow/pkg/platform/sentinel"
)

const keyPrefix = "loanflow:credit_report:"

// RedisStore keeps reports as JSON values that Redis expires after ttl.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, pan string) (*bureau.CreditReport, error) {
	raw, err := s.client.Get(ctx, keyPrefix+normalizeKey(pan)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get report: %w: %w", sentinel.ErrUnavailable, err)
	}
	var report bureau.CreditReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode cached report: %w", err)
	}
	return &report, nil
}

func (s *RedisStore) Put(ctx context.Context, report *bureau.CreditReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+normalizeKey(report.PAN), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set report: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}
