package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisKeyPrefix namespaces counter hashes.
	DefaultRedisKeyPrefix = "chat_rate_limits:"
	// DefaultRedisMaxRetries bounds optimistic retries when a watched key changes under us.
	DefaultRedisMaxRetries = 100

	fieldCount       = "count"
	fieldWindowStart = "window_start"
)

// RedisStore keeps one hash per key and updates it with WATCH/MULTI/EXEC.
// Every write refreshes the key TTL to the window, so Redis evicts stale records itself.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	maxRetries int
}

// NewRedisStore creates a store over client. ttl should be the quota window.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:     client,
		prefix:     DefaultRedisKeyPrefix,
		ttl:        ttl,
		maxRetries: DefaultRedisMaxRetries,
	}
}

// Update runs fn inside an optimistic transaction on the key's hash.
func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	redisKey := s.prefix + key

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, redisKey).Result()
		if err != nil {
			return fmt.Errorf("read counter: %w", err)
		}
		current, err := parseRedisRecord(key, fields)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisKey, fieldCount, next.Count, fieldWindowStart, next.WindowStart)
			if s.ttl > 0 {
				pipe.PExpire(ctx, redisKey, s.ttl)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, redisKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

func parseRedisRecord(key string, fields map[string]string) (*models.RateLimitRecord, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	count, err := strconv.Atoi(fields[fieldCount])
	if err != nil {
		return nil, fmt.Errorf("parse counter %q: %w", fieldCount, err)
	}
	windowStart, err := strconv.ParseInt(fields[fieldWindowStart], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse counter %q: %w", fieldWindowStart, err)
	}
	return &models.RateLimitRecord{Key: key, Count: count, WindowStart: windowStart}, nil
}
