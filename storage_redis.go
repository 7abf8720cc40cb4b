package promo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStorage stores whole serialized values in Redis with retry on transient errors
type RedisStorage struct {
	redisClient *redis.Client
	logger      Logger
	recovery    *ErrorRecovery
}

// NewRedisStorage creates a Redis-backed Storage with default retry settings
func NewRedisStorage(redisClient *redis.Client, logger Logger) *RedisStorage {
	return NewRedisStorageWithRetry(redisClient, logger, DefaultRetryAttempts, DefaultRetryInterval)
}

// NewRedisStorageWithRetry creates a Redis-backed Storage with custom retry settings
func NewRedisStorageWithRetry(redisClient *redis.Client, logger Logger, retryAttempts int, retryDelay time.Duration) *RedisStorage {
	if logger == nil {
		logger = NewSilentLogger()
	}
	return &RedisStorage{
		redisClient: redisClient,
		logger:      logger,
		recovery:    NewErrorRecovery(NewDefaultErrorHandler(logger, retryDelay), retryAttempts, logger),
	}
}

// Get loads the value stored under key, returning (nil, nil) when the key is absent
func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidParameters.WithDetails("empty key provided for Get")
	}

	var data []byte
	start := time.Now()
	err := s.recovery.ExecuteWithRetry(ctx, fmt.Sprintf("get[%s]", key), func() error {
		var err error
		data, err = s.redisClient.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// Key doesn't exist - not an error condition, don't retry
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		s.logger.Error("Failed to load key=%s from Redis in %v: %v", key, time.Since(start), err)
		return nil, ErrStateLoadFailure.WithOperation("get").WithCause(err)
	}

	s.logger.Debug("Loaded key=%s from Redis: size=%d bytes, load_time=%v", key, len(data), time.Since(start))
	return data, nil
}

// Set overwrites the whole value stored under key, without expiration
func (s *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrInvalidParameters.WithDetails("empty key provided for Set")
	}

	start := time.Now()
	err := s.recovery.ExecuteWithRetry(ctx, fmt.Sprintf("set[%s]", key), func() error {
		return s.redisClient.Set(ctx, key, value, 0).Err()
	})
	if err != nil {
		s.logger.Error("Failed to save key=%s to Redis: size=%d bytes, save_time=%v, error=%v",
			key, len(value), time.Since(start), err)
		return ErrStateSaveFailure.WithOperation("set").WithCause(err)
	}

	s.logger.Debug("Saved key=%s to Redis: size=%d bytes, save_time=%v", key, len(value), time.Since(start))
	return nil
}

// Del removes key; deleting a missing key is not an error
func (s *RedisStorage) Del(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidParameters.WithDetails("empty key provided for Del")
	}

	var deleted int64
	err := s.recovery.ExecuteWithRetry(ctx, fmt.Sprintf("del[%s]", key), func() error {
		var err error
		deleted, err = s.redisClient.Del(ctx, key).Result()
		return err
	})
	if err != nil {
		s.logger.Error("Failed to delete key=%s from Redis: %v", key, err)
		return ErrStateSaveFailure.WithOperation("del").WithCause(err)
	}

	s.logger.Debug("Deleted key=%s from Redis: keys_deleted=%d", key, deleted)
	return nil
}
