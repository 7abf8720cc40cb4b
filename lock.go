package promo

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// History writer lock:
// - Acquisition: SET NX with expiration (single network call)
// - Release: Lua script so only the owner can delete the key
const (
	releaseLockScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
)

// RedisLocker implements Locker with Redis
type RedisLocker struct {
	redisClient   *redis.Client
	retryAttempts int
	retryInterval time.Duration

	monitor *PerformanceMonitor
}

// NewRedisLocker creates a Redis-backed Locker with custom retry settings
func NewRedisLocker(redisClient *redis.Client, retryAttempts int, retryInterval time.Duration) *RedisLocker {
	return &RedisLocker{
		redisClient:   redisClient,
		retryAttempts: retryAttempts,
		retryInterval: retryInterval,
		monitor:       NewPerformanceMonitor(),
	}
}

// AcquireLock attempts to acquire the lock, retrying while it is held elsewhere
func (m *RedisLocker) AcquireLock(ctx context.Context, lockKey, lockValue string, expireTime time.Duration) (bool, error) {
	if lockKey == "" || lockValue == "" {
		return false, ErrInvalidParameters
	}
	if expireTime <= 0 {
		expireTime = DefaultLockExpiration
	}

	fullLockKey := LockKeyPrefix + lockKey
	start := time.Now()

	for attempt := 0; attempt <= m.retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		acquired, err := m.redisClient.SetNX(ctx, fullLockKey, lockValue, expireTime).Result()
		if err != nil {
			if attempt == m.retryAttempts {
				m.monitor.RecordLockAcquisition(false, time.Since(start))
				return false, ErrStorageUnavailable.WithOperation("acquire_lock").WithCause(err)
			}
			time.Sleep(m.retryInterval)
			continue
		}

		if acquired {
			m.monitor.RecordLockAcquisition(true, time.Since(start))
			return true, nil
		}

		if attempt < m.retryAttempts {
			time.Sleep(m.retryInterval)
		}
	}

	m.monitor.RecordLockAcquisition(false, time.Since(start))
	return false, ErrLockAcquisitionFailed
}

// ReleaseLock releases the lock if lockValue still owns it
func (m *RedisLocker) ReleaseLock(ctx context.Context, lockKey, lockValue string) (bool, error) {
	if lockKey == "" || lockValue == "" {
		return false, ErrInvalidParameters
	}

	fullLockKey := LockKeyPrefix + lockKey

	for attempt := 0; attempt <= m.retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		result, err := m.redisClient.Eval(ctx, releaseLockScript, []string{fullLockKey}, lockValue).Result()
		if err != nil {
			if attempt == m.retryAttempts {
				return false, ErrLockReleaseFailure.WithCause(err)
			}
			time.Sleep(m.retryInterval)
			continue
		}

		if n, ok := result.(int64); ok && n == 1 {
			m.monitor.RecordLockRelease()
			return true, nil
		}

		// Lock was not found or value didn't match - no need to retry
		return false, nil
	}

	return false, ErrLockReleaseFailure
}

// SetPerformanceMonitor shares a monitor with the rest of the engine
func (m *RedisLocker) SetPerformanceMonitor(monitor *PerformanceMonitor) {
	if monitor != nil {
		m.monitor = monitor
	}
}
