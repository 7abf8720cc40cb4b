package promo

import (
	"errors"
	"fmt"
)

// Backend is the storage stack assembled from configuration
type Backend struct {
	Storage Storage                // breaker-wrapped when the breaker is enabled
	Locker  Locker                 // nil unless lock.enabled
	Breaker *CircuitBreakerStorage // nil when the breaker is disabled

	closers []func() error
}

// OpenBackend builds the configured storage backend, its optional writer lock and the breaker
func OpenBackend(cfg *Config, logger Logger, monitor *PerformanceMonitor) (*Backend, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NewSilentLogger()
	}

	b := &Backend{}
	sc := cfg.Storage

	switch sc.Backend {
	case StorageBackendRedis:
		client := NewRedisClientFromConfig(cfg.Redis)
		b.closers = append(b.closers, client.Close)
		b.Storage = NewRedisStorageWithRetry(client, logger, sc.RetryAttempts, sc.RetryInterval)
		if cfg.Lock.Enabled {
			locker := NewRedisLocker(client, sc.RetryAttempts, sc.RetryInterval)
			locker.SetPerformanceMonitor(monitor)
			b.Locker = locker
		}
	case StorageBackendSQLite:
		s, err := OpenSQLiteStorage(sc.SQLitePath, logger)
		if err != nil {
			return nil, ErrStorageUnavailable.WithOperation("open_sqlite").WithCause(err)
		}
		b.closers = append(b.closers, s.Close)
		b.Storage = s
	case StorageBackendMemory:
		b.Storage = NewMemoryStorage()
	default:
		return nil, ErrConfigInvalid.WithDetails(fmt.Sprintf("unknown storage backend %q", sc.Backend))
	}

	if cfg.CircuitBreaker.Enabled {
		b.Breaker = NewCircuitBreakerStorage(b.Storage, cfg.CircuitBreaker, logger)
		b.Storage = b.Breaker
	}

	logger.Info("Storage backend opened: backend=%s, key=%s, lock=%v, breaker=%v",
		sc.Backend, sc.Key, b.Locker != nil, b.Breaker != nil)
	return b, nil
}

// NewHistoryStore creates a HistoryStore over the backend using the configured key and lock
func (b *Backend) NewHistoryStore(cfg *Config, logger Logger, monitor *PerformanceMonitor) *HistoryStore {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.fillMissing()

	opts := []HistoryOption{
		WithHistoryKey(cfg.Storage.Key),
		WithHistoryLogger(logger),
		WithHistoryMonitor(monitor),
	}
	if b.Locker != nil {
		opts = append(opts, WithHistoryLocker(b.Locker, cfg.Lock.Expiration))
	}
	return NewHistoryStore(b.Storage, opts...)
}

// Close releases the underlying connections
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
