package promo

import (
	"context"
	"time"
)

// ResultConsumer receives every completed PromotionResult
type ResultConsumer func(result PromotionResult)

// FrameFunc receives progress frames while a run is animating.
// No frame is delivered once Cancel has moved the run out of Animating.
// It runs on the run goroutine and must not call Run.Cancel or Run.Wait.
type FrameFunc func(frame Frame)

// Storage is a durable key/value backend holding whole serialized values.
//
// Get returns (nil, nil) when the key does not exist.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

// Locker guards the single-writer history rewrite
type Locker interface {
	AcquireLock(ctx context.Context, lockKey, lockValue string, expireTime time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey, lockValue string) (bool, error)
}

// Source is the randomness provider for shuffles and dice.
//
// Implementations must be safe for concurrent use.
type Source interface {
	// Intn returns a uniformly distributed int in [0, n). It panics if n <= 0.
	Intn(n int) int
}

// IDGenerator produces globally unique result ids
type IDGenerator func() string

// Clock abstracts time so the scheduler and the dice roll can be driven in tests
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer is the subset of *time.Timer used by the scheduler
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Ticker is the subset of *time.Ticker used by the scheduler
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}
