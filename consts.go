package promo

import "time"

const (
	// MaxEntries is the hard cap on the number of entries in a single promotion
	MaxEntries = 20000

	// DefaultMaxDice is the default number of dice offered in dice mode
	DefaultMaxDice = 5

	// DieFaces is the number of faces on a simulated die
	DieFaces = 6

	// DefaultWinnerCount is the default number of winners
	DefaultWinnerCount = 1

	// DefaultPromoName is used when a promotion is recorded without a name
	DefaultPromoName = "Untitled Promo"

	// DefaultHistoryKey is the fixed storage key holding the serialized history log
	DefaultHistoryKey = "promoHistoryData"

	// HistoryLockPrefix is the prefix for the single-writer history lock
	HistoryLockPrefix = "history:"
)

const (
	// DefaultAnimationDuration is the total length of an animated run
	DefaultAnimationDuration = 5 * time.Second

	// DefaultShuffleInterval is the cadence of cosmetic shuffle frames
	DefaultShuffleInterval = 150 * time.Millisecond

	// DefaultMinRoundInterval is the floor for the round counter cadence
	DefaultMinRoundInterval = 100 * time.Millisecond

	// DefaultDiceRollDuration is the cosmetic duration of a dice roll
	DefaultDiceRollDuration = 1500 * time.Millisecond
)

const (
	// DefaultRetryAttempts is the default number of retry attempts
	DefaultRetryAttempts = 3

	// DefaultRetryInterval is the default interval between retry attempts
	DefaultRetryInterval = 100 * time.Millisecond

	// MaxRetryAttempts is the maximum number of retry attempts allowed
	MaxRetryAttempts = 10

	// LockKeyPrefix is the prefix for Redis lock keys
	LockKeyPrefix = "promo:lock:"

	// DefaultLockExpiration is the default expiration time for locks
	DefaultLockExpiration = 30 * time.Second

	// MinLockExpiration is the minimum lock expiration allowed
	MinLockExpiration = 1 * time.Second

	// MaxLockExpiration is the maximum lock expiration allowed
	MaxLockExpiration = 5 * time.Minute
)

const (
	// DefaultCircuitBreakerName is the default name for Circuit Breaker
	DefaultCircuitBreakerName = "promo-history"

	// DefaultCircuitBreakerMaxRequests is the default max requests
	DefaultCircuitBreakerMaxRequests = 3

	// DefaultCircuitBreakerInterval is the default interval
	DefaultCircuitBreakerInterval = 60 * time.Second

	// DefaultCircuitBreakerTimeout is the default timeout
	DefaultCircuitBreakerTimeout = 30 * time.Second

	// DefaultCircuitBreakerFailureRatio is the default failure ratio
	DefaultCircuitBreakerFailureRatio = 0.6

	// DefaultCircuitBreakerMinRequests is the default min requests
	DefaultCircuitBreakerMinRequests = 3

	// DefaultCircuitBreakerOnStateChange is the default on state change
	DefaultCircuitBreakerOnStateChange = true
)

const (
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisPassword     = ""
	DefaultRedisDB           = 0
	DefaultRedisPoolSize     = 10
	DefaultRedisMinIdleConns = 2
	DefaultRedisMaxRetries   = 3
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second
	DefaultRedisPoolTimeout  = 4 * time.Second
)

const (
	StorageBackendRedis  = "redis"
	StorageBackendSQLite = "sqlite"
	StorageBackendMemory = "memory"

	DefaultStorageBackend = StorageBackendSQLite
	DefaultSQLitePath     = "promo.db"

	RandomSourcePCG    = "pcg"
	RandomSourceCrypto = "crypto"
)
