package promo

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// Config 完整配置结构
type Config struct {
	Promo          *PromoConfig          `mapstructure:"promo"`
	Animation      *AnimationConfig      `mapstructure:"animation"`
	Storage        *StorageConfig        `mapstructure:"storage"`
	Redis          *RedisConfig          `mapstructure:"redis"`
	Lock           *LockConfig           `mapstructure:"lock"`
	CircuitBreaker *CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Logging        *LoggingConfig        `mapstructure:"logging"`
}

// DefaultConfig returns a Config with every section at its default
func DefaultConfig() *Config {
	return &Config{
		Promo:          DefaultPromoConfig(),
		Animation:      DefaultAnimationConfig(),
		Storage:        DefaultStorageConfig(),
		Redis:          DefaultRedisConfig(),
		Lock:           DefaultLockConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Logging:        DefaultLoggingConfig(),
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	c.fillMissing()

	// 抽奖配置
	if c.Promo.MaxEntries <= 0 || c.Promo.MaxEntries > MaxEntries {
		return ErrConfigInvalid.WithDetails(fmt.Sprintf("promo.max_entries must be between 1 and %d", MaxEntries))
	}
	if c.Promo.MaxDice <= 0 {
		return ErrConfigInvalid.WithDetails("promo.max_dice must be positive")
	}
	if _, err := NewSourceFromConfig(c.Promo.RandomSource); err != nil {
		return err
	}

	// 动画配置
	if c.Animation.Duration <= 0 {
		return ErrConfigInvalid.WithDetails("animation.duration must be positive")
	}
	if c.Animation.ShuffleInterval <= 0 || c.Animation.MinRoundInterval <= 0 {
		return ErrConfigInvalid.WithDetails("animation intervals must be positive")
	}
	if c.Animation.DiceRollDuration < 0 {
		return ErrConfigInvalid.WithDetails("animation.dice_roll_duration cannot be negative")
	}

	// 存储配置
	switch c.Storage.Backend {
	case StorageBackendRedis, StorageBackendSQLite, StorageBackendMemory:
	default:
		return ErrConfigInvalid.WithDetails(fmt.Sprintf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Storage.Key == "" {
		return ErrConfigInvalid.WithDetails("storage.key is required")
	}
	if c.Storage.Backend == StorageBackendSQLite && c.Storage.SQLitePath == "" {
		return ErrConfigInvalid.WithDetails("storage.sqlite_path is required for the sqlite backend")
	}
	if c.Storage.RetryAttempts < 0 || c.Storage.RetryAttempts > MaxRetryAttempts {
		return ErrInvalidRetryAttempts
	}
	if c.Storage.RetryInterval < 0 {
		return ErrInvalidRetryInterval
	}

	// 锁配置
	if c.Lock.Enabled {
		if c.Lock.Expiration < MinLockExpiration || c.Lock.Expiration > MaxLockExpiration {
			return ErrInvalidLockTimeout
		}
		if c.Storage.Backend != StorageBackendRedis {
			return ErrConfigInvalid.WithDetails("lock.enabled requires the redis storage backend")
		}
	}

	// Redis 配置
	if c.Storage.Backend == StorageBackendRedis {
		if c.Redis.Addr == "" {
			return ErrConfigInvalid.WithDetails("redis address is required")
		}
		if c.Redis.PoolSize <= 0 {
			return ErrConfigInvalid.WithDetails("redis pool size must be positive")
		}
	}

	// 日志配置
	switch c.Logging.Format {
	case "json", "console":
	default:
		return ErrConfigInvalid.WithDetails(fmt.Sprintf("unknown log format %q", c.Logging.Format))
	}

	return nil
}

func (c *Config) fillMissing() {
	if c.Promo == nil {
		c.Promo = DefaultPromoConfig()
	}
	if c.Animation == nil {
		c.Animation = DefaultAnimationConfig()
	}
	if c.Storage == nil {
		c.Storage = DefaultStorageConfig()
	}
	if c.Redis == nil {
		c.Redis = DefaultRedisConfig()
	}
	if c.Lock == nil {
		c.Lock = DefaultLockConfig()
	}
	if c.CircuitBreaker == nil {
		c.CircuitBreaker = DefaultCircuitBreakerConfig()
	}
	if c.Logging == nil {
		c.Logging = DefaultLoggingConfig()
	}
}

// PromoConfig 抽奖参数
type PromoConfig struct {
	MaxEntries   int    `mapstructure:"max_entries"`
	MaxDice      int    `mapstructure:"max_dice"`
	DefaultName  string `mapstructure:"default_name"`
	RandomSource string `mapstructure:"random_source"`
}

// DefaultPromoConfig 返回默认抽奖参数
func DefaultPromoConfig() *PromoConfig {
	return &PromoConfig{
		MaxEntries:   MaxEntries,
		MaxDice:      DefaultMaxDice,
		DefaultName:  DefaultPromoName,
		RandomSource: RandomSourcePCG,
	}
}

// AnimationConfig 动画节奏
type AnimationConfig struct {
	Duration         time.Duration `mapstructure:"duration"`
	ShuffleInterval  time.Duration `mapstructure:"shuffle_interval"`
	MinRoundInterval time.Duration `mapstructure:"min_round_interval"`
	DiceRollDuration time.Duration `mapstructure:"dice_roll_duration"`
}

// DefaultAnimationConfig 返回默认动画节奏
func DefaultAnimationConfig() *AnimationConfig {
	return &AnimationConfig{
		Duration:         DefaultAnimationDuration,
		ShuffleInterval:  DefaultShuffleInterval,
		MinRoundInterval: DefaultMinRoundInterval,
		DiceRollDuration: DefaultDiceRollDuration,
	}
}

func (a AnimationConfig) withDefaults() AnimationConfig {
	if a.Duration <= 0 {
		a.Duration = DefaultAnimationDuration
	}
	if a.ShuffleInterval <= 0 {
		a.ShuffleInterval = DefaultShuffleInterval
	}
	if a.MinRoundInterval <= 0 {
		a.MinRoundInterval = DefaultMinRoundInterval
	}
	return a
}

// StorageConfig 历史存储配置
type StorageConfig struct {
	Backend       string        `mapstructure:"backend"`
	Key           string        `mapstructure:"key"`
	SQLitePath    string        `mapstructure:"sqlite_path"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// DefaultStorageConfig 返回默认存储配置
func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{
		Backend:       DefaultStorageBackend,
		Key:           DefaultHistoryKey,
		SQLitePath:    DefaultSQLitePath,
		RetryAttempts: DefaultRetryAttempts,
		RetryInterval: DefaultRetryInterval,
	}
}

// LockConfig 历史写锁配置
type LockConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// DefaultLockConfig 返回默认锁配置
func DefaultLockConfig() *LockConfig {
	return &LockConfig{Enabled: false, Expiration: DefaultLockExpiration}
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 连接配置
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 连接池配置
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
	MaxRetries   int `mapstructure:"max_retries"`

	// 超时配置
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

// DefaultRedisConfig 返回默认的Redis配置
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         DefaultRedisAddr,
		Password:     DefaultRedisPassword,
		DB:           DefaultRedisDB,
		PoolSize:     DefaultRedisPoolSize,
		MinIdleConns: DefaultRedisMinIdleConns,
		MaxRetries:   DefaultRedisMaxRetries,
		DialTimeout:  DefaultRedisDialTimeout,
		ReadTimeout:  DefaultRedisReadTimeout,
		WriteTimeout: DefaultRedisWriteTimeout,
		PoolTimeout:  DefaultRedisPoolTimeout,
	}
}

// NewRedisClientFromConfig 从配置创建Redis客户端
func NewRedisClientFromConfig(config *RedisConfig) *redis.Client {
	if config == nil {
		config = DefaultRedisConfig()
	}

	return redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolTimeout:  config.PoolTimeout,
	})
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Name          string        `mapstructure:"name"`
	MaxRequests   uint32        `mapstructure:"max_requests"`
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FailureRatio  float64       `mapstructure:"failure_ratio"`
	MinRequests   uint32        `mapstructure:"min_requests"`
	OnStateChange bool          `mapstructure:"on_state_change"`
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Enabled:       true,
		Name:          DefaultCircuitBreakerName,
		MaxRequests:   DefaultCircuitBreakerMaxRequests,
		Interval:      DefaultCircuitBreakerInterval,
		Timeout:       DefaultCircuitBreakerTimeout,
		FailureRatio:  DefaultCircuitBreakerFailureRatio,
		MinRequests:   DefaultCircuitBreakerMinRequests,
		OnStateChange: DefaultCircuitBreakerOnStateChange,
	}
}

// ================================================================================

// ConfigManager 配置管理器
type ConfigManager struct {
	viper *viper.Viper

	mu     sync.RWMutex
	config *Config
}

// NewConfigManager 创建配置管理器
func NewConfigManager() *ConfigManager {
	v := viper.New()

	// 设置配置文件名和路径
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/promo")
	v.AddConfigPath("$HOME/.promo")

	// 设置环境变量前缀
	v.SetEnvPrefix("PROMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cm := &ConfigManager{viper: v}
	cm.setDefaults()
	return cm
}

// SetConfigFile 指定配置文件, 不再按搜索路径查找
func (cm *ConfigManager) SetConfigFile(path string) {
	if path != "" {
		cm.viper.SetConfigFile(path)
	}
}

// LoadConfig 加载配置
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	if err := cm.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// 配置文件不存在时使用默认配置
	}

	config, err := cm.decode()
	if err != nil {
		return nil, err
	}

	cm.mu.Lock()
	cm.config = config
	cm.mu.Unlock()
	return config, nil
}

func (cm *ConfigManager) decode() (*Config, error) {
	config := &Config{}
	if err := cm.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// setDefaults 设置默认配置值
func (cm *ConfigManager) setDefaults() {
	v := cm.viper

	// 抽奖默认配置
	v.SetDefault("promo.max_entries", MaxEntries)
	v.SetDefault("promo.max_dice", DefaultMaxDice)
	v.SetDefault("promo.default_name", DefaultPromoName)
	v.SetDefault("promo.random_source", RandomSourcePCG)

	// 动画默认配置
	v.SetDefault("animation.duration", DefaultAnimationDuration.String())
	v.SetDefault("animation.shuffle_interval", DefaultShuffleInterval.String())
	v.SetDefault("animation.min_round_interval", DefaultMinRoundInterval.String())
	v.SetDefault("animation.dice_roll_duration", DefaultDiceRollDuration.String())

	// 存储默认配置
	v.SetDefault("storage.backend", DefaultStorageBackend)
	v.SetDefault("storage.key", DefaultHistoryKey)
	v.SetDefault("storage.sqlite_path", DefaultSQLitePath)
	v.SetDefault("storage.retry_attempts", DefaultRetryAttempts)
	v.SetDefault("storage.retry_interval", DefaultRetryInterval.String())

	// Redis 默认配置
	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", DefaultRedisPassword)
	v.SetDefault("redis.db", DefaultRedisDB)
	v.SetDefault("redis.pool_size", DefaultRedisPoolSize)
	v.SetDefault("redis.min_idle_conns", DefaultRedisMinIdleConns)
	v.SetDefault("redis.max_retries", DefaultRedisMaxRetries)
	v.SetDefault("redis.dial_timeout", DefaultRedisDialTimeout.String())
	v.SetDefault("redis.read_timeout", DefaultRedisReadTimeout.String())
	v.SetDefault("redis.write_timeout", DefaultRedisWriteTimeout.String())
	v.SetDefault("redis.pool_timeout", DefaultRedisPoolTimeout.String())

	// 锁默认配置
	v.SetDefault("lock.enabled", false)
	v.SetDefault("lock.expiration", DefaultLockExpiration.String())

	// 熔断器默认配置
	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.name", DefaultCircuitBreakerName)
	v.SetDefault("circuit_breaker.max_requests", DefaultCircuitBreakerMaxRequests)
	v.SetDefault("circuit_breaker.interval", DefaultCircuitBreakerInterval.String())
	v.SetDefault("circuit_breaker.timeout", DefaultCircuitBreakerTimeout.String())
	v.SetDefault("circuit_breaker.failure_ratio", DefaultCircuitBreakerFailureRatio)
	v.SetDefault("circuit_breaker.min_requests", DefaultCircuitBreakerMinRequests)
	v.SetDefault("circuit_breaker.on_state_change", DefaultCircuitBreakerOnStateChange)

	// 日志默认配置
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Set overrides a single key, e.g. from a CLI flag
func (cm *ConfigManager) Set(key string, value any) { cm.viper.Set(key, value) }

// WatchConfig 监听配置变化; 无效的新配置被忽略, 当前配置保持不变
func (cm *ConfigManager) WatchConfig(callback func(*Config)) error {
	cm.viper.OnConfigChange(func(e fsnotify.Event) {
		config, err := cm.decode()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = config
		cm.mu.Unlock()

		if callback != nil {
			callback(config)
		}
	})
	cm.viper.WatchConfig()
	return nil
}

// GetConfig 获取当前配置
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ReloadConfig 重新加载配置
func (cm *ConfigManager) ReloadConfig() (*Config, error) { return cm.LoadConfig() }

// NewDefaultConfigManager 创建带默认配置的配置管理器, 不读取配置文件
func NewDefaultConfigManager() *ConfigManager {
	cm := NewConfigManager()
	cm.config = DefaultConfig()
	return cm
}

// NewConfigManagerFromConfig 从已有配置创建配置管理器
func NewConfigManagerFromConfig(config *Config) (*ConfigManager, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cm := NewConfigManager()
	cm.config = config
	return cm, nil
}
