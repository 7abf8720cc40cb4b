package promo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerStorage 带熔断器的存储包装器
type CircuitBreakerStorage struct {
	storage Storage

	mu      sync.RWMutex
	breaker *gobreaker.CircuitBreaker
	logger  Logger
	config  *CircuitBreakerConfig
}

// NewCircuitBreakerStorage 创建带熔断器的存储
func NewCircuitBreakerStorage(storage Storage, config *CircuitBreakerConfig, logger Logger) *CircuitBreakerStorage {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if logger == nil {
		logger = NewSilentLogger()
	}

	c := &CircuitBreakerStorage{
		storage: storage,
		logger:  logger,
		config:  config,
	}
	if config.Enabled {
		// 未启用时为透传包装器
		c.breaker = gobreaker.NewCircuitBreaker(c.settings())
	}
	return c
}

func (c *CircuitBreakerStorage) settings() gobreaker.Settings {
	config := c.config
	logger := c.logger
	return gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// 当请求数达到最小要求且失败率超过阈值时触发熔断
			return counts.Requests >= config.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// 调用方取消不计入失败
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if config.OnStateChange {
				logger.Info("Circuit breaker '%s' state changed from %s to %s", name, from, to)
			}
		},
	}
}

func (c *CircuitBreakerStorage) current() *gobreaker.CircuitBreaker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.breaker
}

// executeWithBreaker 使用熔断器执行操作
func (c *CircuitBreakerStorage) executeWithBreaker(operation func() (any, error)) (any, error) {
	breaker := c.current()
	if breaker == nil {
		return operation()
	}

	result, err := breaker.Execute(operation)
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			return nil, ErrCircuitBreakerOpen.WithDetails("circuit breaker is open, storage requests are being rejected")
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, ErrCircuitBreakerOpen.WithDetails("too many requests, circuit breaker is half-open")
		}
	}
	return result, err
}

// Get 读取键值
func (c *CircuitBreakerStorage) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := c.executeWithBreaker(func() (any, error) {
		return c.storage.Get(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	data, _ := result.([]byte)
	return data, nil
}

// Set 覆盖写入键值
func (c *CircuitBreakerStorage) Set(ctx context.Context, key string, value []byte) error {
	_, err := c.executeWithBreaker(func() (any, error) {
		return nil, c.storage.Set(ctx, key, value)
	})
	return err
}

// Del 删除键
func (c *CircuitBreakerStorage) Del(ctx context.Context, key string) error {
	_, err := c.executeWithBreaker(func() (any, error) {
		return nil, c.storage.Del(ctx, key)
	})
	return err
}

// GetCircuitBreakerState 获取熔断器状态
func (c *CircuitBreakerStorage) GetCircuitBreakerState() string {
	breaker := c.current()
	if breaker == nil {
		return "disabled"
	}

	switch breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// GetCircuitBreakerCounts 获取熔断器统计信息
func (c *CircuitBreakerStorage) GetCircuitBreakerCounts() gobreaker.Counts {
	breaker := c.current()
	if breaker == nil {
		return gobreaker.Counts{}
	}
	return breaker.Counts()
}

// ResetCircuitBreaker 重置熔断器 (gobreaker 没有 Reset 方法, 重新创建实例)
func (c *CircuitBreakerStorage) ResetCircuitBreaker() {
	if c.current() == nil {
		return
	}

	c.mu.Lock()
	c.breaker = gobreaker.NewCircuitBreaker(c.settings())
	c.mu.Unlock()

	c.logger.Info("Circuit breaker '%s' has been reset", c.config.Name)
}

// CircuitBreakerHealthCheck 熔断器健康检查
type CircuitBreakerHealthCheck struct {
	storage *CircuitBreakerStorage
}

// NewCircuitBreakerHealthCheck 创建熔断器健康检查
func NewCircuitBreakerHealthCheck(storage *CircuitBreakerStorage) *CircuitBreakerHealthCheck {
	return &CircuitBreakerHealthCheck{storage: storage}
}

// Check 执行健康检查
func (h *CircuitBreakerHealthCheck) Check() map[string]any {
	result := map[string]any{
		"circuit_breaker_enabled": h.storage.config.Enabled,
	}

	if h.storage.current() == nil {
		result["state"] = "disabled"
		result["healthy"] = true
		return result
	}

	state := h.storage.GetCircuitBreakerState()
	counts := h.storage.GetCircuitBreakerCounts()

	result["state"] = state
	result["requests"] = counts.Requests
	result["total_successes"] = counts.TotalSuccesses
	result["total_failures"] = counts.TotalFailures
	result["consecutive_successes"] = counts.ConsecutiveSuccesses
	result["consecutive_failures"] = counts.ConsecutiveFailures
	result["success_rate"], result["failure_rate"] = rates(counts)

	healthy := true
	switch state {
	case "open":
		healthy = false
	case "half-open":
		// 半开状态下，如果连续失败次数过多，认为不健康
		if counts.ConsecutiveFailures > 2 {
			healthy = false
		}
	}
	result["healthy"] = healthy

	return result
}

// CircuitBreakerMetrics 熔断器指标收集器
type CircuitBreakerMetrics struct {
	storage *CircuitBreakerStorage
}

// NewCircuitBreakerMetrics 创建熔断器指标收集器
func NewCircuitBreakerMetrics(storage *CircuitBreakerStorage) *CircuitBreakerMetrics {
	return &CircuitBreakerMetrics{storage: storage}
}

// CollectMetrics 收集指标
func (m *CircuitBreakerMetrics) CollectMetrics() map[string]any {
	config := m.storage.config
	metrics := map[string]any{
		"circuit_breaker_enabled": config.Enabled,
		"timestamp":               time.Now().Unix(),
	}
	if m.storage.current() == nil {
		return metrics
	}

	state := m.storage.GetCircuitBreakerState()
	counts := m.storage.GetCircuitBreakerCounts()

	metrics["circuit_breaker_state"] = state
	metrics["circuit_breaker_state_numeric"] = stateToNumeric(state)

	metrics["circuit_breaker_requests_total"] = counts.Requests
	metrics["circuit_breaker_successes_total"] = counts.TotalSuccesses
	metrics["circuit_breaker_failures_total"] = counts.TotalFailures
	metrics["circuit_breaker_consecutive_successes"] = counts.ConsecutiveSuccesses
	metrics["circuit_breaker_consecutive_failures"] = counts.ConsecutiveFailures
	metrics["circuit_breaker_success_rate"], metrics["circuit_breaker_failure_rate"] = rates(counts)

	metrics["circuit_breaker_max_requests"] = config.MaxRequests
	metrics["circuit_breaker_failure_ratio_threshold"] = config.FailureRatio
	metrics["circuit_breaker_min_requests"] = config.MinRequests
	metrics["circuit_breaker_interval_seconds"] = config.Interval.Seconds()
	metrics["circuit_breaker_timeout_seconds"] = config.Timeout.Seconds()

	return metrics
}

func rates(counts gobreaker.Counts) (success, failure float64) {
	if counts.Requests == 0 {
		return 0.0, 0.0
	}
	return float64(counts.TotalSuccesses) / float64(counts.Requests),
		float64(counts.TotalFailures) / float64(counts.Requests)
}

// stateToNumeric 将状态转换为数值
func stateToNumeric(state string) int {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
