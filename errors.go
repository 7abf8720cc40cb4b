package promo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"time"
)

// ErrorCode 错误代码类型
type ErrorCode string

// 错误代码常量
const (
	// 系统级错误 (1000-1999)
	ErrCodeSystem             ErrorCode = "PROMO_1000"
	ErrCodeStorageUnavailable ErrorCode = "PROMO_1001"
	ErrCodeStorageTimeout     ErrorCode = "PROMO_1002"
	ErrCodeConfigInvalid      ErrorCode = "PROMO_1004"

	// 输入校验错误 (2000-2999)
	ErrCodeInvalidParameters    ErrorCode = "PROMO_2000"
	ErrCodeEmptyEntries         ErrorCode = "PROMO_2001"
	ErrCodeTooManyEntries       ErrorCode = "PROMO_2002"
	ErrCodeInvalidRounds        ErrorCode = "PROMO_2003"
	ErrCodeInvalidWinnerCount   ErrorCode = "PROMO_2004"
	ErrCodeInvalidDiceCount     ErrorCode = "PROMO_2005"
	ErrCodeInvalidResult        ErrorCode = "PROMO_2006"
	ErrCodeDuplicateResultID    ErrorCode = "PROMO_2007"
	ErrCodeInvalidLockTimeout   ErrorCode = "PROMO_2010"
	ErrCodeInvalidRetryAttempts ErrorCode = "PROMO_2011"
	ErrCodeInvalidRetryInterval ErrorCode = "PROMO_2012"

	// 锁相关错误 (3000-3999)
	ErrCodeLockAcquisitionFailed ErrorCode = "PROMO_3000"
	ErrCodeLockReleaseFailure    ErrorCode = "PROMO_3002"

	// 运行状态错误 (4000-4999)
	ErrCodeRunInProgress   ErrorCode = "PROMO_4000"
	ErrCodeRunCancelled    ErrorCode = "PROMO_4001"
	ErrCodeRollInvalidated ErrorCode = "PROMO_4002"
	ErrCodeRollInProgress  ErrorCode = "PROMO_4003"

	// 熔断相关错误 (5000-5999)
	ErrCodeCircuitBreakerOpen ErrorCode = "PROMO_5002"

	// 状态持久化错误 (6000-6999)
	ErrCodeStateLoadFailure      ErrorCode = "PROMO_6002"
	ErrCodeStateSaveFailure      ErrorCode = "PROMO_6001"
	ErrCodeStateCorrupted        ErrorCode = "PROMO_6003"
	ErrCodeSerializationFailed   ErrorCode = "PROMO_6004"
	ErrCodeDeserializationFailed ErrorCode = "PROMO_6005"
)

// ErrorSeverity 错误严重程度
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "critical"
	SeverityHigh     ErrorSeverity = "high"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityLow      ErrorSeverity = "low"
	SeverityInfo     ErrorSeverity = "info"
)

// PromoError 抽奖引擎的统一错误类型
type PromoError struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Details   string         `json:"details,omitempty"`
	Severity  ErrorSeverity  `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	Operation string         `json:"operation,omitempty"`
	Cause     error          `json:"-"`
	Retryable bool           `json:"retryable"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Error 实现 error 接口
func (e *PromoError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *PromoError) Unwrap() error { return e.Cause }

// Is 按错误代码比较
func (e *PromoError) Is(target error) bool {
	if t, ok := target.(*PromoError); ok {
		return e.Code == t.Code
	}
	return false
}

// clone 复制错误, 预定义错误实例不会被 With* 修改
func (e *PromoError) clone() *PromoError {
	c := *e
	c.Timestamp = time.Now()
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// WithCause 添加原因错误
func (e *PromoError) WithCause(cause error) *PromoError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithDetails 添加详细信息
func (e *PromoError) WithDetails(details string) *PromoError {
	c := e.clone()
	c.Details = details
	return c
}

// WithOperation 添加操作信息
func (e *PromoError) WithOperation(operation string) *PromoError {
	c := e.clone()
	c.Operation = operation
	return c
}

// WithMetadata 添加元数据
func (e *PromoError) WithMetadata(key string, value any) *PromoError {
	c := e.clone()
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
	return c
}

// NewError 创建新的错误
func NewError(code ErrorCode, message string) *PromoError {
	return &PromoError{
		Code:      code,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
	}
}

// NewRetryableError 创建可重试的错误
func NewRetryableError(code ErrorCode, message string) *PromoError {
	err := NewError(code, message)
	err.Retryable = true
	return err
}

// NewCriticalError 创建严重错误
func NewCriticalError(code ErrorCode, message string) *PromoError {
	err := NewError(code, message)
	err.Severity = SeverityCritical
	return err
}

// 预定义的错误实例
var (
	// 系统级错误
	ErrSystemError        = NewCriticalError(ErrCodeSystem, "system error occurred")
	ErrStorageUnavailable = NewRetryableError(ErrCodeStorageUnavailable, "storage unavailable")
	ErrStorageTimeout     = NewRetryableError(ErrCodeStorageTimeout, "storage operation timeout")
	ErrConfigInvalid      = NewCriticalError(ErrCodeConfigInvalid, "configuration is invalid")

	// 输入校验错误
	ErrInvalidParameters    = NewError(ErrCodeInvalidParameters, "invalid parameters provided")
	ErrEmptyEntries         = NewError(ErrCodeEmptyEntries, "please add at least one entry")
	ErrTooManyEntries       = NewError(ErrCodeTooManyEntries, fmt.Sprintf("maximum %d entries allowed", MaxEntries))
	ErrInvalidRounds        = NewError(ErrCodeInvalidRounds, "please set a valid number of rounds (greater than 0) either manually or using the dice")
	ErrInvalidWinnerCount   = NewError(ErrCodeInvalidWinnerCount, "number of winners must be greater than 0 and cannot exceed the number of entries")
	ErrInvalidDiceCount     = NewError(ErrCodeInvalidDiceCount, "invalid dice count")
	ErrInvalidResult        = NewError(ErrCodeInvalidResult, "invalid promotion result")
	ErrDuplicateResultID    = NewError(ErrCodeDuplicateResultID, "promotion result id already recorded")
	ErrInvalidLockTimeout   = NewError(ErrCodeInvalidLockTimeout, "invalid lock expiration: must be between 1s and 5m")
	ErrInvalidRetryAttempts = NewError(ErrCodeInvalidRetryAttempts, "invalid retry attempts: must be between 0 and 10")
	ErrInvalidRetryInterval = NewError(ErrCodeInvalidRetryInterval, "invalid retry interval: cannot be negative")

	// 锁相关错误
	ErrLockAcquisitionFailed = NewRetryableError(ErrCodeLockAcquisitionFailed, "failed to acquire history writer lock")
	ErrLockReleaseFailure    = NewError(ErrCodeLockReleaseFailure, "failed to release history writer lock")

	// 运行状态错误
	ErrRunInProgress   = NewError(ErrCodeRunInProgress, "a promotion run is already in progress")
	ErrRunCancelled    = NewError(ErrCodeRunCancelled, "promotion run was cancelled")
	ErrRollInvalidated = NewError(ErrCodeRollInvalidated, "dice roll invalidated by mode switch")
	ErrRollInProgress  = NewError(ErrCodeRollInProgress, "a dice roll is already in progress")

	// 熔断相关错误
	ErrCircuitBreakerOpen = NewRetryableError(ErrCodeCircuitBreakerOpen, "circuit breaker is open")

	// 状态持久化错误
	ErrStateLoadFailure      = NewRetryableError(ErrCodeStateLoadFailure, "failed to load history")
	ErrStateSaveFailure      = NewRetryableError(ErrCodeStateSaveFailure, "failed to save history")
	ErrStateCorrupted        = NewError(ErrCodeStateCorrupted, "history data is corrupted")
	ErrSerializationFailed   = NewError(ErrCodeSerializationFailed, "serialization failed")
	ErrDeserializationFailed = NewError(ErrCodeDeserializationFailed, "deserialization failed")
)

// ErrorHandler 错误处理器接口
type ErrorHandler interface {
	HandleError(ctx context.Context, err error) error
	ShouldRetry(err error) bool
	GetRetryDelay(attempt int, err error) time.Duration
}

// DefaultErrorHandler 默认错误处理器
type DefaultErrorHandler struct {
	logger        Logger
	baseDelay     time.Duration
	maxDelay      time.Duration
	backoffFactor float64
}

// NewDefaultErrorHandler 创建默认错误处理器
func NewDefaultErrorHandler(logger Logger, baseDelay time.Duration) *DefaultErrorHandler {
	if logger == nil {
		logger = NewSilentLogger()
	}
	if baseDelay <= 0 {
		baseDelay = DefaultRetryInterval
	}
	return &DefaultErrorHandler{
		logger:        logger,
		baseDelay:     baseDelay,
		maxDelay:      5 * time.Second,
		backoffFactor: 2.0,
	}
}

// HandleError 将任意错误转换为 PromoError 并记录日志
func (h *DefaultErrorHandler) HandleError(_ context.Context, err error) error {
	if err == nil {
		return nil
	}

	var promoErr *PromoError
	if !errors.As(err, &promoErr) {
		switch {
		case isTimeoutError(err):
			promoErr = ErrStorageTimeout.WithDetails(err.Error()).WithCause(err)
		case IsRetryableError(err):
			promoErr = ErrStorageUnavailable.WithDetails(err.Error()).WithCause(err)
		default:
			promoErr = ErrSystemError.WithDetails(err.Error()).WithCause(err)
		}
	}

	h.logError(promoErr)
	return promoErr
}

// ShouldRetry 判断是否应该重试
func (h *DefaultErrorHandler) ShouldRetry(err error) bool {
	var promoErr *PromoError
	if errors.As(err, &promoErr) {
		return promoErr.Retryable
	}
	return IsRetryableError(err)
}

// GetRetryDelay 指数退避, 附带 ±25% 抖动
func (h *DefaultErrorHandler) GetRetryDelay(attempt int, _ error) time.Duration {
	if attempt <= 0 {
		return h.baseDelay
	}

	delay := time.Duration(float64(h.baseDelay) * math.Pow(h.backoffFactor, float64(attempt-1)))
	jitter := time.Duration(float64(delay) * 0.25 * (2*rand.Float64() - 1))
	delay += jitter

	if delay > h.maxDelay {
		delay = h.maxDelay
	}
	return delay
}

func (h *DefaultErrorHandler) logError(err *PromoError) {
	switch err.Severity {
	case SeverityCritical, SeverityHigh:
		h.logger.Error("Severe error: %s", err.Error())
	case SeverityLow, SeverityInfo:
		h.logger.Info("Recoverable error: %s", err.Error())
	default:
		h.logger.Debug("Error: %s (retryable=%v)", err.Error(), err.Retryable)
	}
}

// isTimeoutError 识别超时: context 截止, net.Error 超时或错误信息中的 timeout
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out")
}

// IsRetryableError 检查是否为可重试错误
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var promoErr *PromoError
	if errors.As(err, &promoErr) {
		return promoErr.Retryable
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"network is unreachable",
		"temporary failure",
		"server closed",
		"broken pipe",
		"i/o timeout",
		"dial tcp",
		"connection timed out",
		"no route to host",
		"redis: connection pool timeout",
		"database is locked",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// ErrorRecovery 错误恢复策略
type ErrorRecovery struct {
	handler    ErrorHandler
	maxRetries int
	logger     Logger
}

// NewErrorRecovery 创建错误恢复策略
func NewErrorRecovery(handler ErrorHandler, maxRetries int, logger Logger) *ErrorRecovery {
	if logger == nil {
		logger = NewSilentLogger()
	}
	return &ErrorRecovery{
		handler:    handler,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// ExecuteWithRetry 执行带重试的操作
func (r *ErrorRecovery) ExecuteWithRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return ErrSystemError.WithDetails("operation cancelled").WithOperation(operation).WithCause(err)
		}

		attempts++
		err := fn()
		if err == nil {
			if attempt > 0 {
				r.logger.Info("%s succeeded after %d retries", operation, attempt)
			}
			return nil
		}

		lastErr = r.handler.HandleError(ctx, err)
		if !r.handler.ShouldRetry(lastErr) {
			r.logger.Debug("%s failed with non-retryable error: %v", operation, lastErr)
			break
		}

		if attempt < r.maxRetries {
			delay := r.handler.GetRetryDelay(attempt+1, lastErr)
			r.logger.Debug("Retrying %s in %v (attempt %d/%d)", operation, delay, attempt+1, r.maxRetries)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ErrSystemError.WithDetails("operation cancelled during retry").WithOperation(operation).WithCause(ctx.Err())
			case <-timer.C:
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}
