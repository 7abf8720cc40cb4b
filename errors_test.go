package promo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromoError(t *testing.T) {
	t.Run("basic_error", func(t *testing.T) {
		err := NewError(ErrCodeInvalidParameters, "test error message")

		assert.Equal(t, ErrCodeInvalidParameters, err.Code)
		assert.Equal(t, "test error message", err.Message)
		assert.Equal(t, SeverityMedium, err.Severity)
		assert.False(t, err.Retryable)
		assert.Contains(t, err.Error(), "PROMO_2000")
		assert.Contains(t, err.Error(), "test error message")
	})

	t.Run("retryable_error", func(t *testing.T) {
		err := NewRetryableError(ErrCodeStorageUnavailable, "connection failed")

		assert.True(t, err.Retryable)
		assert.Equal(t, ErrCodeStorageUnavailable, err.Code)
	})

	t.Run("critical_error", func(t *testing.T) {
		err := NewCriticalError(ErrCodeSystem, "system failure")
		assert.Equal(t, SeverityCritical, err.Severity)
	})

	t.Run("error_with_details", func(t *testing.T) {
		err := NewError(ErrCodeInvalidWinnerCount, "invalid winners").
			WithDetails("k=4, n=3").
			WithOperation("Draw").
			WithMetadata("attempt", 3)

		assert.Equal(t, "invalid winners", err.Message)
		assert.Equal(t, "k=4, n=3", err.Details)
		assert.Equal(t, "Draw", err.Operation)
		assert.Equal(t, 3, err.Metadata["attempt"])

		errorStr := err.Error()
		assert.Contains(t, errorStr, "invalid winners")
		assert.Contains(t, errorStr, "k=4, n=3")
	})

	t.Run("error_with_cause", func(t *testing.T) {
		originalErr := errors.New("original error")
		err := NewError(ErrCodeSystem, "wrapped error").WithCause(originalErr)

		assert.Equal(t, originalErr, err.Unwrap())
		assert.True(t, errors.Is(err, originalErr))
	})

	t.Run("error_comparison", func(t *testing.T) {
		err1 := NewError(ErrCodeInvalidParameters, "error 1")
		err2 := NewError(ErrCodeInvalidParameters, "error 2")
		err3 := NewError(ErrCodeInvalidRounds, "error 3")

		assert.True(t, errors.Is(err1, err2))
		assert.False(t, errors.Is(err1, err3))
	})

	t.Run("builders_do_not_mutate_predefined", func(t *testing.T) {
		detailed := ErrInvalidRounds.WithDetails("got 0").WithMetadata("input", "0")

		assert.Empty(t, ErrInvalidRounds.Details)
		assert.Nil(t, ErrInvalidRounds.Metadata)
		assert.Equal(t, "got 0", detailed.Details)
		assert.True(t, errors.Is(detailed, ErrInvalidRounds))
	})
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       *PromoError
		code      ErrorCode
		retryable bool
		severity  ErrorSeverity
	}{
		{"system_error", ErrSystemError, ErrCodeSystem, false, SeverityCritical},
		{"storage_unavailable", ErrStorageUnavailable, ErrCodeStorageUnavailable, true, SeverityMedium},
		{"invalid_parameters", ErrInvalidParameters, ErrCodeInvalidParameters, false, SeverityMedium},
		{"empty_entries", ErrEmptyEntries, ErrCodeEmptyEntries, false, SeverityMedium},
		{"too_many_entries", ErrTooManyEntries, ErrCodeTooManyEntries, false, SeverityMedium},
		{"invalid_rounds", ErrInvalidRounds, ErrCodeInvalidRounds, false, SeverityMedium},
		{"invalid_winner_count", ErrInvalidWinnerCount, ErrCodeInvalidWinnerCount, false, SeverityMedium},
		{"lock_acquisition_failed", ErrLockAcquisitionFailed, ErrCodeLockAcquisitionFailed, true, SeverityMedium},
		{"run_in_progress", ErrRunInProgress, ErrCodeRunInProgress, false, SeverityMedium},
		{"circuit_breaker_open", ErrCircuitBreakerOpen, ErrCodeCircuitBreakerOpen, true, SeverityMedium},
		{"state_corrupted", ErrStateCorrupted, ErrCodeStateCorrupted, false, SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.Equal(t, tt.severity, tt.err.Severity)
		})
	}
}

func TestDefaultErrorHandler(t *testing.T) {
	logger := NewSilentLogger()
	handler := NewDefaultErrorHandler(logger, 100*time.Millisecond)

	t.Run("handle_promo_error", func(t *testing.T) {
		originalErr := NewError(ErrCodeInvalidParameters, "test error")
		handledErr := handler.HandleError(context.Background(), originalErr)

		var promoErr *PromoError
		require.True(t, errors.As(handledErr, &promoErr))
		assert.Equal(t, ErrCodeInvalidParameters, promoErr.Code)
	})

	t.Run("handle_regular_error", func(t *testing.T) {
		originalErr := errors.New("regular error")
		handledErr := handler.HandleError(context.Background(), originalErr)

		var promoErr *PromoError
		require.True(t, errors.As(handledErr, &promoErr))
		assert.Equal(t, ErrCodeSystem, promoErr.Code)
		assert.False(t, promoErr.Retryable)
		assert.Equal(t, originalErr, promoErr.Unwrap())
	})

	t.Run("handle_transient_error", func(t *testing.T) {
		handledErr := handler.HandleError(context.Background(), errors.New("dial tcp 127.0.0.1:6379: connection refused"))

		var promoErr *PromoError
		require.True(t, errors.As(handledErr, &promoErr))
		assert.Equal(t, ErrCodeStorageUnavailable, promoErr.Code)
		assert.True(t, promoErr.Retryable)
	})

	t.Run("handle_timeout_error", func(t *testing.T) {
		for _, err := range []error{
			errors.New("dial tcp 10.0.0.1:6379: i/o timeout"),
			fmt.Errorf("get: %w", context.DeadlineExceeded),
		} {
			handledErr := handler.HandleError(context.Background(), err)
			assert.ErrorIs(t, handledErr, ErrStorageTimeout)
			assert.ErrorIs(t, handledErr, err)
			assert.True(t, handler.ShouldRetry(handledErr))
		}
	})

	t.Run("should_retry", func(t *testing.T) {
		retryableErr := NewRetryableError(ErrCodeStorageUnavailable, "connection failed")
		nonRetryableErr := NewError(ErrCodeInvalidParameters, "invalid params")
		regularErr := errors.New("connection timeout")

		assert.True(t, handler.ShouldRetry(retryableErr))
		assert.False(t, handler.ShouldRetry(nonRetryableErr))
		assert.True(t, handler.ShouldRetry(regularErr)) // 包含 "timeout"
	})

	t.Run("get_retry_delay", func(t *testing.T) {
		err := NewRetryableError(ErrCodeStorageUnavailable, "connection failed")

		var delays []time.Duration
		for i := 1; i <= 3; i++ {
			delays = append(delays, handler.GetRetryDelay(i, err))
		}

		// 验证延迟在预期范围内（考虑±25%抖动）
		bases := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
		for i, base := range bases {
			assert.GreaterOrEqual(t, delays[i], time.Duration(float64(base)*0.75))
			assert.LessOrEqual(t, delays[i], time.Duration(float64(base)*1.25))
		}
	})

	t.Run("delay_is_capped", func(t *testing.T) {
		assert.LessOrEqual(t, handler.GetRetryDelay(20, nil), 5*time.Second)
		assert.Equal(t, 100*time.Millisecond, handler.GetRetryDelay(0, nil))
	})
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil_error", nil, false},
		{"connection_refused", errors.New("connection refused"), true},
		{"connection_reset", errors.New("connection reset by peer"), true},
		{"timeout", errors.New("operation timeout"), true},
		{"network_unreachable", errors.New("network is unreachable"), true},
		{"temporary_failure", errors.New("temporary failure"), true},
		{"server_closed", errors.New("server closed"), true},
		{"broken_pipe", errors.New("broken pipe"), true},
		{"io_timeout", errors.New("i/o timeout"), true},
		{"dial_tcp", errors.New("dial tcp: connection failed"), true},
		{"read_tcp", errors.New("read tcp: connection reset"), true},
		{"redis_pool_timeout", errors.New("redis: connection pool timeout"), true},
		{"sqlite_busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"invalid_command", errors.New("ERR unknown command"), false},
		{"wrong_type", errors.New("WRONGTYPE Operation against wrong type"), false},
		{"syntax_error", errors.New("ERR syntax error"), false},
		{"retryable_promo_error", ErrStateSaveFailure, true},
		{"non_retryable_promo_error", ErrStateCorrupted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryableError(tt.err))
		})
	}
}

func TestErrorRecovery(t *testing.T) {
	logger := NewSilentLogger()
	handler := NewDefaultErrorHandler(logger, time.Millisecond)
	recovery := NewErrorRecovery(handler, 2, logger)

	t.Run("successful_operation", func(t *testing.T) {
		callCount := 0
		err := recovery.ExecuteWithRetry(context.Background(), "op", func() error {
			callCount++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, callCount)
	})

	t.Run("retry_then_success", func(t *testing.T) {
		callCount := 0
		err := recovery.ExecuteWithRetry(context.Background(), "op", func() error {
			callCount++
			if callCount < 3 {
				return NewRetryableError(ErrCodeStorageUnavailable, "connection failed")
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, callCount)
	})

	t.Run("non_retryable_error", func(t *testing.T) {
		callCount := 0
		err := recovery.ExecuteWithRetry(context.Background(), "op", func() error {
			callCount++
			return NewError(ErrCodeInvalidParameters, "invalid params")
		})

		assert.Error(t, err)
		assert.Equal(t, 1, callCount) // 不应该重试
		assert.Contains(t, err.Error(), "op failed after 1 attempts")
		assert.ErrorIs(t, err, ErrInvalidParameters)
	})

	t.Run("max_retries_exceeded", func(t *testing.T) {
		callCount := 0
		err := recovery.ExecuteWithRetry(context.Background(), "save[history]", func() error {
			callCount++
			return NewRetryableError(ErrCodeStorageUnavailable, "connection failed")
		})

		assert.Error(t, err)
		assert.Equal(t, 3, callCount) // 1 + 2 retries
		assert.Contains(t, err.Error(), "save[history] failed after 3 attempts")
		assert.True(t, errors.Is(err, ErrStorageUnavailable))
	})

	t.Run("context_cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		callCount := 0
		err := recovery.ExecuteWithRetry(ctx, "op", func() error {
			callCount++
			return nil
		})

		assert.Error(t, err)
		assert.Equal(t, 0, callCount)
		assert.Contains(t, err.Error(), "operation cancelled")
		assert.ErrorIs(t, err, ErrSystemError)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("context_cancelled_during_retry", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		// 重试延迟比上下文超时长
		slowRecovery := NewErrorRecovery(NewDefaultErrorHandler(logger, time.Second), 2, logger)

		err := slowRecovery.ExecuteWithRetry(ctx, "op", func() error {
			return NewRetryableError(ErrCodeStorageUnavailable, "connection failed")
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "cancelled")
	})
}

func BenchmarkPromoError_Creation(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		err := NewError(ErrCodeInvalidParameters, "test error").
			WithDetails("test details").
			WithOperation("test-op").
			WithMetadata("key", "value")
		_ = err
	}
}

func BenchmarkIsRetryableError(b *testing.B) {
	err := errors.New("connection timeout")

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = IsRetryableError(err)
	}
}
