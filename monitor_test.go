package promo

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPerformanceMetrics(t *testing.T) {
	metrics := &PerformanceMetrics{}
	metrics.Reset()

	t.Run("初始状态", func(t *testing.T) {
		assert.Equal(t, int64(0), metrics.RunsStarted)
		assert.Equal(t, int64(0), metrics.RunsCompleted)
		assert.Equal(t, int64(0), metrics.RunsCancelled)
		assert.Equal(t, 0.0, metrics.GetCompletionRate())
		assert.Equal(t, time.Duration(0), metrics.GetAverageLockTime())
		assert.NotZero(t, metrics.StartTime)
	})

	t.Run("完成率计算", func(t *testing.T) {
		metrics.Reset()
		metrics.RunsStarted = 20
		metrics.RunsCompleted = 15
		metrics.RunsCancelled = 5

		assert.Equal(t, 75.0, metrics.GetCompletionRate())
	})

	t.Run("平均锁时间计算", func(t *testing.T) {
		metrics.Reset()
		metrics.LockAcquisitions = 10
		metrics.LockAcquisitionTime = int64(10 * time.Millisecond)

		assert.Equal(t, time.Millisecond, metrics.GetAverageLockTime())
	})
}

func TestPerformanceMonitor(t *testing.T) {
	monitor := NewPerformanceMonitor()

	t.Run("启用和禁用", func(t *testing.T) {
		assert.True(t, monitor.IsEnabled())

		monitor.Disable()
		assert.False(t, monitor.IsEnabled())

		monitor.Enable()
		assert.True(t, monitor.IsEnabled())
	})

	t.Run("记录运行", func(t *testing.T) {
		monitor.ResetMetrics()

		monitor.RecordRunStarted()
		monitor.RecordRunStarted()
		monitor.RecordRunStarted()
		monitor.RecordRunCompleted(100 * time.Millisecond)
		monitor.RecordRunCompleted(300 * time.Millisecond)
		monitor.RecordRunCancelled()
		monitor.RecordValidationFailure()
		monitor.RecordPersistenceError()

		metrics := monitor.GetMetrics()
		assert.Equal(t, int64(3), metrics.RunsStarted)
		assert.Equal(t, int64(2), metrics.RunsCompleted)
		assert.Equal(t, int64(1), metrics.RunsCancelled)
		assert.Equal(t, int64(1), metrics.ValidationFailures)
		assert.Equal(t, int64(1), metrics.PersistenceErrors)
		assert.Equal(t, int64(400*time.Millisecond), metrics.TotalDrawTime)
		assert.Equal(t, int64(200*time.Millisecond), metrics.AverageDrawTime)
		assert.InDelta(t, 66.67, metrics.GetCompletionRate(), 0.01)
	})

	t.Run("记录锁操作", func(t *testing.T) {
		monitor.ResetMetrics()

		monitor.RecordLockAcquisition(true, 10*time.Millisecond)
		monitor.RecordLockAcquisition(true, 20*time.Millisecond)
		monitor.RecordLockAcquisition(false, 5*time.Millisecond)
		monitor.RecordLockRelease()
		monitor.RecordLockRelease()

		metrics := monitor.GetMetrics()
		assert.Equal(t, int64(2), metrics.LockAcquisitions)
		assert.Equal(t, int64(1), metrics.LockFailures)
		assert.Equal(t, int64(2), metrics.LockReleases)
		assert.Equal(t, 15*time.Millisecond, metrics.GetAverageLockTime())
	})

	t.Run("禁用时不记录", func(t *testing.T) {
		monitor.ResetMetrics()
		monitor.Disable()
		defer monitor.Enable()

		monitor.RecordRunStarted()
		monitor.RecordRunCompleted(time.Second)
		monitor.RecordLockAcquisition(true, 10*time.Millisecond)
		monitor.RecordPersistenceError()

		metrics := monitor.GetMetrics()
		assert.Equal(t, int64(0), metrics.RunsStarted)
		assert.Equal(t, int64(0), metrics.RunsCompleted)
		assert.Equal(t, int64(0), metrics.LockAcquisitions)
		assert.Equal(t, int64(0), metrics.PersistenceErrors)
	})

	t.Run("快照不随后续记录变化", func(t *testing.T) {
		monitor.ResetMetrics()
		monitor.RecordRunStarted()

		snapshot := monitor.GetMetrics()
		monitor.RecordRunStarted()

		assert.Equal(t, int64(1), snapshot.RunsStarted)
		assert.Equal(t, int64(2), monitor.GetMetrics().RunsStarted)
	})
}

func TestPerformanceMonitor_Concurrent(t *testing.T) {
	monitor := NewPerformanceMonitor()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				monitor.RecordRunStarted()
				monitor.RecordRunCompleted(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	metrics := monitor.GetMetrics()
	assert.Equal(t, int64(1000), metrics.RunsStarted)
	assert.Equal(t, int64(1000), metrics.RunsCompleted)
	assert.Equal(t, 100.0, metrics.GetCompletionRate())
}
