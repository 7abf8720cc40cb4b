package promo

import (
	"sync/atomic"
	"time"
)

// PerformanceMetrics 引擎运行指标
type PerformanceMetrics struct {
	// 抽奖运行统计
	RunsStarted        int64 `json:"runs_started"`        // 已启动的运行次数
	RunsCompleted      int64 `json:"runs_completed"`      // 完成并记录结果的次数
	RunsCancelled      int64 `json:"runs_cancelled"`      // 被取消的运行次数
	ValidationFailures int64 `json:"validation_failures"` // 输入校验失败次数

	// 耗时统计
	TotalDrawTime   int64 `json:"total_draw_time"`   // 管线总耗时(纳秒)
	AverageDrawTime int64 `json:"average_draw_time"` // 平均管线耗时(纳秒)

	// 持久化统计
	PersistenceErrors int64 `json:"persistence_errors"` // 读写历史失败次数

	// 锁操作统计
	LockAcquisitions    int64 `json:"lock_acquisitions"`     // 锁获取次数
	LockAcquisitionTime int64 `json:"lock_acquisition_time"` // 锁获取总时间(纳秒)
	LockReleases        int64 `json:"lock_releases"`         // 锁释放次数
	LockFailures        int64 `json:"lock_failures"`         // 锁获取失败次数

	// 时间戳
	StartTime      int64 `json:"start_time"`
	LastUpdateTime int64 `json:"last_update_time"`
}

// GetCompletionRate 获取完成率(百分比)
func (pm *PerformanceMetrics) GetCompletionRate() float64 {
	started := atomic.LoadInt64(&pm.RunsStarted)
	if started == 0 {
		return 0.0
	}
	return float64(atomic.LoadInt64(&pm.RunsCompleted)) / float64(started) * 100.0
}

// GetAverageLockTime 获取平均锁获取时间
func (pm *PerformanceMetrics) GetAverageLockTime() time.Duration {
	acquisitions := atomic.LoadInt64(&pm.LockAcquisitions)
	if acquisitions == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&pm.LockAcquisitionTime) / acquisitions)
}

// Reset 重置指标
func (pm *PerformanceMetrics) Reset() {
	atomic.StoreInt64(&pm.RunsStarted, 0)
	atomic.StoreInt64(&pm.RunsCompleted, 0)
	atomic.StoreInt64(&pm.RunsCancelled, 0)
	atomic.StoreInt64(&pm.ValidationFailures, 0)
	atomic.StoreInt64(&pm.TotalDrawTime, 0)
	atomic.StoreInt64(&pm.AverageDrawTime, 0)
	atomic.StoreInt64(&pm.PersistenceErrors, 0)
	atomic.StoreInt64(&pm.LockAcquisitions, 0)
	atomic.StoreInt64(&pm.LockAcquisitionTime, 0)
	atomic.StoreInt64(&pm.LockReleases, 0)
	atomic.StoreInt64(&pm.LockFailures, 0)
	now := time.Now().UnixNano()
	atomic.StoreInt64(&pm.StartTime, now)
	atomic.StoreInt64(&pm.LastUpdateTime, now)
}

// ================================================================================

// PerformanceMonitor 性能监控器
type PerformanceMonitor struct {
	metrics *PerformanceMetrics
	enabled atomic.Bool
}

// NewPerformanceMonitor 创建新的性能监控器
func NewPerformanceMonitor() *PerformanceMonitor {
	pm := &PerformanceMonitor{metrics: &PerformanceMetrics{}}
	pm.enabled.Store(true)
	pm.metrics.Reset()
	return pm
}

// Enable 启用性能监控
func (pm *PerformanceMonitor) Enable() { pm.enabled.Store(true) }

// Disable 禁用性能监控
func (pm *PerformanceMonitor) Disable() { pm.enabled.Store(false) }

// IsEnabled 检查是否启用了性能监控
func (pm *PerformanceMonitor) IsEnabled() bool { return pm.enabled.Load() }

func (pm *PerformanceMonitor) touch() {
	atomic.StoreInt64(&pm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// RecordRunStarted 记录一次运行开始
func (pm *PerformanceMonitor) RecordRunStarted() {
	if !pm.IsEnabled() {
		return
	}
	atomic.AddInt64(&pm.metrics.RunsStarted, 1)
	pm.touch()
}

// RecordRunCompleted 记录一次完成的运行及管线耗时
func (pm *PerformanceMonitor) RecordRunCompleted(duration time.Duration) {
	if !pm.IsEnabled() {
		return
	}
	completed := atomic.AddInt64(&pm.metrics.RunsCompleted, 1)
	total := atomic.AddInt64(&pm.metrics.TotalDrawTime, int64(duration))
	atomic.StoreInt64(&pm.metrics.AverageDrawTime, total/completed)
	pm.touch()
}

// RecordRunCancelled 记录一次取消
func (pm *PerformanceMonitor) RecordRunCancelled() {
	if !pm.IsEnabled() {
		return
	}
	atomic.AddInt64(&pm.metrics.RunsCancelled, 1)
	pm.touch()
}

// RecordValidationFailure 记录一次输入校验失败
func (pm *PerformanceMonitor) RecordValidationFailure() {
	if !pm.IsEnabled() {
		return
	}
	atomic.AddInt64(&pm.metrics.ValidationFailures, 1)
	pm.touch()
}

// RecordPersistenceError 记录一次历史读写失败
func (pm *PerformanceMonitor) RecordPersistenceError() {
	if !pm.IsEnabled() {
		return
	}
	atomic.AddInt64(&pm.metrics.PersistenceErrors, 1)
	pm.touch()
}

// RecordLockAcquisition 记录锁获取操作
func (pm *PerformanceMonitor) RecordLockAcquisition(success bool, duration time.Duration) {
	if !pm.IsEnabled() {
		return
	}
	if success {
		atomic.AddInt64(&pm.metrics.LockAcquisitions, 1)
		atomic.AddInt64(&pm.metrics.LockAcquisitionTime, int64(duration))
	} else {
		atomic.AddInt64(&pm.metrics.LockFailures, 1)
	}
	pm.touch()
}

// RecordLockRelease 记录锁释放操作
func (pm *PerformanceMonitor) RecordLockRelease() {
	if !pm.IsEnabled() {
		return
	}
	atomic.AddInt64(&pm.metrics.LockReleases, 1)
	pm.touch()
}

// GetMetrics 获取指标快照
func (pm *PerformanceMonitor) GetMetrics() PerformanceMetrics {
	return PerformanceMetrics{
		RunsStarted:         atomic.LoadInt64(&pm.metrics.RunsStarted),
		RunsCompleted:       atomic.LoadInt64(&pm.metrics.RunsCompleted),
		RunsCancelled:       atomic.LoadInt64(&pm.metrics.RunsCancelled),
		ValidationFailures:  atomic.LoadInt64(&pm.metrics.ValidationFailures),
		TotalDrawTime:       atomic.LoadInt64(&pm.metrics.TotalDrawTime),
		AverageDrawTime:     atomic.LoadInt64(&pm.metrics.AverageDrawTime),
		PersistenceErrors:   atomic.LoadInt64(&pm.metrics.PersistenceErrors),
		LockAcquisitions:    atomic.LoadInt64(&pm.metrics.LockAcquisitions),
		LockAcquisitionTime: atomic.LoadInt64(&pm.metrics.LockAcquisitionTime),
		LockReleases:        atomic.LoadInt64(&pm.metrics.LockReleases),
		LockFailures:        atomic.LoadInt64(&pm.metrics.LockFailures),
		StartTime:           atomic.LoadInt64(&pm.metrics.StartTime),
		LastUpdateTime:      atomic.LoadInt64(&pm.metrics.LastUpdateTime),
	}
}

// ResetMetrics 重置性能指标
func (pm *PerformanceMonitor) ResetMetrics() { pm.metrics.Reset() }
