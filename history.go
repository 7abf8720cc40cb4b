package promo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// HistoryStore is the persisted newest-first log of completed promotions.
//
// 每次修改都会整体重写序列化后的日志; 持久化失败只会被记录, 内存状态保留修改。
type HistoryStore struct {
	writeMu sync.Mutex // held across mutation and save
	mu      sync.RWMutex
	entries []PromotionResult
	lastErr error

	storage Storage
	key     string
	locker  Locker
	lockTTL time.Duration

	logger  Logger
	monitor *PerformanceMonitor
}

// HistoryOption configures a HistoryStore
type HistoryOption func(*HistoryStore)

// WithHistoryKey overrides the storage key holding the log
func WithHistoryKey(key string) HistoryOption {
	return func(h *HistoryStore) {
		if key != "" {
			h.key = key
		}
	}
}

// WithHistoryLocker guards every save with the single-writer lock
func WithHistoryLocker(locker Locker, ttl time.Duration) HistoryOption {
	return func(h *HistoryStore) {
		h.locker = locker
		if ttl > 0 {
			h.lockTTL = ttl
		}
	}
}

// WithHistoryLogger sets the logger
func WithHistoryLogger(logger Logger) HistoryOption {
	return func(h *HistoryStore) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHistoryMonitor shares a performance monitor
func WithHistoryMonitor(monitor *PerformanceMonitor) HistoryOption {
	return func(h *HistoryStore) {
		if monitor != nil {
			h.monitor = monitor
		}
	}
}

// NewHistoryStore creates an empty store over storage. Call Load to read the persisted log.
func NewHistoryStore(storage Storage, opts ...HistoryOption) *HistoryStore {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	h := &HistoryStore{
		storage: storage,
		key:     DefaultHistoryKey,
		lockTTL: DefaultLockExpiration,
		logger:  NewSilentLogger(),
		monitor: NewPerformanceMonitor(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Key returns the storage key of the log
func (h *HistoryStore) Key() string { return h.key }

// Load replaces the in-memory log with the persisted one.
// An absent key, a read failure or corrupt data all yield an empty log.
func (h *HistoryStore) Load(ctx context.Context) []PromotionResult {
	data, err := h.storage.Get(ctx, h.key)

	var entries []PromotionResult
	switch {
	case err != nil:
		h.fail("load", err)
	case data == nil:
		h.logger.Debug("No persisted history under key=%s", h.key)
	default:
		entries, err = deserializeHistory(data)
		if err != nil {
			h.fail("load", err)
			entries = nil
		}
	}

	h.mu.Lock()
	h.entries = entries
	if err == nil {
		h.lastErr = nil
	}
	h.mu.Unlock()

	h.logger.Info("History loaded: key=%s, entries=%d", h.key, len(entries))
	return cloneResults(entries)
}

// Update applies fn to the current log exactly once, then persists the returned log.
// A log with an invalid record or a repeated id is rejected and the current log is kept.
func (h *HistoryStore) Update(ctx context.Context, fn func([]PromotionResult) []PromotionResult) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	h.mu.RLock()
	next := cloneResults(fn(cloneResults(h.entries)))
	h.mu.RUnlock()

	if err := validateHistory(next); err != nil {
		h.logger.Error("History update rejected: key=%s, error=%v", h.key, err)
		return err
	}

	h.mu.Lock()
	h.entries = next
	h.mu.Unlock()

	h.save(ctx, cloneResults(next))
	return nil
}

// Replace stores log as the whole history
func (h *HistoryStore) Replace(ctx context.Context, log []PromotionResult) error {
	return h.Update(ctx, func([]PromotionResult) []PromotionResult { return log })
}

// Append prepends r so the log stays newest first.
// Invalid results and ids already in the log are rejected.
func (h *HistoryStore) Append(ctx context.Context, r PromotionResult) error {
	if err := r.Validate(); err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	h.mu.Lock()
	for _, e := range h.entries {
		if e.ID == r.ID {
			h.mu.Unlock()
			return ErrDuplicateResultID.WithDetails(r.ID)
		}
	}
	next := make([]PromotionResult, 0, len(h.entries)+1)
	next = append(next, r.Clone())
	next = append(next, h.entries...)
	h.entries = next
	snapshot := cloneResults(next)
	h.mu.Unlock()

	h.save(ctx, snapshot)
	return nil
}

// Remove drops the result with id. It reports whether anything was removed.
func (h *HistoryStore) Remove(ctx context.Context, id string) bool {
	removed := false
	err := h.Update(ctx, func(old []PromotionResult) []PromotionResult {
		kept := old[:0]
		for _, e := range old {
			if e.ID == id {
				removed = true
				continue
			}
			kept = append(kept, e)
		}
		return kept
	})
	return err == nil && removed
}

// Clear empties the log
func (h *HistoryStore) Clear(ctx context.Context) {
	_ = h.Update(ctx, func([]PromotionResult) []PromotionResult { return nil })
}

// Entries returns a copy of the in-memory log, newest first
func (h *HistoryStore) Entries() []PromotionResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return cloneResults(h.entries)
}

// Len returns the number of results in the log
func (h *HistoryStore) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Get looks up a result by id
func (h *HistoryStore) Get(id string) (PromotionResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.entries {
		if e.ID == id {
			return e.Clone(), true
		}
	}
	return PromotionResult{}, false
}

// LastError returns the most recent persistence error, or nil after a clean load or save
func (h *HistoryStore) LastError() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr
}

func (h *HistoryStore) save(ctx context.Context, entries []PromotionResult) {
	data, err := serializeHistory(entries)
	if err != nil {
		h.fail("save", err)
		return
	}

	if h.locker != nil {
		lockKey := HistoryLockPrefix + h.key
		lockValue := generateLockValue()
		acquired, err := h.locker.AcquireLock(ctx, lockKey, lockValue, h.lockTTL)
		if err != nil || !acquired {
			if err == nil {
				err = ErrLockAcquisitionFailed
			}
			h.fail("save", err)
			return
		}
		defer func() {
			if _, err := h.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, lockValue); err != nil {
				h.logger.Error("Failed to release history lock %s: %v", lockKey, err)
			}
		}()
	}

	if err := h.storage.Set(ctx, h.key, data); err != nil {
		h.fail("save", err)
		return
	}

	h.mu.Lock()
	h.lastErr = nil
	h.mu.Unlock()
	h.logger.Debug("History saved: key=%s, entries=%d, size=%d bytes", h.key, len(entries), len(data))
}

func (h *HistoryStore) fail(op string, err error) {
	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()

	h.monitor.RecordPersistenceError()
	h.logger.Error("History %s failed: key=%s, error=%v", op, h.key, err)
}

// serializeHistory encodes the log as one JSON array; a nil log encodes as []
func serializeHistory(entries []PromotionResult) ([]byte, error) {
	if entries == nil {
		entries = []PromotionResult{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, ErrSerializationFailed.WithCause(err)
	}
	return data, nil
}

// deserializeHistory decodes and validates the whole log. Any invalid record marks the log corrupt.
func deserializeHistory(data []byte) ([]PromotionResult, error) {
	var entries []PromotionResult
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, ErrDeserializationFailed.WithCause(err)
	}

	if err := validateHistory(entries); err != nil {
		details := err.Error()
		var pe *PromoError
		if errors.As(err, &pe) {
			details = pe.Details
		}
		return nil, ErrStateCorrupted.WithDetails(details).WithCause(err)
	}
	return entries, nil
}

// validateHistory checks every record and that ids are unique across the log
func validateHistory(entries []PromotionResult) error {
	seen := make(map[string]struct{}, len(entries))
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return ErrInvalidResult.WithDetails(fmt.Sprintf("record %d: %v", i, err)).WithCause(err)
		}
		if _, dup := seen[entries[i].ID]; dup {
			return ErrDuplicateResultID.WithDetails(fmt.Sprintf("record %d: duplicate id %s", i, entries[i].ID))
		}
		seen[entries[i].ID] = struct{}{}
	}
	return nil
}

func cloneResults(in []PromotionResult) []PromotionResult {
	if in == nil {
		return nil
	}
	out := make([]PromotionResult, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
