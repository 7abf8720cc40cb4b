package promo

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryStore_AppendNewestFirst(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	h := NewHistoryStore(storage)

	require.NoError(t, h.Append(ctx, sampleResult("r1")))
	require.NoError(t, h.Append(ctx, sampleResult("r2")))

	ids := func(rs []PromotionResult) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.ID
		}
		return out
	}
	assert.Equal(t, []string{"r2", "r1"}, ids(h.Entries()))

	reloaded := NewHistoryStore(storage).Load(ctx)
	assert.Equal(t, []string{"r2", "r1"}, ids(reloaded))
	assert.Equal(t, h.Entries(), reloaded)
}

func TestHistoryStore_PersistedLayout(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	h := NewHistoryStore(storage)
	require.NoError(t, h.Append(ctx, sampleResult("r1")))

	data, err := storage.Get(ctx, DefaultHistoryKey)
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, "r1", raw[0]["id"])
	assert.Equal(t, "Promo r1", raw[0]["promoName"])
	assert.EqualValues(t, 2, raw[0]["rounds"])
}

func TestHistoryStore_Load(t *testing.T) {
	valid, err := json.Marshal([]PromotionResult{sampleResult("b"), sampleResult("a")})
	require.NoError(t, err)

	invalid := sampleResult("x")
	invalid.Winners = []string{"not-in-list"}
	invalidData, err := json.Marshal([]PromotionResult{sampleResult("ok"), invalid})
	require.NoError(t, err)

	dupData, err := json.Marshal([]PromotionResult{sampleResult("d"), sampleResult("d")})
	require.NoError(t, err)

	tests := []struct {
		name    string
		data    []byte
		wantLen int
		wantErr error
	}{
		{"absent_key", nil, 0, nil},
		{"valid_log", valid, 2, nil},
		{"empty_array", []byte("[]"), 0, nil},
		{"corrupt_json", []byte("{not json"), 0, ErrDeserializationFailed},
		{"wrong_shape", []byte(`{"id":"x"}`), 0, ErrDeserializationFailed},
		{"invalid_record", invalidData, 0, ErrStateCorrupted},
		{"duplicate_ids", dupData, 0, ErrStateCorrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			storage := NewMemoryStorage()
			if tt.data != nil {
				require.NoError(t, storage.Set(ctx, DefaultHistoryKey, tt.data))
			}
			monitor := NewPerformanceMonitor()
			h := NewHistoryStore(storage, WithHistoryMonitor(monitor))

			got := h.Load(ctx)
			assert.Len(t, got, tt.wantLen)
			assert.Equal(t, tt.wantLen, h.Len())

			if tt.wantErr != nil {
				assert.ErrorIs(t, h.LastError(), tt.wantErr)
				assert.EqualValues(t, 1, monitor.GetMetrics().PersistenceErrors)
			} else {
				assert.NoError(t, h.LastError())
				assert.EqualValues(t, 0, monitor.GetMetrics().PersistenceErrors)
			}
		})
	}
}

func TestHistoryStore_LoadReadFailure(t *testing.T) {
	h := NewHistoryStore(&failingStorage{err: errBoom})

	got := h.Load(context.Background())
	assert.Empty(t, got)
	assert.ErrorIs(t, h.LastError(), errBoom)
}

func TestHistoryStore_SaveFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	storage := &failingStorage{err: errBoom}
	h := NewHistoryStore(storage)

	require.NoError(t, h.Append(ctx, sampleResult("r1")))

	assert.Equal(t, 1, h.Len())
	assert.ErrorIs(t, h.LastError(), errBoom)

	_, ok := h.Get("r1")
	assert.True(t, ok)
}

func TestHistoryStore_SuccessfulSaveClearsLastError(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(NewMemoryStorage())

	h.Load(ctx)
	h.mu.Lock()
	h.lastErr = errBoom
	h.mu.Unlock()

	require.NoError(t, h.Append(ctx, sampleResult("r1")))
	assert.NoError(t, h.LastError())
}

func TestHistoryStore_AppendRejects(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(nil)
	require.NoError(t, h.Append(ctx, sampleResult("r1")))

	err := h.Append(ctx, sampleResult("r1"))
	assert.ErrorIs(t, err, ErrDuplicateResultID)

	bad := sampleResult("r2")
	bad.Rounds = 0
	assert.ErrorIs(t, h.Append(ctx, bad), ErrInvalidResult)

	assert.Equal(t, 1, h.Len())
}

func TestHistoryStore_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	h := NewHistoryStore(storage)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, h.Append(ctx, sampleResult(id)))
	}

	assert.True(t, h.Remove(ctx, "b"))
	assert.False(t, h.Remove(ctx, "missing"))

	reloaded := NewHistoryStore(storage).Load(ctx)
	require.Len(t, reloaded, 2)
	assert.Equal(t, "c", reloaded[0].ID)
	assert.Equal(t, "a", reloaded[1].ID)

	h.Clear(ctx)
	assert.Equal(t, 0, h.Len())

	data, err := storage.Get(ctx, DefaultHistoryKey)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestHistoryStore_Replace(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(nil)
	require.NoError(t, h.Append(ctx, sampleResult("old")))

	require.NoError(t, h.Replace(ctx, []PromotionResult{sampleResult("n2"), sampleResult("n1")}))

	entries := h.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "n2", entries[0].ID)
	_, ok := h.Get("old")
	assert.False(t, ok)
}

func TestHistoryStore_UpdateRejectsInvalidLog(t *testing.T) {
	invalid := sampleResult("bad")
	invalid.Winners = []string{"not-in-list"}

	tests := []struct {
		name    string
		log     func(r1, r2 PromotionResult) []PromotionResult
		wantErr error
	}{
		{"duplicate_id", func(r1, r2 PromotionResult) []PromotionResult {
			return []PromotionResult{r2, r1, r1}
		}, ErrDuplicateResultID},
		{"invalid_record", func(r1, r2 PromotionResult) []PromotionResult {
			return []PromotionResult{r2, invalid, r1}
		}, ErrInvalidResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			storage := NewMemoryStorage()
			h := NewHistoryStore(storage)
			r1, r2 := sampleResult("r1"), sampleResult("r2")
			require.NoError(t, h.Append(ctx, r1))
			require.NoError(t, h.Append(ctx, r2))

			err := h.Replace(ctx, tt.log(r1, r2))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, h.LastError())
			assert.Equal(t, []PromotionResult{r2, r1}, h.Entries())

			// 重新加载仍然得到之前的日志
			reloaded := NewHistoryStore(storage)
			assert.Equal(t, []PromotionResult{r2, r1}, reloaded.Load(ctx))
			assert.NoError(t, reloaded.LastError())
		})
	}
}

func TestHistoryStore_UpdateAppliesValidLog(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(nil)
	require.NoError(t, h.Append(ctx, sampleResult("r1")))

	calls := 0
	err := h.Update(ctx, func(old []PromotionResult) []PromotionResult {
		calls++
		return append(old, sampleResult("r0"))
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, h.Len())

	// Remove 也经过同样的校验
	assert.True(t, h.Remove(ctx, "r0"))
	assert.False(t, h.Remove(ctx, "r0"))
}

func TestHistoryStore_EntriesAreCopies(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(nil)
	require.NoError(t, h.Append(ctx, sampleResult("r1")))

	entries := h.Entries()
	entries[0].Winners[0] = "hacked"
	entries[0].Name = "hacked"

	got, ok := h.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "B", got.Winners[0])
	assert.Equal(t, "Promo r1", got.Name)
}

func TestHistoryStore_CustomKey(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	h := NewHistoryStore(storage, WithHistoryKey("tenant-a"))
	require.NoError(t, h.Append(ctx, sampleResult("r1")))

	assert.Equal(t, "tenant-a", h.Key())

	data, err := storage.Get(ctx, DefaultHistoryKey)
	require.NoError(t, err)
	assert.Nil(t, data)

	assert.Len(t, NewHistoryStore(storage, WithHistoryKey("tenant-a")).Load(ctx), 1)
}

func TestHistoryStore_Locker(t *testing.T) {
	ctx := context.Background()

	t.Run("save_holds_writer_lock", func(t *testing.T) {
		locker := &fakeLocker{}
		h := NewHistoryStore(nil, WithHistoryLocker(locker, 0))

		require.NoError(t, h.Append(ctx, sampleResult("r1")))
		assert.Equal(t, []string{HistoryLockPrefix + DefaultHistoryKey}, locker.acquired)
		assert.Equal(t, locker.acquired, locker.released)
		assert.NoError(t, h.LastError())
	})

	t.Run("lock_refused_skips_write", func(t *testing.T) {
		locker := &fakeLocker{refuse: true}
		storage := NewMemoryStorage()
		h := NewHistoryStore(storage, WithHistoryLocker(locker, 0))

		require.NoError(t, h.Append(ctx, sampleResult("r1")))
		assert.ErrorIs(t, h.LastError(), ErrLockAcquisitionFailed)
		assert.Equal(t, 1, h.Len())

		data, err := storage.Get(ctx, DefaultHistoryKey)
		require.NoError(t, err)
		assert.Nil(t, data)
		assert.Empty(t, locker.released)
	})
}

func TestHistoryStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	h := NewHistoryStore(storage)
	ids := counterIDs()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Append(ctx, sampleResult(ids())))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, h.Len())

	// 最后一次写入必须是完整的日志
	reloaded := NewHistoryStore(storage).Load(ctx)
	assert.Equal(t, h.Entries(), reloaded)
}
