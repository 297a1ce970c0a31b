package xpmem

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDual_Save_VisibleThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	ctx := context.Background()

	dual, err := NewDual[string](ctx, path, fastConfig())
	require.NoError(t, err)
	defer dual.Close()

	require.NoError(t, dual.Save(ctx, "k", "async-value"))
	assert.Equal(t, "async-value", dual.Load(ctx, "k", ""))
}

func TestDual_SaveSync_VisibleToAsyncHalf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	ctx := context.Background()

	dual, err := NewDual[string](ctx, path, fastConfig())
	require.NoError(t, err)
	defer dual.Close()

	// 同步直写落在阻塞式半边，Load 经它的缓存命中
	require.NoError(t, dual.SaveSync("k", "sync-value"))
	assert.Equal(t, "sync-value", dual.Load(ctx, "k", ""))
}

func TestDual_Load_FallsThroughToDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	ctx := context.Background()

	seed, err := New[int](path, fastConfig())
	require.NoError(t, err)
	require.NoError(t, seed.SaveSync("persisted", 7))
	require.NoError(t, seed.Close())

	dual, err := NewDual[int](ctx, path, fastConfig())
	require.NoError(t, err)
	defer dual.Close()

	assert.Equal(t, 7, dual.Load(ctx, "persisted", 0), "两边缓存都未命中时回源持久层")
}

func TestDual_Delete_HidesValueOnBothHalves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	ctx := context.Background()

	dual, err := NewDual[string](ctx, path, fastConfig())
	require.NoError(t, err)
	defer dual.Close()

	require.NoError(t, dual.SaveSync("k", "v"))
	require.NoError(t, dual.Delete(ctx, "k"))

	assert.Equal(t, "gone", dual.Load(ctx, "k", "gone"))
}

func TestDual_Flush_DrainsBothHalves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	ctx := context.Background()

	dual, err := NewDual[int](ctx, path, fastConfig())
	require.NoError(t, err)
	defer dual.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, dual.Save(ctx, key(i), i))
	}

	assert.True(t, dual.Flush(ctx))
	assert.Zero(t, dual.Pending())
}

func TestDual_SaveAfterDelete_NewValueStaysVisible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	ctx := context.Background()

	// clean 层容量 1，后续写入会把 k 从协作式半边的缓存淘汰
	cfg := fastConfig()
	cfg.CacheCapacity = 1

	dual, err := NewDual[string](ctx, path, cfg)
	require.NoError(t, err)
	defer dual.Close()

	require.NoError(t, dual.Save(ctx, "k", "v1"))
	require.NoError(t, dual.Delete(ctx, "k"))
	require.True(t, dual.Flush(ctx))

	// 删除之后的重新保存必须作废阻塞式半边残留的墓碑
	require.NoError(t, dual.Save(ctx, "k", "v2"))
	require.True(t, dual.Flush(ctx))

	require.NoError(t, dual.Save(ctx, "other", "x"))
	require.True(t, dual.Flush(ctx))

	assert.Equal(t, "v2", dual.Load(ctx, "k", "MISSING"),
		"缓存淘汰后 Load 必须回源到持久层的最新值，而不是命中陈旧墓碑")
}

// recordingBackend 在 mock 之上记录写入与关闭的先后顺序。
type recordingBackend struct {
	*mockBackend
	name   string
	record func(string)
}

func (b *recordingBackend) Upsert(ctx context.Context, hashKey string, blob []byte) error {
	b.record(b.name + ":upsert")
	return b.mockBackend.Upsert(ctx, hashKey, blob)
}

func (b *recordingBackend) Close() error {
	b.record(b.name + ":close")
	return b.mockBackend.Close()
}

func TestDual_Close_DrainsAsyncHalfBeforeClosingSync(t *testing.T) {
	var mu sync.Mutex
	var events []string
	record := func(ev string) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}

	asyncBe := &recordingBackend{mockBackend: newMockBackend(), name: "async", record: record}
	syncBe := &recordingBackend{mockBackend: newMockBackend(), name: "sync", record: record}

	syncStore, err := NewWithBackend[string](syncBe, fastConfig())
	require.NoError(t, err)
	asyncStore, err := NewAsyncWithBackend[string](asyncBe, fastConfig())
	require.NoError(t, err)
	dual := &Dual[string]{sync: syncStore, async: asyncStore}

	ctx := context.Background()
	require.NoError(t, dual.Save(ctx, "k", "v"))
	require.NoError(t, dual.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"async:upsert", "async:close", "sync:close"}, events,
		"协作式半边先排空并关闭，之后才轮到阻塞式半边")
}

func TestDual_Close_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")

	dual, err := NewDual[string](context.Background(), path, fastConfig())
	require.NoError(t, err)

	require.NoError(t, dual.Close())
	require.NoError(t, dual.Close())
}
