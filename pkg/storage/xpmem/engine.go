package xpmem

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/omeyang/memkit/pkg/codec/xcodec"
)

// engine 是三种门面共享的写回核心：缓存 + 队列 + 唯一 worker。
// 持久化策略（单版本替换或历史追加）由构造方注入，engine 本身
// 不感知表结构。
type engine[V any] struct {
	id     string
	logger *slog.Logger
	codec  xcodec.Codec[V]
	cfg    Config

	cache *memoryCache[V]
	queue *mutationQueue

	// applyOp 把一个操作落到持久层，由 worker（或同步降级路径）调用。
	applyOp func(ctx context.Context, op pendingOp) error
	// readLatest 读取指定 key 的最新持久化值。
	readLatest func(ctx context.Context, hashKey string) ([]byte, bool, error)
	// closeBackend 释放持久层。
	closeBackend func() error

	stopCh    chan struct{}
	doneCh    chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newEngine[V any](
	cfg Config,
	codec xcodec.Codec[V],
	applyOp func(ctx context.Context, op pendingOp) error,
	readLatest func(ctx context.Context, hashKey string) ([]byte, bool, error),
	closeBackend func() error,
) *engine[V] {
	e := &engine[V]{
		id:           uuid.NewString(),
		codec:        codec,
		cfg:          cfg,
		cache:        newMemoryCache[V](cfg.CacheCapacity),
		queue:        newMutationQueue(cfg.QueueCapacity),
		applyOp:      applyOp,
		readLatest:   readLatest,
		closeBackend: closeBackend,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	e.logger = cfg.Logger.With(
		slog.String("component", "xpmem"),
		slog.String("store_id", e.id),
	)
	go e.runWorker()
	return e
}

// save 写入缓存并入队持久化。返回时值已对本进程可见；
// 队列饱和时降级为同步直写后返回。
// 返回错误时本次写入已从缓存回滚，不会留下持久化失败的值。
func (e *engine[V]) save(ctx context.Context, key string, value V) error {
	if key == "" {
		return ErrEmptyKey
	}
	if e.closed.Load() {
		return ErrClosed
	}

	blob, err := e.codec.Marshal(value)
	if err != nil {
		return err
	}

	hk := hashKey(key)
	op := pendingOp{
		kind:      opSave,
		hashKey:   hk,
		blob:      blob,
		valueHash: hashBlob(blob),
		at:        time.Now(),
	}
	op.seq = e.cache.put(hk, value)

	queued, err := e.queue.enqueue(ctx, op, e.cfg.EnqueueTimeout)
	if err != nil {
		e.cache.dropDirty(hk, op.seq)
		return fmt.Errorf("xpmem: enqueue save: %w", err)
	}
	if queued {
		return nil
	}

	// 背压策略：队列满时宁可增加延迟也不丢写
	e.logger.Debug("queue saturated, falling back to synchronous write",
		slog.String("key_hash", hk),
	)
	if err := e.applyDirect(ctx, op); err != nil {
		e.cache.dropDirty(hk, op.seq)
		return err
	}
	return nil
}

// saveSync 绕过队列直接落盘，错误回传给调用方。
// 落盘失败时本次写入从缓存回滚。
func (e *engine[V]) saveSync(ctx context.Context, key string, value V) error {
	if key == "" {
		return ErrEmptyKey
	}
	if e.closed.Load() {
		return ErrClosed
	}

	blob, err := e.codec.Marshal(value)
	if err != nil {
		return err
	}

	hk := hashKey(key)
	op := pendingOp{
		kind:      opSave,
		hashKey:   hk,
		blob:      blob,
		valueHash: hashBlob(blob),
		at:        time.Now(),
	}
	op.seq = e.cache.put(hk, value)
	if err := e.applyDirect(ctx, op); err != nil {
		e.cache.dropDirty(hk, op.seq)
		return err
	}
	return nil
}

// applyDirect 在调用方 goroutine 内同步应用一个操作并更新缓存状态。
func (e *engine[V]) applyDirect(ctx context.Context, op pendingOp) error {
	opCtx, cancel := e.opContext(ctx)
	defer cancel()

	if err := e.applyOp(opCtx, op); err != nil {
		return fmt.Errorf("xpmem: synchronous write: %w", err)
	}
	switch op.kind {
	case opSave:
		e.cache.markClean(op.hashKey, op.seq)
	case opDelete:
		e.cache.clearTombstone(op.hashKey)
	}
	return nil
}

// load 读取值：缓存优先，未命中回源持久层并回填。
// 未找到或墓碑命中时返回 found=false 且无错误；
// 持久层故障返回错误，由门面决定是否压制为默认值。
func (e *engine[V]) load(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if key == "" {
		return zero, false, ErrEmptyKey
	}
	if e.closed.Load() {
		return zero, false, ErrClosed
	}

	hk := hashKey(key)
	if v, ok, tombstoned := e.cache.get(hk); tombstoned {
		return zero, false, nil
	} else if ok {
		return v, true, nil
	}

	opCtx, cancel := e.opContext(ctx)
	defer cancel()

	blob, found, err := e.readLatest(opCtx, hk)
	if err != nil {
		e.logger.Warn("durable read failed",
			slog.String("key_hash", hk),
			slog.Any("error", err),
		)
		return zero, false, err
	}
	if !found {
		return zero, false, nil
	}

	value, err := e.codec.Unmarshal(blob)
	if err != nil {
		e.logger.Warn("stored value failed to decode",
			slog.String("key_hash", hk),
			slog.String("codec", e.codec.Name()),
			slog.Any("error", err),
		)
		return zero, false, err
	}

	e.cache.populate(hk, value)
	return value, true, nil
}

// delete 设置墓碑并入队持久删除；队列饱和时同步直删。
func (e *engine[V]) delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if e.closed.Load() {
		return ErrClosed
	}

	hk := hashKey(key)
	e.cache.markDeleted(hk)

	op := pendingOp{kind: opDelete, hashKey: hk}
	queued, err := e.queue.enqueue(ctx, op, e.cfg.EnqueueTimeout)
	if err != nil {
		return fmt.Errorf("xpmem: enqueue delete: %w", err)
	}
	if queued {
		return nil
	}

	e.logger.Debug("queue saturated, falling back to synchronous delete",
		slog.String("key_hash", hk),
	)
	return e.applyDirect(ctx, op)
}

// flush 等待队列排空（含在途操作），返回剩余操作数。
func (e *engine[V]) flush(ctx context.Context) int {
	remaining := e.queue.waitIdle(ctx)
	if remaining > 0 {
		e.logger.Warn("flush timed out with operations pending",
			slog.Int("pending", remaining),
		)
	}
	return remaining
}

// close 停止 worker 并关闭持久层，幂等。
// worker 收到停止信号后会尽力排空剩余队列；等待上限为 CloseTimeout，
// 超时只记录警告，不会无限阻塞。
func (e *engine[V]) close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.stopCh)

		select {
		case <-e.doneCh:
		case <-time.After(e.cfg.CloseTimeout):
			e.logger.Warn("worker did not stop within close timeout",
				slog.Duration("timeout", e.cfg.CloseTimeout),
				slog.Int("pending", e.queue.depth()),
			)
		}

		e.closeErr = e.closeBackend()
	})
	return e.closeErr
}

// opContext 为单次持久化操作派生带上限的 context。
func (e *engine[V]) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, e.cfg.OpTimeout)
}
