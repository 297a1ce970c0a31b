package xpmem

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Dual 在同一个数据库文件上组合阻塞式与协作式两种门面，
// 各自持有独立的连接、队列与 worker（WAL 模式允许多连接并发）。
//
// Save 走协作式半边的队列，SaveSync 走阻塞式半边直写。
// 两个半边各自维护缓存，Load 依次探查两边后再回源持久层。
// 跨半边的写入顺序不作保证：需要严格顺序时使用单一门面。
type Dual[V any] struct {
	sync  *Store[V]
	async *AsyncStore[V]
}

// NewDual 打开（或创建）path 指向的 SQLite 文件并构造组合门面。
func NewDual[V any](ctx context.Context, path string, cfg Config, opts ...Option[V]) (*Dual[V], error) {
	syncStore, err := New(path, cfg, opts...)
	if err != nil {
		return nil, err
	}
	asyncStore, err := NewAsync(ctx, path, cfg, opts...)
	if err != nil {
		closeErr := syncStore.Close()
		return nil, errors.Join(err, closeErr)
	}
	return &Dual[V]{sync: syncStore, async: asyncStore}, nil
}

// Save 写入协作式半边的缓存并异步持久化。
func (d *Dual[V]) Save(ctx context.Context, key string, value V) error {
	if err := d.async.Save(ctx, key, value); err != nil {
		return err
	}
	// 本次写入成为该 key 的最新状态：阻塞式半边残留的墓碑或旧值
	// 必须作废，否则协作式半边的缓存淘汰后 Load 会命中陈旧状态
	d.sync.eng.cache.invalidate(hashKey(key))
	return nil
}

// SaveSync 经阻塞式半边同步落盘。
func (d *Dual[V]) SaveSync(key string, value V) error {
	return d.sync.SaveSync(key, value)
}

// Load 返回 key 对应的值：先查协作式半边的缓存，再查阻塞式半边，
// 最后回源持久层。未找到或读取失败时返回 def。
func (d *Dual[V]) Load(ctx context.Context, key string, def V) V {
	if key == "" {
		return def
	}

	hk := hashKey(key)
	if v, ok, tombstoned := d.async.eng.cache.get(hk); tombstoned {
		return def
	} else if ok {
		return v
	}
	if v, ok, tombstoned := d.sync.eng.cache.get(hk); tombstoned {
		return def
	} else if ok {
		return v
	}

	// 两边缓存都未命中，经协作式半边回源并回填其缓存
	v, found, err := d.async.eng.load(ctx, key)
	if err != nil || !found {
		return def
	}
	return v
}

// Delete 在两个半边同时设置墓碑并经协作式半边持久删除。
func (d *Dual[V]) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	d.sync.eng.cache.markDeleted(hashKey(key))
	return d.async.Delete(ctx, key)
}

// Flush 并发等待两个半边排空，全部排空时返回 true。
func (d *Dual[V]) Flush(ctx context.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	g, gctx := errgroup.WithContext(ctx)
	var asyncDrained, syncDrained bool
	g.Go(func() error {
		asyncDrained = d.async.Flush(gctx)
		return nil
	})
	g.Go(func() error {
		syncDrained = d.sync.eng.flush(gctx) == 0
		return nil
	})
	_ = g.Wait()
	return asyncDrained && syncDrained
}

// Pending 返回两个半边排队和在途的操作数之和。
func (d *Dual[V]) Pending() int {
	return d.async.Pending() + d.sync.Pending()
}

// Close 先关闭协作式半边再关闭阻塞式半边，幂等。
// 两边的关闭错误合并返回。
func (d *Dual[V]) Close() error {
	return errors.Join(d.async.Close(), d.sync.Close())
}
