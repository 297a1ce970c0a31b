package xpmem

import (
	"context"
	"log/slog"
	"time"

	"github.com/omeyang/memkit/pkg/storage/xsqlite"
)

// Store 是阻塞式门面：方法不接收 context，内部用配置的超时约束
// 每次持久化操作。适合没有 context 传递习惯的调用方。
//
// 所有方法并发安全。
type Store[V any] struct {
	eng *engine[V]
	cfg Config
}

// New 打开（或创建）path 指向的 SQLite 文件并构造 Store。
// cfg 的零值字段使用默认值，Config{} 可以直接传入。
func New[V any](path string, cfg Config, opts ...Option[V]) (*Store[V], error) {
	cfg = cfg.withDefaults()
	cfg.Logger = cfg.Logger.With(slog.String("db_path", path))

	backend, err := xsqlite.Open(path, xsqlite.WithBusyTimeout(cfg.BusyTimeout))
	if err != nil {
		return nil, err
	}
	return NewWithBackend(backend, cfg, opts...)
}

// NewWithBackend 用外部提供的持久层构造 Store，主要用于测试注入。
// Store 接管 backend 的生命周期，Close 时一并关闭。
func NewWithBackend[V any](backend Backend, cfg Config, opts ...Option[V]) (*Store[V], error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	cfg = cfg.withDefaults()
	o := buildOptions(opts)

	eng := newEngine(cfg, o.codec,
		func(ctx context.Context, op pendingOp) error {
			if op.kind == opDelete {
				return backend.DeleteAll(ctx, op.hashKey)
			}
			return backend.Upsert(ctx, op.hashKey, op.blob)
		},
		backend.SelectLatest,
		backend.Close,
	)
	return &Store[V]{eng: eng, cfg: cfg}, nil
}

// Save 写入缓存并异步持久化。返回后对本进程立即可见；
// 持久化由后台 worker 完成，队列饱和时降级为同步直写。
func (s *Store[V]) Save(key string, value V) error {
	return s.eng.save(context.Background(), key, value)
}

// SaveSync 同步落盘后返回，持久化错误回传给调用方。
func (s *Store[V]) SaveSync(key string, value V) error {
	return s.eng.saveSync(context.Background(), key, value)
}

// Load 返回 key 对应的值；未找到或持久层读取失败时返回 def。
// 故障被压制为默认值（已记录日志），需要区分时使用 Get。
func (s *Store[V]) Load(key string, def V) V {
	v, found, err := s.eng.load(context.Background(), key)
	if err != nil || !found {
		return def
	}
	return v
}

// Get 返回 key 对应的值；未找到时返回 ErrKeyNotFound，
// 持久层故障返回底层错误。
func (s *Store[V]) Get(key string) (V, error) {
	v, found, err := s.eng.load(context.Background(), key)
	if err != nil {
		return v, err
	}
	if !found {
		return v, ErrKeyNotFound
	}
	return v, nil
}

// Has 报告 key 是否存在（缓存或持久层）。
// 持久层故障视为不存在。
func (s *Store[V]) Has(key string) bool {
	_, found, err := s.eng.load(context.Background(), key)
	return err == nil && found
}

// Delete 删除 key。删除立即对本进程可见（墓碑），
// 持久删除异步完成。
func (s *Store[V]) Delete(key string) error {
	return s.eng.delete(context.Background(), key)
}

// Flush 等待全部排队和在途操作落盘。
// timeout <= 0 时使用配置的 FlushTimeout。
// 返回 true 表示全部排空，false 表示超时仍有剩余。
func (s *Store[V]) Flush(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = s.cfg.FlushTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.eng.flush(ctx) == 0
}

// Pending 返回当前排队和在途的操作数快照。
func (s *Store[V]) Pending() int {
	return s.eng.queue.depth()
}

// Close 停止 worker、尽力排空队列并关闭持久层，幂等。
func (s *Store[V]) Close() error {
	return s.eng.close()
}

// AsyncStore 是协作式门面：每个阻塞方法都以 context 为第一参数，
// 由调用方控制取消与超时。与 Store 共享同一套写回核心。
type AsyncStore[V any] struct {
	eng *engine[V]
	cfg Config
}

// NewAsync 打开（或创建）path 指向的 SQLite 文件并构造 AsyncStore。
// ctx 约束构造阶段；已取消的 ctx 直接返回其错误。
func NewAsync[V any](ctx context.Context, path string, cfg Config, opts ...Option[V]) (*AsyncStore[V], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg = cfg.withDefaults()
	cfg.Logger = cfg.Logger.With(slog.String("db_path", path))

	backend, err := xsqlite.Open(path, xsqlite.WithBusyTimeout(cfg.BusyTimeout))
	if err != nil {
		return nil, err
	}
	return NewAsyncWithBackend(backend, cfg, opts...)
}

// NewAsyncWithBackend 用外部提供的持久层构造 AsyncStore。
func NewAsyncWithBackend[V any](backend Backend, cfg Config, opts ...Option[V]) (*AsyncStore[V], error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	cfg = cfg.withDefaults()
	o := buildOptions(opts)

	eng := newEngine(cfg, o.codec,
		func(ctx context.Context, op pendingOp) error {
			if op.kind == opDelete {
				return backend.DeleteAll(ctx, op.hashKey)
			}
			return backend.Upsert(ctx, op.hashKey, op.blob)
		},
		backend.SelectLatest,
		backend.Close,
	)
	return &AsyncStore[V]{eng: eng, cfg: cfg}, nil
}

// Save 写入缓存并异步持久化，语义同 [Store.Save]。
func (s *AsyncStore[V]) Save(ctx context.Context, key string, value V) error {
	return s.eng.save(ctx, key, value)
}

// SaveSync 同步落盘后返回。
func (s *AsyncStore[V]) SaveSync(ctx context.Context, key string, value V) error {
	return s.eng.saveSync(ctx, key, value)
}

// Load 返回 key 对应的值；未找到或读取失败时返回 def。
func (s *AsyncStore[V]) Load(ctx context.Context, key string, def V) V {
	v, found, err := s.eng.load(ctx, key)
	if err != nil || !found {
		return def
	}
	return v
}

// Get 返回 key 对应的值；未找到时返回 ErrKeyNotFound。
func (s *AsyncStore[V]) Get(ctx context.Context, key string) (V, error) {
	v, found, err := s.eng.load(ctx, key)
	if err != nil {
		return v, err
	}
	if !found {
		return v, ErrKeyNotFound
	}
	return v, nil
}

// Has 报告 key 是否存在。
func (s *AsyncStore[V]) Has(ctx context.Context, key string) bool {
	_, found, err := s.eng.load(ctx, key)
	return err == nil && found
}

// Delete 删除 key，墓碑立即可见。
func (s *AsyncStore[V]) Delete(ctx context.Context, key string) error {
	return s.eng.delete(ctx, key)
}

// Flush 等待全部排队和在途操作落盘，ctx 结束即返回。
// 返回 true 表示全部排空。
func (s *AsyncStore[V]) Flush(ctx context.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.eng.flush(ctx) == 0
}

// Pending 返回当前排队和在途的操作数快照。
func (s *AsyncStore[V]) Pending() int {
	return s.eng.queue.depth()
}

// Close 停止 worker、尽力排空队列并关闭持久层，幂等。
func (s *AsyncStore[V]) Close() error {
	return s.eng.close()
}
