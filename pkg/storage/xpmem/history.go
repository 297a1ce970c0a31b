package xpmem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/omeyang/memkit/pkg/storage/xsqlite"
)

// HistoryStore 是追加式门面：每次保存追加一行带时间戳的版本，
// 不提供删除。内容与最新版本相同的保存会被去重跳过。
//
// Config.SingleVersion 为 true 时退化为单版本语义：
// 保存前删除既有行，表里始终只有每个 key 的最新一行。
type HistoryStore[V any] struct {
	eng     *engine[V]
	backend HistoryBackend
	cfg     Config
}

// NewHistory 以历史模式打开（或创建）path 指向的 SQLite 文件。
func NewHistory[V any](path string, cfg Config, opts ...Option[V]) (*HistoryStore[V], error) {
	cfg = cfg.withDefaults()
	cfg.Logger = cfg.Logger.With(slog.String("db_path", path))

	backend, err := xsqlite.Open(path,
		xsqlite.WithHistoryMode(),
		xsqlite.WithBusyTimeout(cfg.BusyTimeout),
	)
	if err != nil {
		return nil, err
	}
	return NewHistoryWithBackend(backend, cfg, opts...)
}

// NewHistoryWithBackend 用外部提供的持久层构造 HistoryStore。
func NewHistoryWithBackend[V any](backend HistoryBackend, cfg Config, opts ...Option[V]) (*HistoryStore[V], error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	cfg = cfg.withDefaults()
	o := buildOptions(opts)

	eng := newEngine(cfg, o.codec,
		func(ctx context.Context, op pendingOp) error {
			if op.kind != opSave {
				return fmt.Errorf("xpmem: unsupported operation %q in history mode", op.kind)
			}
			// 去重在应用时而非入队时判断：此刻最新版本已经落盘，
			// 比对结果不会被仍在队列里的前序保存推翻。
			if !cfg.SingleVersion {
				latest, found, err := backend.SelectLatestHash(ctx, op.hashKey)
				if err == nil && found && latest == op.valueHash {
					return nil
				}
			}
			return backend.Append(ctx, op.hashKey, op.at, op.valueHash, op.blob, cfg.SingleVersion)
		},
		backend.SelectLatest,
		backend.Close,
	)
	return &HistoryStore[V]{eng: eng, backend: backend, cfg: cfg}, nil
}

// Save 写入缓存并异步追加新版本。
func (s *HistoryStore[V]) Save(key string, value V) error {
	return s.eng.save(context.Background(), key, value)
}

// SaveSync 同步追加新版本后返回。
func (s *HistoryStore[V]) SaveSync(key string, value V) error {
	return s.eng.saveSync(context.Background(), key, value)
}

// Load 返回 key 的最新值；未找到或读取失败时返回 def。
func (s *HistoryStore[V]) Load(key string, def V) V {
	v, found, err := s.eng.load(context.Background(), key)
	if err != nil || !found {
		return def
	}
	return v
}

// Get 返回 key 的最新值；未找到时返回 ErrKeyNotFound。
func (s *HistoryStore[V]) Get(key string) (V, error) {
	v, found, err := s.eng.load(context.Background(), key)
	if err != nil {
		return v, err
	}
	if !found {
		return v, ErrKeyNotFound
	}
	return v, nil
}

// Has 报告 key 是否存在。
func (s *HistoryStore[V]) Has(key string) bool {
	_, found, err := s.eng.load(context.Background(), key)
	return err == nil && found
}

// LoadAsOf 返回时间戳不晚于 at 的最新版本；没有则返回 def。
// 绕过缓存直读持久层，未落盘的保存不可见。
func (s *HistoryStore[V]) LoadAsOf(key string, at time.Time, def V) V {
	v, err := s.GetAsOf(key, at)
	if err != nil {
		return def
	}
	return v
}

// GetAsOf 返回时间戳不晚于 at 的最新版本；
// 没有满足条件的版本时返回 ErrKeyNotFound。
func (s *HistoryStore[V]) GetAsOf(key string, at time.Time) (V, error) {
	var zero V
	if key == "" {
		return zero, ErrEmptyKey
	}
	if s.eng.closed.Load() {
		return zero, ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OpTimeout)
	defer cancel()

	blob, found, err := s.backend.SelectAsOf(ctx, hashKey(key), at)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, ErrKeyNotFound
	}
	return s.eng.codec.Unmarshal(blob)
}

// LoadAllVersions 返回 key 的全部版本，新版本在前。
// 先等待队列排空，保证已入队的保存包含在结果里；
// 排空超时返回错误而不是残缺的版本列表。
func (s *HistoryStore[V]) LoadAllVersions(key string) ([]V, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if s.eng.closed.Load() {
		return nil, ErrClosed
	}

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), s.cfg.FlushTimeout)
	defer cancelFlush()
	if remaining := s.eng.flush(flushCtx); remaining > 0 {
		return nil, fmt.Errorf("xpmem: load versions: %d operations still pending after flush", remaining)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OpTimeout)
	defer cancel()

	blobs, err := s.backend.SelectAllVersions(ctx, hashKey(key))
	if err != nil {
		return nil, err
	}

	versions := make([]V, 0, len(blobs))
	for _, blob := range blobs {
		v, err := s.eng.codec.Unmarshal(blob)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// Flush 等待全部排队和在途操作落盘。
// timeout <= 0 时使用配置的 FlushTimeout。
func (s *HistoryStore[V]) Flush(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = s.cfg.FlushTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.eng.flush(ctx) == 0
}

// Pending 返回当前排队和在途的操作数快照。
func (s *HistoryStore[V]) Pending() int {
	return s.eng.queue.depth()
}

// Close 停止 worker、尽力排空队列并关闭持久层，幂等。
func (s *HistoryStore[V]) Close() error {
	return s.eng.close()
}
