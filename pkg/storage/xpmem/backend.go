package xpmem

import (
	"context"
	"time"

	"github.com/omeyang/memkit/pkg/storage/xsqlite"
)

// Backend 定义单版本模式的持久层契约，由 [xsqlite.Backend] 满足。
// 实现必须允许多 goroutine 并发调用，但可以假设写操作
// （Upsert/DeleteAll）来自单一消费者。
type Backend interface {
	// Upsert 整行替换指定 key 的值。
	Upsert(ctx context.Context, hashKey string, blob []byte) error

	// DeleteAll 删除指定 key 的所有行，key 不存在时成功返回。
	DeleteAll(ctx context.Context, hashKey string) error

	// SelectLatest 返回指定 key 的值，未找到时 found 为 false 且无错误。
	SelectLatest(ctx context.Context, hashKey string) (blob []byte, found bool, err error)

	// Close 释放持久层资源，幂等。
	Close() error
}

// HistoryBackend 定义历史模式的持久层契约，由以
// [xsqlite.WithHistoryMode] 打开的 [xsqlite.Backend] 满足。
type HistoryBackend interface {
	// Append 追加一行带时间戳的版本；replace 为 true 时先删除既有行。
	Append(ctx context.Context, hashKey string, at time.Time, valueHash string, blob []byte, replace bool) error

	// SelectLatest 返回最新版本。
	SelectLatest(ctx context.Context, hashKey string) (blob []byte, found bool, err error)

	// SelectLatestHash 返回最新版本的内容哈希，用于去重。
	SelectLatestHash(ctx context.Context, hashKey string) (valueHash string, found bool, err error)

	// SelectAsOf 返回时间戳不晚于 at 的最新版本。
	SelectAsOf(ctx context.Context, hashKey string, at time.Time) (blob []byte, found bool, err error)

	// SelectAllVersions 返回全部版本，新版本在前。
	SelectAllVersions(ctx context.Context, hashKey string) ([][]byte, error)

	// Close 释放持久层资源，幂等。
	Close() error
}

// 编译期断言：xsqlite.Backend 同时满足两个契约。
var (
	_ Backend        = (*xsqlite.Backend)(nil)
	_ HistoryBackend = (*xsqlite.Backend)(nil)
)
