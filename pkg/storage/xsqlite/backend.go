package xsqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

const (
	schemaReplace = `
		CREATE TABLE IF NOT EXISTS memory (
			key_hash TEXT PRIMARY KEY,
			value    BLOB
		)`

	schemaHistory = `
		CREATE TABLE IF NOT EXISTS memory (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			key_hash   TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			value_hash TEXT NOT NULL,
			value      BLOB
		)`

	indexHistory = `
		CREATE INDEX IF NOT EXISTS idx_memory_key_created
		ON memory (key_hash, created_at)`
)

// Backend 将 key-value 持久化操作适配到 SQLite 表。
//
// 所有查询和写入都是单条语句、即发即归，不跨调用持有连接状态。
// 并发安全：database/sql 连接池内部串行化对单连接的访问。
type Backend struct {
	db     *sql.DB
	path   string
	mode   Mode
	closed atomic.Bool
}

// Open 打开（必要时创建）数据库文件并确保表结构存在。
// 重复对同一文件调用是安全的，建表语句幂等。
func Open(path string, opts ...Option) (*Backend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	db, err := sql.Open("sqlite", filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("xsqlite: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("xsqlite: ping %s: %w", path, err)
	}

	// SQLite 同一时刻只允许一个写入者，限制连接数避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", options.BusyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("xsqlite: %s: %w", pragma, err)
		}
	}

	b := &Backend{db: db, path: filepath.Clean(path), mode: options.Mode}
	if err := b.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// EnsureSchema 创建当前模式对应的表结构，幂等。
func (b *Backend) EnsureSchema(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	switch b.mode {
	case ModeHistory:
		if _, err := b.db.ExecContext(ctx, schemaHistory); err != nil {
			return fmt.Errorf("xsqlite: create history schema: %w", err)
		}
		if _, err := b.db.ExecContext(ctx, indexHistory); err != nil {
			return fmt.Errorf("xsqlite: create history index: %w", err)
		}
	default:
		if _, err := b.db.ExecContext(ctx, schemaReplace); err != nil {
			return fmt.Errorf("xsqlite: create schema: %w", err)
		}
	}
	return nil
}

// Upsert 整行替换指定 key 的值。仅 ModeReplace。
func (b *Backend) Upsert(ctx context.Context, hashKey string, blob []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if b.mode != ModeReplace {
		return ErrWrongMode
	}
	_, err := b.db.ExecContext(ctx,
		`REPLACE INTO memory (key_hash, value) VALUES (?, ?)`,
		hashKey, blob,
	)
	if err != nil {
		return fmt.Errorf("xsqlite: upsert: %w", err)
	}
	return nil
}

// DeleteAll 删除指定 key 的所有行。仅 ModeReplace：
// 历史模式不建模删除，历史行只增不减。
func (b *Backend) DeleteAll(ctx context.Context, hashKey string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if b.mode != ModeReplace {
		return ErrWrongMode
	}
	_, err := b.db.ExecContext(ctx,
		`DELETE FROM memory WHERE key_hash = ?`,
		hashKey,
	)
	if err != nil {
		return fmt.Errorf("xsqlite: delete: %w", err)
	}
	return nil
}

// Append 追加一行带时间戳的版本。仅 ModeHistory。
//
// replace 为 true 时在同一事务内先删除该 key 的既有行，
// 还原单版本语义（对应历史开关关闭的场景）。
func (b *Backend) Append(ctx context.Context, hashKey string, at time.Time, valueHash string, blob []byte, replace bool) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if b.mode != ModeHistory {
		return ErrWrongMode
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("xsqlite: begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if replace {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM memory WHERE key_hash = ?`, hashKey,
		); err != nil {
			return fmt.Errorf("xsqlite: append replace: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memory (key_hash, created_at, value_hash, value) VALUES (?, ?, ?, ?)`,
		hashKey, at.UTC().UnixNano(), valueHash, blob,
	); err != nil {
		return fmt.Errorf("xsqlite: append insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("xsqlite: append commit: %w", err)
	}
	return nil
}

// SelectLatest 返回指定 key 最新的值，两种模式均可用。
// 未找到时返回 (nil, false, nil)。
func (b *Backend) SelectLatest(ctx context.Context, hashKey string) ([]byte, bool, error) {
	if b.closed.Load() {
		return nil, false, ErrClosed
	}

	var query string
	switch b.mode {
	case ModeHistory:
		query = `SELECT value FROM memory WHERE key_hash = ? ORDER BY created_at DESC, id DESC LIMIT 1`
	default:
		query = `SELECT value FROM memory WHERE key_hash = ?`
	}

	var blob []byte
	err := b.db.QueryRowContext(ctx, query, hashKey).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("xsqlite: select latest: %w", err)
	}
	return blob, true, nil
}

// SelectLatestHash 返回指定 key 最新版本的内容哈希，用于去重判断。
// 仅 ModeHistory。未找到时返回 ("", false, nil)。
func (b *Backend) SelectLatestHash(ctx context.Context, hashKey string) (string, bool, error) {
	if b.closed.Load() {
		return "", false, ErrClosed
	}
	if b.mode != ModeHistory {
		return "", false, ErrWrongMode
	}

	var valueHash string
	err := b.db.QueryRowContext(ctx,
		`SELECT value_hash FROM memory WHERE key_hash = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		hashKey,
	).Scan(&valueHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("xsqlite: select latest hash: %w", err)
	}
	return valueHash, true, nil
}

// SelectAsOf 返回时间戳不晚于 at 的最新版本。仅 ModeHistory。
func (b *Backend) SelectAsOf(ctx context.Context, hashKey string, at time.Time) ([]byte, bool, error) {
	if b.closed.Load() {
		return nil, false, ErrClosed
	}
	if b.mode != ModeHistory {
		return nil, false, ErrWrongMode
	}

	var blob []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT value FROM memory WHERE key_hash = ? AND created_at <= ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		hashKey, at.UTC().UnixNano(),
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("xsqlite: select as of: %w", err)
	}
	return blob, true, nil
}

// SelectAllVersions 返回指定 key 的全部版本，新版本在前。仅 ModeHistory。
// key 不存在时返回空切片。
func (b *Backend) SelectAllVersions(ctx context.Context, hashKey string) ([][]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	if b.mode != ModeHistory {
		return nil, ErrWrongMode
	}

	rows, err := b.db.QueryContext(ctx,
		`SELECT value FROM memory WHERE key_hash = ? ORDER BY created_at DESC, id DESC`,
		hashKey,
	)
	if err != nil {
		return nil, fmt.Errorf("xsqlite: select versions: %w", err)
	}
	defer rows.Close()

	var versions [][]byte
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("xsqlite: scan version: %w", err)
		}
		versions = append(versions, blob)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("xsqlite: iterate versions: %w", err)
	}
	return versions, nil
}

// Path 返回数据库文件路径。
func (b *Backend) Path() string { return b.path }

// Mode 返回存储模式。
func (b *Backend) Mode() Mode { return b.mode }

// DB 返回底层的 sql.DB，供需要直接查询的调用方使用。
// 谨慎使用：优先通过 Backend 方法操作。
func (b *Backend) DB() *sql.DB { return b.db }

// Close 关闭数据库连接，幂等。
func (b *Backend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.db.Close()
}
