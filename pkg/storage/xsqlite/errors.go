package xsqlite

import "errors"

var (
	// ErrEmptyPath 表示数据库文件路径为空。
	ErrEmptyPath = errors.New("xsqlite: empty database path")

	// ErrClosed 表示 Backend 已关闭。
	ErrClosed = errors.New("xsqlite: backend closed")

	// ErrWrongMode 表示在不匹配的存储模式上调用了操作，
	// 例如对 ModeReplace 的 Backend 调用历史版本查询。
	// 这是调用方的编程错误，应在开发阶段修复。
	ErrWrongMode = errors.New("xsqlite: operation not supported in this mode")
)
