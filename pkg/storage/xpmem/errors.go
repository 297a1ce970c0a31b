package xpmem

import "errors"

var (
	// ErrClosed 表示 store 已关闭。
	ErrClosed = errors.New("xpmem: store closed")

	// ErrKeyNotFound 表示 key 不存在（严格读取 Get/GetAsOf 返回）。
	// 宽松读取 Load 不返回错误，缺失时返回调用方提供的默认值。
	ErrKeyNotFound = errors.New("xpmem: key not found")

	// ErrEmptyKey 表示传入的 key 为空字符串。
	// 空 key 在存储层合法但几乎总是使用错误，在入口处 fail-fast。
	ErrEmptyKey = errors.New("xpmem: empty key")

	// ErrNilBackend 表示传入的后端为 nil。
	ErrNilBackend = errors.New("xpmem: nil backend")

	// ErrNilCodec 表示传入的编解码器为 nil。
	ErrNilCodec = errors.New("xpmem: nil codec")
)
