package xcodec

import "errors"

var (
	// ErrMarshal 表示值编码失败。
	ErrMarshal = errors.New("xcodec: marshal failed")

	// ErrUnmarshal 表示字节序列解码失败。
	ErrUnmarshal = errors.New("xcodec: unmarshal failed")

	// ErrEmptyData 表示传入的字节序列为空。
	// 空数据几乎总是上游读取错误，应 fail-fast 而非解码为零值。
	ErrEmptyData = errors.New("xcodec: empty data")
)
