package xcodec

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Codec 定义值类型与持久化字节之间的双向转换。
//
// 实现必须满足往返一致性：Unmarshal(Marshal(v)) 在语义上等于 v。
// 所有方法必须是无状态且并发安全的。
type Codec[V any] interface {
	// Marshal 将值编码为字节序列。
	Marshal(v V) ([]byte, error)

	// Unmarshal 将字节序列解码为值。
	Unmarshal(data []byte) (V, error)

	// Name 返回编解码器名称，用于日志标识。
	Name() string
}

// =============================================================================
// JSON 实现
// =============================================================================

// JSON 返回基于标准库 encoding/json 的编解码器。
// 这是默认编解码器：可读、可调试，对大多数值类型足够。
func JSON[V any]() Codec[V] {
	return jsonCodec[V]{}
}

type jsonCodec[V any] struct{}

func (jsonCodec[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMarshal, err)
	}
	return data, nil
}

func (jsonCodec[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if len(data) == 0 {
		return v, ErrEmptyData
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrUnmarshal, err)
	}
	return v, nil
}

func (jsonCodec[V]) Name() string { return "json" }

// =============================================================================
// CBOR 实现
// =============================================================================

// CBOR 返回基于 fxamacker/cbor/v2 的二进制编解码器。
// 编码结果比 JSON 紧凑，适合大值或高频写入场景。
func CBOR[V any]() Codec[V] {
	return cborCodec[V]{}
}

type cborCodec[V any] struct{}

func (cborCodec[V]) Marshal(v V) ([]byte, error) {
	data, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMarshal, err)
	}
	return data, nil
}

func (cborCodec[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if len(data) == 0 {
		return v, ErrEmptyData
	}
	if err := cbor.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrUnmarshal, err)
	}
	return v, nil
}

func (cborCodec[V]) Name() string { return "cbor" }
