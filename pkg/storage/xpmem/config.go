package xpmem

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/omeyang/memkit/pkg/codec/xcodec"
)

// Config 定义 store 的配置。
// 零值字段使用默认值，所以 Config{} 可以直接使用。
type Config struct {
	// QueueCapacity 变更队列容量。
	// 队列满时保存操作等待 EnqueueTimeout 后降级为同步直写。
	// 默认 256。
	QueueCapacity int `koanf:"queue_capacity"`

	// EnqueueTimeout 入队等待上限，超过后降级为同步直写。
	// 默认 250ms。
	EnqueueTimeout time.Duration `koanf:"enqueue_timeout"`

	// FlushTimeout 阻塞式门面 Flush 的默认等待上限。
	// 默认 5 秒。
	FlushTimeout time.Duration `koanf:"flush_timeout"`

	// CloseTimeout 关闭时等待 worker 退出的上限。
	// 超时只记录警告，不会无限阻塞。默认 5 秒。
	CloseTimeout time.Duration `koanf:"close_timeout"`

	// OpTimeout 单次持久化操作（含同步降级直写）的上限。
	// 默认 5 秒。
	OpTimeout time.Duration `koanf:"op_timeout"`

	// CacheCapacity 已持久化条目缓存的容量上限，LRU 淘汰。
	// 0 表示不限制。待持久化的脏条目不受此限制（不可淘汰），
	// 其数量天然受队列容量约束。默认 4096。
	CacheCapacity int `koanf:"cache_capacity"`

	// RetryAttempts worker 应用操作的最大尝试次数（含首次）。
	// 1 表示不重试（默认，保持尽力而为语义）。
	RetryAttempts int `koanf:"retry_attempts"`

	// RetryDelay 重试间隔，仅 RetryAttempts > 1 时生效。
	// 默认 100ms。
	RetryDelay time.Duration `koanf:"retry_delay"`

	// SingleVersion 仅历史模式：保存前删除既有行，还原单版本语义。
	SingleVersion bool `koanf:"single_version"`

	// BusyTimeout SQLite 锁等待上限，默认 5 秒。
	BusyTimeout time.Duration `koanf:"busy_timeout"`

	// Logger 结构化日志器，nil 时使用 slog.Default()。
	Logger *slog.Logger `koanf:"-"`
}

// 默认值。
const (
	defaultQueueCapacity  = 256
	defaultEnqueueTimeout = 250 * time.Millisecond
	defaultFlushTimeout   = 5 * time.Second
	defaultCloseTimeout   = 5 * time.Second
	defaultOpTimeout      = 5 * time.Second
	defaultCacheCapacity  = 4096
	defaultRetryDelay     = 100 * time.Millisecond
)

// withDefaults 返回填充了默认值的副本。负值按零值处理。
func (c Config) withDefaults() Config {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = defaultQueueCapacity
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = defaultEnqueueTimeout
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = defaultFlushTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = defaultCloseTimeout
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = defaultOpTimeout
	}
	if c.CacheCapacity < 0 {
		c.CacheCapacity = defaultCacheCapacity
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Option 定义构造时的泛型配置选项。
// 标量配置走 Config；只有依赖值类型的配置（如编解码器）使用 Option。
type Option[V any] func(*options[V])

type options[V any] struct {
	codec xcodec.Codec[V]
}

func buildOptions[V any](opts []Option[V]) *options[V] {
	o := &options[V]{codec: xcodec.JSON[V]()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(o)
	}
	return o
}

// WithCodec 设置值编解码器，默认为 JSON。
// 同一个数据库文件必须始终使用同一种编解码器。
// 传入 nil 会被静默忽略。
func WithCodec[V any](c xcodec.Codec[V]) Option[V] {
	return func(o *options[V]) {
		if c != nil {
			o.codec = c
		}
	}
}

// =============================================================================
// 配置文件加载
// =============================================================================

// Format 定义配置文件格式。
type Format string

const (
	// FormatYAML YAML 格式。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// LoadConfig 从配置文件读取 Config，根据扩展名自动检测格式
// （.yaml/.yml 或 .json）。文件中缺失的字段保持零值，
// 构造 store 时会落到默认值。
func LoadConfig(path string) (Config, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".json":
		format = FormatJSON
	default:
		return Config{}, fmt.Errorf("xpmem: unsupported config extension %q", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("xpmem: read config: %w", err)
	}
	return ConfigFromBytes(data, format)
}

// ConfigFromBytes 从字节数据解析 Config，需要显式指定格式。
// 适用于配置内容来自环境而非文件的场景。
func ConfigFromBytes(data []byte, format Format) (Config, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = kyaml.Parser()
	case FormatJSON:
		parser = kjson.Parser()
	default:
		return Config{}, fmt.Errorf("xpmem: unsupported config format %q", format)
	}

	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return Config{}, fmt.Errorf("xpmem: parse config: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("xpmem: unmarshal config: %w", err)
	}
	return cfg, nil
}
