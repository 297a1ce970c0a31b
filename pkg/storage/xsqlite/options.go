package xsqlite

import "time"

// Mode 定义存储模式。
type Mode int

const (
	// ModeReplace 单版本模式：每个 key 至多一行，保存即替换。
	ModeReplace Mode = iota

	// ModeHistory 历史模式：按时间戳追加多版本行。
	ModeHistory
)

// String 返回模式名称，用于日志。
func (m Mode) String() string {
	switch m {
	case ModeReplace:
		return "replace"
	case ModeHistory:
		return "history"
	default:
		return "unknown"
	}
}

// Options 定义 Backend 的配置选项。
type Options struct {
	// Mode 存储模式，默认为 ModeReplace。
	Mode Mode

	// BusyTimeout SQLite 锁等待上限，默认 5 秒。
	BusyTimeout time.Duration
}

// Option 定义配置 Backend 的函数类型。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Mode:        ModeReplace,
		BusyTimeout: 5 * time.Second,
	}
}

// WithHistoryMode 以历史模式打开数据库，保留每个 key 的多版本行。
func WithHistoryMode() Option {
	return func(o *Options) {
		o.Mode = ModeHistory
	}
}

// WithBusyTimeout 设置 SQLite 锁等待上限。
// d <= 0 时忽略此设置并使用默认值。
func WithBusyTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.BusyTimeout = d
		}
	}
}
