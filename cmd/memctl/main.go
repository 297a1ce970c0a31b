// memctl 是 memkit 持久化 store 的命令行工具。
//
// 用法:
//
//	memctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-d, --db         数据库文件路径 (默认: memory.db)
//	-H, --history    以历史模式打开（多版本追加）
//	-c, --config     store 配置文件 (yaml/json)
//	--log-file       日志输出文件（自动轮转），缺省输出到 stderr
//	--log-level      日志级别 (debug/info/warn/error, 默认: info)
//
// 命令:
//
//	get <key>            读取值（缺失时退出码 1）
//	set <key> <value>    写入值（同步落盘）
//	del <key>            删除 key（仅单版本模式）
//	has <key>            检查 key 是否存在（存在退出码 0，否则 1）
//	versions <key>       列出全部版本（仅历史模式，新版本在前）
//	bench                写入压测：N 次保存后排空队列并报告耗时
//
// 退出码:
//
//	0: 成功（has/get: key 存在）
//	1: 执行失败或 key 不存在
//	2: 参数错误
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/omeyang/memkit/pkg/storage/xpmem"
)

// 版本信息（可通过 -ldflags 注入）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "memctl",
		Usage:   "memkit 持久化 store 命令行工具",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "数据库文件路径",
				Value:   "memory.db",
			},
			&cli.BoolFlag{
				Name:    "history",
				Aliases: []string{"H"},
				Usage:   "以历史模式打开（多版本追加）",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "store 配置文件 (yaml/json)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "日志输出文件（自动轮转）",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 (debug/info/warn/error)",
				Value: "info",
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		Authors: []any{
			"memkit Team",
		},
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run() int {
	app := createApp()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, os.Args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var coder cli.ExitCoder
		if errors.As(err, &coder) {
			// ExitErrHandler 已输出错误详情，此处仅映射退出码
			return coder.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

// newLogger 按全局选项构建日志器。
// log-file 非空时写入轮转文件，否则写 stderr。
func newLogger(cmd *cli.Command) *slog.Logger {
	var w io.Writer = os.Stderr
	if path := cmd.String("log-file"); path != "" {
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     7, // 天
			Compress:   true,
		}
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(cmd.String("log-level")),
	}))
}

// parseLevel 解析日志级别，未知值落到 info。
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadStoreConfig 读取配置文件（如果指定）并注入日志器。
func loadStoreConfig(cmd *cli.Command) (xpmem.Config, error) {
	cfg := xpmem.Config{}
	if path := cmd.String("config"); path != "" {
		loaded, err := xpmem.LoadConfig(path)
		if err != nil {
			return xpmem.Config{}, err
		}
		cfg = loaded
	}
	cfg.Logger = newLogger(cmd)
	return cfg, nil
}
