package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/memkit/pkg/storage/xpmem"
)

// exitError 表示需要非零退出码但已完成输出的场景。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "" }

// usageErrorf 构造参数错误，统一映射到退出码 2。
func usageErrorf(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), 2)
}

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createGetCommand(),
		createSetCommand(),
		createDelCommand(),
		createHasCommand(),
		createVersionsCommand(),
		createBenchCommand(),
	}
}

func createGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "读取 key 对应的值",
		ArgsUsage: "<key>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return usageErrorf("用法: memctl get <key>")
			}
			return withStore(cmd, func(s storeOps) error {
				v, err := s.get(cmd.Args().First())
				if errors.Is(err, xpmem.ErrKeyNotFound) {
					fmt.Fprintln(cmd.ErrWriter, "key 不存在")
					return &exitError{code: 1}
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.Writer, v)
				return nil
			})
		},
	}
}

func createSetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "写入值并同步落盘",
		ArgsUsage: "<key> <value>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return usageErrorf("用法: memctl set <key> <value>")
			}
			return withStore(cmd, func(s storeOps) error {
				return s.saveSync(cmd.Args().Get(0), cmd.Args().Get(1))
			})
		},
	}
}

func createDelCommand() *cli.Command {
	return &cli.Command{
		Name:      "del",
		Usage:     "删除 key（仅单版本模式）",
		ArgsUsage: "<key>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return usageErrorf("用法: memctl del <key>")
			}
			if cmd.Bool("history") {
				return usageErrorf("历史模式不支持删除")
			}
			return withStore(cmd, func(s storeOps) error {
				return s.del(cmd.Args().First())
			})
		},
	}
}

func createHasCommand() *cli.Command {
	return &cli.Command{
		Name:      "has",
		Usage:     "检查 key 是否存在",
		ArgsUsage: "<key>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return usageErrorf("用法: memctl has <key>")
			}
			return withStore(cmd, func(s storeOps) error {
				if !s.has(cmd.Args().First()) {
					return &exitError{code: 1}
				}
				return nil
			})
		},
	}
}

func createVersionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "versions",
		Usage:     "列出 key 的全部版本，新版本在前（仅历史模式）",
		ArgsUsage: "<key>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return usageErrorf("用法: memctl versions <key>")
			}
			if !cmd.Bool("history") {
				return usageErrorf("versions 需要 --history")
			}
			cfg, err := loadStoreConfig(cmd)
			if err != nil {
				return err
			}
			store, err := xpmem.NewHistory[string](cmd.String("db"), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			versions, err := store.LoadAllVersions(cmd.Args().First())
			if err != nil {
				return err
			}
			for i, v := range versions {
				fmt.Fprintf(cmd.Writer, "%d\t%s\n", i, v)
			}
			return nil
		},
	}
}

func createBenchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "写入压测：N 次保存后排空队列并报告耗时",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "n",
				Usage:   "保存次数",
				Value:   10000,
				Aliases: []string{"count"},
			},
			&cli.IntFlag{
				Name:  "keys",
				Usage: "不同 key 的数量",
				Value: 100,
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			n := cmd.Int("n")
			keys := cmd.Int("keys")
			if n <= 0 || keys <= 0 {
				return usageErrorf("n 和 keys 必须为正数")
			}

			cfg, err := loadStoreConfig(cmd)
			if err != nil {
				return err
			}
			store, err := xpmem.New[string](cmd.String("db"), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			start := time.Now()
			for i := 0; i < n; i++ {
				key := fmt.Sprintf("bench-%d", i%keys)
				if err := store.Save(key, fmt.Sprintf("value-%d", i)); err != nil {
					return fmt.Errorf("第 %d 次保存失败: %w", i, err)
				}
			}
			saved := time.Since(start)

			drained := store.Flush(0)
			total := time.Since(start)

			fmt.Fprintf(cmd.Writer, "保存 %d 次 (%d 个 key): %v (%.0f ops/s)\n",
				n, keys, saved, float64(n)/saved.Seconds())
			fmt.Fprintf(cmd.Writer, "含落盘总耗时: %v, 队列排空: %v\n", total, drained)
			return nil
		},
	}
}

// storeOps 把 get/set/del/has 的公共操作收敛到一个内部接口，
// 让命令实现不用区分单版本和历史两种 store 类型。
type storeOps struct {
	get      func(key string) (string, error)
	saveSync func(key, value string) error
	del      func(key string) error
	has      func(key string) bool
	close    func() error
}

// withStore 按全局选项打开 store 并保证关闭。
func withStore(cmd *cli.Command, fn func(storeOps) error) error {
	cfg, err := loadStoreConfig(cmd)
	if err != nil {
		return err
	}
	path := cmd.String("db")

	var ops storeOps
	if cmd.Bool("history") {
		store, err := xpmem.NewHistory[string](path, cfg)
		if err != nil {
			return err
		}
		ops = storeOps{
			get:      store.Get,
			saveSync: store.SaveSync,
			del: func(string) error {
				return usageErrorf("历史模式不支持删除")
			},
			has:   store.Has,
			close: store.Close,
		}
	} else {
		store, err := xpmem.New[string](path, cfg)
		if err != nil {
			return err
		}
		ops = storeOps{
			get:      store.Get,
			saveSync: store.SaveSync,
			del:      store.Delete,
			has:      store.Has,
			close:    store.Close,
		}
	}
	defer ops.close()

	return fn(ops)
}
