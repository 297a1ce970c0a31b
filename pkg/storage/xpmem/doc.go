// Package xpmem 提供带写回（write-behind）持久化的进程内 key-value 缓存。
//
// 写入先落到内存缓存并立即对本进程可见，持久化由后台 worker 异步完成；
// 读取优先命中缓存，未命中时回源到 SQLite 并回填。存储延迟被隐藏在
// 缓存和变更队列之后，调用方的写入路径不等待磁盘。
//
// # 核心组件
//
//   - 内存缓存：读己之写的权威来源，含墓碑标记（已删除待持久化的 key）
//   - 变更队列：有界 FIFO，容量耗尽时降级为同步直写，绝不静默丢弃写入
//   - 持久化 worker：唯一消费者，按入队顺序应用操作，单次失败只记日志不中断
//   - Flush：阻塞等待队列排空（含在途操作），把"最终会持久化"升级为"已持久化"
//
// # 三种门面
//
//   - [Store]: 阻塞式 API，固定超时，适合普通多 goroutine 调用
//   - [AsyncStore]: 所有阻塞操作带 context，适合需要取消/超时传播的调用方
//   - [HistoryStore]: 追加式多版本存储，支持按时间点查询与全版本列举，
//     相同内容连续保存自动去重
//
// [Dual] 将 Store 与 AsyncStore 组合在同一个数据库文件上，两侧各有
// 独立的队列和 worker：同一侧内的写入全序，跨侧写入不保证先后。
//
// # 持久化语义
//
// 队列中操作的持久化是尽力而为：worker 应用失败只记录日志，不重试
// （可通过 Config.RetryAttempts 启用有界重试）、不回传给调用方。
// 需要确认持久化的调用方应在写入后调用 Flush 并检查返回值。
//
// # 快速开始
//
//	store, err := xpmem.New[string]("app.db", xpmem.Config{})
//	if err != nil { ... }
//	defer store.Close()
//
//	store.Save("greeting", "hello")
//	v := store.Load("greeting", "")   // 立即可读，无需等待持久化
//	store.Flush(time.Second)          // 需要持久化确认时调用
//
// 详细使用示例参考 example_test.go。
package xpmem
