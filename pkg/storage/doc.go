// Package storage 提供数据持久化相关的子包。
//
// 子包列表：
//   - xpmem: 写回式持久化 key-value store（缓存 + 队列 + 后台落盘）
//   - xsqlite: SQLite 持久层适配（单版本替换 / 多版本历史两种表结构）
//
// 设计原则：
//   - 写入先进缓存再异步落盘，读己之写由缓存保证
//   - 持久化尽力而为：后台失败记日志不中断，关键路径用同步写
//   - 纯 Go SQLite 驱动，无 cgo 依赖
package storage
