// Package xsqlite 提供持久化存储引擎的 SQLite 适配层。
//
// Backend 是一个薄适配器：每个方法对应一条短生命周期的语句，
// 不跨调用持有事务或行锁。上层的写入排序由单消费者 worker 保证，
// 本包只负责把操作落到表上。
//
// # 存储模式
//
//   - [ModeReplace]: 单表 memory(key_hash PRIMARY KEY, value)，
//     保存即整行替换，每个 key 至多一行
//   - [ModeHistory]: 单表 memory(id AUTOINCREMENT, key_hash, created_at,
//     value_hash, value)，按时间戳追加多版本行，key_hash 无唯一约束
//
// 两种模式使用同名表但结构不同，同一个数据库文件只能以一种模式使用。
//
// # 并发访问
//
// 数据库以 WAL 模式打开并设置 busy_timeout，允许同进程内多个 Backend
// 实例并发访问同一文件；SQLite 自身对写入者做串行化。
// 连接池上限设为 1，配合上层的单写入者设计避免 SQLITE_BUSY。
//
// 驱动为纯 Go 实现的 modernc.org/sqlite，无 cgo 依赖。
package xsqlite
