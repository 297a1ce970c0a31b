package xpmem

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// memoryCache 是进程内读己之写的权威来源。
//
// 条目分两层：
//   - dirty：持久化尚未确认的条目，固定驻留，绝不淘汰——淘汰会让
//     读取穿透到还没有这次写入的持久层，破坏读己之写。
//     脏条目数量天然受队列容量约束（每个脏条目对应一个在途操作）。
//   - clean：已持久化或从持久层加载的条目，有界 LRU，可安全淘汰
//     （淘汰后的读取回源到持久层仍能得到相同的值）。
//
// 墓碑集合记录已删除但持久删除还在途的 key：命中墓碑的读取立即
// 返回未找到，即使持久层还残留旧行。
type memoryCache[V any] struct {
	mu         sync.Mutex
	seq        uint64
	dirty      map[string]dirtyEntry[V]
	tombstones map[string]struct{}
	clean      *expirable.LRU[string, V]
}

type dirtyEntry[V any] struct {
	value V
	seq   uint64
}

// newMemoryCache 创建缓存。capacity 为 clean 层容量，0 表示不限制。
func newMemoryCache[V any](capacity int) *memoryCache[V] {
	return &memoryCache[V]{
		dirty:      make(map[string]dirtyEntry[V]),
		tombstones: make(map[string]struct{}),
		clean:      expirable.NewLRU[string, V](capacity, nil, 0),
	}
}

// get 查找缓存值。tombstoned 为 true 时调用方必须按未找到处理，
// 并且不得回源到持久层。
func (c *memoryCache[V]) get(hashKey string) (value V, ok bool, tombstoned bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, found := c.dirty[hashKey]; found {
		return entry.value, true, false
	}
	if _, dead := c.tombstones[hashKey]; dead {
		var zero V
		return zero, false, true
	}
	if v, found := c.clean.Get(hashKey); found {
		return v, true, false
	}
	var zero V
	return zero, false, false
}

// put 写入脏条目并清除墓碑，返回本次写入的序号。
// 序号用于 markClean 判断条目是否已被更新的写入覆盖。
func (c *memoryCache[V]) put(hashKey string, value V) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	delete(c.tombstones, hashKey)
	c.clean.Remove(hashKey)
	c.dirty[hashKey] = dirtyEntry[V]{value: value, seq: c.seq}
	return c.seq
}

// markDeleted 移除缓存值并设置墓碑。
// 返回后本进程内任何读取都不再能通过缓存观察到旧值。
func (c *memoryCache[V]) markDeleted(hashKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.dirty, hashKey)
	c.clean.Remove(hashKey)
	c.tombstones[hashKey] = struct{}{}
}

// markClean 在持久化确认后把脏条目迁移到 clean 层。
// 仅当序号仍是该 key 的最新写入时生效：如果期间有更新的保存入队，
// 条目保持脏状态，等那次写入确认。
func (c *memoryCache[V]) markClean(hashKey string, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, found := c.dirty[hashKey]
	if !found || entry.seq != seq {
		return
	}
	delete(c.dirty, hashKey)
	c.clean.Add(hashKey, entry.value)
}

// clearTombstone 在持久删除确认后移除墓碑。
// 之后的读取穿透到持久层，由持久层的顺序一致性保证正确结果。
func (c *memoryCache[V]) clearTombstone(hashKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tombstones, hashKey)
}

// invalidate 作废陈旧的本地状态：移除 clean 层条目并清除墓碑。
// 脏条目不受影响——它们代表本缓存自己仍在途的写入。
// 用于外部写入路径（如组合门面的另一半）覆盖了该 key 的场景。
func (c *memoryCache[V]) invalidate(hashKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tombstones, hashKey)
	c.clean.Remove(hashKey)
}

// dropDirty 移除序号仍匹配的脏条目，持久化失败时回滚缓存用。
// 期间有更新的写入时序号不再匹配，条目保留。
func (c *memoryCache[V]) dropDirty(hashKey string, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, found := c.dirty[hashKey]; found && entry.seq == seq {
		delete(c.dirty, hashKey)
	}
}

// populate 回填冷读取的结果到 clean 层。
// 脏条目或墓碑存在时跳过：它们代表比持久层更新的本地状态。
func (c *memoryCache[V]) populate(hashKey string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found := c.dirty[hashKey]; found {
		return
	}
	if _, dead := c.tombstones[hashKey]; dead {
		return
	}
	c.clean.Add(hashKey, value)
}

// stats 返回各层条目数，用于日志和测试。
func (c *memoryCache[V]) stats() (dirty, clean, tombstones int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty), c.clean.Len(), len(c.tombstones)
}
