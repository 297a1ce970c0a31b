package xpmem

import (
	"context"
	"sync"
	"time"
)

// opKind 标识变更操作类型。
type opKind int

const (
	opSave opKind = iota
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opSave:
		return "save"
	case opDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// pendingOp 是一次待持久化的变更。
// 由调用方 goroutine 创建，由唯一的 worker 消费，两者之间不共享。
type pendingOp struct {
	kind      opKind
	hashKey   string
	blob      []byte
	valueHash string    // 历史模式去重用
	at        time.Time // 历史模式时间戳
	seq       uint64    // 缓存条目序号，持久化确认时比对
}

// mutationQueue 是有界 FIFO 变更队列。
//
// pending 统计"已入队 + worker 在途"的操作数：操作入队时计数，
// worker 应用完成（无论成败）后扣减。waitIdle 等到计数归零才返回，
// 所以 flush 等的不只是队列清空，还包括在途操作落盘。
type mutationQueue struct {
	ch chan pendingOp

	mu      sync.Mutex
	pending int
	idle    chan struct{} // pending > 0 时存在，归零时关闭
}

func newMutationQueue(capacity int) *mutationQueue {
	return &mutationQueue{ch: make(chan pendingOp, capacity)}
}

// enqueue 尝试入队，队列满时最多等待 timeout。
// 返回 false 且 err 为 nil 表示超时（调用方应降级为同步直写）；
// ctx 取消时返回 ctx 的错误。
func (q *mutationQueue) enqueue(ctx context.Context, op pendingOp, timeout time.Duration) (bool, error) {
	q.track()

	// 快路径：队列未满时无需创建 timer
	select {
	case q.ch <- op:
		return true, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case q.ch <- op:
		return true, nil
	case <-timer.C:
		q.done()
		return false, nil
	case <-ctx.Done():
		q.done()
		return false, ctx.Err()
	}
}

// track 登记一个在途操作。
func (q *mutationQueue) track() {
	q.mu.Lock()
	q.pending++
	if q.idle == nil {
		q.idle = make(chan struct{})
	}
	q.mu.Unlock()
}

// done 注销一个在途操作，归零时唤醒全部 waitIdle 等待者。
func (q *mutationQueue) done() {
	q.mu.Lock()
	q.pending--
	if q.pending == 0 && q.idle != nil {
		close(q.idle)
		q.idle = nil
	}
	q.mu.Unlock()
}

// waitIdle 阻塞到所有在途操作完成或 ctx 结束，返回剩余操作数。
// 返回 0 表示排空成功。
func (q *mutationQueue) waitIdle(ctx context.Context) int {
	for {
		q.mu.Lock()
		if q.pending == 0 {
			q.mu.Unlock()
			return 0
		}
		idle := q.idle
		q.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			q.mu.Lock()
			n := q.pending
			q.mu.Unlock()
			return n
		}
	}
}

// depth 返回当前在途操作数快照。
func (q *mutationQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}
