package xpmem

import (
	"context"
	"log/slog"

	retry "github.com/avast/retry-go/v5"
)

// runWorker 是唯一的队列消费者，按入队顺序应用操作。
//
// 循环只在收到停止信号后退出；单个操作的失败被记录后跳过，
// 不会中断后续操作的处理。收到停止信号后先尽力排空剩余队列
// 再返回（close 的最后一次 flush）。
func (e *engine[V]) runWorker() {
	defer close(e.doneCh)

	for {
		select {
		case op := <-e.queue.ch:
			e.handle(op)
		case <-e.stopCh:
			for {
				select {
				case op := <-e.queue.ch:
					e.handle(op)
				default:
					return
				}
			}
		}
	}
}

// handle 应用单个操作并维护缓存状态。
// 失败的操作不重入队：调用方的 save/delete 早已返回，
// 失败只能通过日志暴露（尽力而为的持久化策略）。
func (e *engine[V]) handle(op pendingOp) {
	defer e.queue.done()

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.OpTimeout)
	defer cancel()

	if err := e.applyWithRetry(ctx, op); err != nil {
		e.logger.Error("durable write failed, operation dropped",
			slog.String("op", op.kind.String()),
			slog.String("key_hash", op.hashKey),
			slog.Any("error", err),
		)
		return
	}

	switch op.kind {
	case opSave:
		e.cache.markClean(op.hashKey, op.seq)
	case opDelete:
		e.cache.clearTombstone(op.hashKey)
	}
}

// applyWithRetry 按配置执行有界重试。
// 默认 RetryAttempts 为 1，即不重试，保持原始的尽力而为语义。
func (e *engine[V]) applyWithRetry(ctx context.Context, op pendingOp) error {
	if e.cfg.RetryAttempts <= 1 {
		return e.applyOp(ctx, op)
	}

	return retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(e.cfg.RetryAttempts)),
		retry.Delay(e.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("retrying durable write",
				slog.String("op", op.kind.String()),
				slog.String("key_hash", op.hashKey),
				slog.Uint64("attempt", uint64(n)+1),
				slog.Any("error", err),
			)
		}),
	).Do(func() error {
		return e.applyOp(ctx, op)
	})
}
