package publisher

import (
	"context"
	"errors"

	"github.com/GabeVillalobos/post/internal/protocol/framing"
)

// ============================================================================
//                              发送状态机
// ============================================================================

// TrySubmit 提交一个负载
//
// 上一次提交尚未全部入队时返回 ErrBackpressure，payload 不被保留，调用方稍后重试。
// 否则对订阅者做快照，生成 分片 x 订阅者 的数据报序列，并立即尝试一次非阻塞排空。
// 返回 nil 不代表已全部入队，可用 PollFlush 或 Flush 继续推进。
func (p *Publisher) TrySubmit(payload []byte) error {
	if p.isStopped() {
		return ErrClosed
	}

	p.sendMu.Lock()
	if p.pending != nil {
		p.sendMu.Unlock()
		p.metrics.Backpressure.Inc()
		return ErrBackpressure
	}

	msgs, err := framing.SplitDataMsgsSize(payload, p.generation, p.cfg.chunkSize())
	if err != nil {
		p.sendMu.Unlock()
		return err
	}

	subs := p.Subscribers()
	pending := make([]framing.DataGram, 0, len(msgs)*len(subs))
	for _, msg := range msgs {
		for _, peer := range subs {
			pending = append(pending, framing.DataGram{Message: msg, Peer: peer})
		}
	}
	p.pending = pending
	p.cursor = 0
	p.metrics.Submissions.Inc()
	p.sendMu.Unlock()

	_, err = p.PollFlush()
	return err
}

// PollFlush 非阻塞地推进当前提交
//
// 队列已满时返回 false，游标停留在未被接受的数据报上，下次调用重新提交它。
// 没有待发送提交或本次全部入队时返回 true。其他调用方正在 Flush 时返回 false。
func (p *Publisher) PollFlush() (bool, error) {
	if p.isStopped() {
		return false, ErrClosed
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	if p.pending == nil {
		return true, nil
	}
	if p.flushing {
		return false, nil
	}

	for p.cursor < len(p.pending) {
		select {
		case p.queue <- p.pending[p.cursor]:
			p.cursor++
			p.metrics.FramesQueued.Inc()
		default:
			return false, nil
		}
	}

	p.completeLocked()
	return true, nil
}

// Flush 阻塞直到当前提交全部入队
//
// ctx 取消时返回 ctx.Err()，已入队的部分保留，之后可以继续 Flush。
// 发布器关闭或出站泵停止时返回 ErrClosed。
func (p *Publisher) Flush(ctx context.Context) error {
	p.sendMu.Lock()
	if p.pending == nil {
		p.sendMu.Unlock()
		return nil
	}
	if p.flushing {
		p.sendMu.Unlock()
		return ErrFlushing
	}
	p.flushing = true
	remaining := p.pending[p.cursor:]
	p.sendMu.Unlock()

	// flushing 期间游标只归本调用方所有，入队时无需持锁
	sent := 0
	var err error
loop:
	for _, dg := range remaining {
		select {
		case <-p.stopped:
			err = ErrClosed
			break loop
		default:
		}

		select {
		case p.queue <- dg:
			sent++
			p.metrics.FramesQueued.Inc()
		case <-ctx.Done():
			err = ctx.Err()
			break loop
		case <-p.stopped:
			err = ErrClosed
			break loop
		}
	}

	p.sendMu.Lock()
	p.cursor += sent
	p.flushing = false
	if p.cursor == len(p.pending) {
		p.completeLocked()
	}
	p.sendMu.Unlock()

	return err
}

// Submit 等待上一次提交入队，提交 payload 并阻塞到其全部入队
func (p *Publisher) Submit(ctx context.Context, payload []byte) error {
	for {
		if err := p.Flush(ctx); err != nil {
			return err
		}
		err := p.TrySubmit(payload)
		if errors.Is(err, ErrBackpressure) {
			// 另一个调用方抢先提交
			continue
		}
		if err != nil {
			return err
		}
		return p.Flush(ctx)
	}
}

// completeLocked 整个矩阵已被队列接受：清空待发送提交并推进批次号
func (p *Publisher) completeLocked() {
	p.pending = nil
	p.cursor = 0
	p.generation = p.generation.Next()
	p.metrics.Generations.Inc()
}

func (p *Publisher) isStopped() bool {
	select {
	case <-p.stopped:
		return true
	default:
		return false
	}
}
