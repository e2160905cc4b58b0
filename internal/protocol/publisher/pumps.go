package publisher

import (
	"errors"
	"net"
	"time"

	"github.com/GabeVillalobos/post/internal/protocol/framing"
)

// maxReadSize 入站读缓冲区大小，控制消息只有一个字节
const maxReadSize = framing.MaxDatagramSize

// ============================================================================
//                              入站泵
// ============================================================================

// recvLoop 读取控制消息并维护订阅者集合
//
// 每次迭代检查一次存活标志；读超时只用于唤醒检查。
// 套接字关闭时安静退出，其他 I/O 错误记录后退出，不影响出站泵。
func (p *Publisher) recvLoop() error {
	buf := make([]byte, maxReadSize)

	for p.isActive() {
		if err := p.conn.SetReadDeadline(time.Now().Add(p.cfg.ReadPollInterval)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warn("设置读超时失败，入站泵退出", "error", err)
			return nil
		}

		n, peer, err := p.conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warn("入站泵 I/O 错误，退出", "error", err)
			return nil
		}

		p.handleInbound(buf[:n], peer)
	}

	logger.Debug("入站泵退出", "publisher", p.desc.Name)
	return nil
}

func (p *Publisher) handleInbound(data []byte, peer net.Addr) {
	msg, err := framing.Decode(data)
	if err != nil {
		p.metrics.Violations.Inc()
		if p.violations.Allow() {
			logger.Warn("丢弃无法解码的数据报", "peer", peer.String(), "error", err)
		}
		return
	}

	switch msg.Type {
	case framing.TypeSubscribe:
		p.addSubscriber(peer)
	case framing.TypeUnsubscribe:
		p.removeSubscriber(peer)
	case framing.TypeData:
		// 发布器不应收到数据
		p.metrics.Violations.Inc()
		if p.violations.Allow() {
			logger.Warn("发布器收到数据帧，已丢弃", "peer", peer.String(), "frame", msg.String())
		}
	}
}

// ============================================================================
//                              出站泵
// ============================================================================

// sendLoop 按顺序把队列中的数据报写入套接字
//
// 单个订阅者不可达只记录日志，不影响其余订阅者。套接字关闭时退出。
// 收到关闭信号后写完队列中剩余的数据报再退出。
func (p *Publisher) sendLoop() error {
	defer p.markStopped()

	for {
		select {
		case <-p.closing:
			p.drainQueue()
			logger.Debug("出站泵退出", "publisher", p.desc.Name)
			return nil
		case dg := <-p.queue:
			if !p.write(dg) {
				return nil
			}
		}
	}
}

func (p *Publisher) drainQueue() {
	for {
		select {
		case dg := <-p.queue:
			if !p.write(dg) {
				return
			}
		default:
			return
		}
	}
}

// write 写出一个数据报，套接字已关闭时返回 false
func (p *Publisher) write(dg framing.DataGram) bool {
	data, err := framing.Encode(dg.Message)
	if err != nil {
		p.metrics.SendErrors.Inc()
		logger.Warn("编码数据报失败", "peer", dg.Peer.String(), "error", err)
		return true
	}

	if _, err := p.conn.WriteTo(data, dg.Peer); err != nil {
		p.metrics.SendErrors.Inc()
		if errors.Is(err, net.ErrClosed) {
			logger.Warn("套接字已关闭，出站泵退出", "error", err)
			return false
		}
		logger.Warn("发送数据报失败", "peer", dg.Peer.String(), "error", err)
		return true
	}

	p.metrics.FramesSent.Inc()
	return true
}
