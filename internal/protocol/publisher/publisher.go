package publisher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/GabeVillalobos/post/internal/protocol/framing"
	"github.com/GabeVillalobos/post/pkg/lib/log"
	"github.com/GabeVillalobos/post/pkg/types"
)

var logger = log.Logger("publisher")

// Publisher UDP 扇出发布器
//
// 订阅者集合和存活标志是入站泵、出站泵和前台调用方之间唯一的共享状态，
// 由 mu 保护，且从不跨 I/O 持有。
type Publisher struct {
	desc      *types.PublisherDesc
	cfg       Config
	conn      net.PacketConn
	registrar Registrar
	clock     clock.Clock
	metrics   *Metrics
	lease     time.Duration

	// 共享状态
	mu          sync.Mutex
	subscribers map[string]net.Addr
	active      bool

	// 发送状态机（Idle -> Flushing -> Idle）
	sendMu     sync.Mutex
	pending    []framing.DataGram
	cursor     int
	generation types.Generation
	flushing   bool

	queue chan framing.DataGram

	// closing 通知出站泵和续约循环退出
	closing   chan struct{}
	closeOnce sync.Once
	closeErr  error

	// stopped 在出站泵退出或 Close 时关闭，阻塞中的 Flush 随之返回 ErrClosed
	stopped  chan struct{}
	stopOnce sync.Once

	group      errgroup.Group
	violations *rate.Limiter

	// sendPump 出站泵，默认 sendLoop
	sendPump func() error
}

// Option 发布器选项
type Option func(*Publisher)

// WithClock 替换续约使用的时钟
func WithClock(clk clock.Clock) Option {
	return func(p *Publisher) {
		if clk != nil {
			p.clock = clk
		}
	}
}

// WithMetrics 在 reg 上注册发布器指标
func WithMetrics(reg prometheus.Registerer) Option {
	return func(p *Publisher) {
		p.metrics = NewMetrics(reg, p.desc.Name)
	}
}

// New 注册描述符，成功后绑定 UDP 端口并启动后台任务
//
// 注册失败时直接返回注册中心的错误，不会绑定端口。
func New(ctx context.Context, cfg Config, registrar Registrar, opts ...Option) (*Publisher, error) {
	if registrar == nil {
		return nil, ErrNilRegistrar
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Publisher{
		desc:        cfg.Desc.Clone(),
		cfg:         cfg,
		registrar:   registrar,
		clock:       clock.New(),
		subscribers: make(map[string]net.Addr),
		generation:  types.FirstGeneration,
		queue:       make(chan framing.DataGram, cfg.QueueSize),
		closing:     make(chan struct{}),
		stopped:     make(chan struct{}),
		violations:  rate.NewLimiter(rate.Every(time.Second), 5),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil, p.desc.Name)
	}

	// 阶段一：注册
	lease, err := registrar.Register(ctx, p.desc)
	if err != nil {
		return nil, err
	}
	p.lease = lease

	// 阶段二：绑定并启动后台任务
	conn, err := net.ListenPacket("udp", p.desc.Addr())
	if err != nil {
		return nil, fmt.Errorf("publisher: bind %s: %w", p.desc.Addr(), err)
	}
	p.conn = conn
	p.active = true

	p.group.Go(p.recvLoop)
	if p.sendPump == nil {
		p.sendPump = p.sendLoop
	}
	p.group.Go(p.sendPump)
	if interval := p.renewInterval(); interval > 0 {
		ticker := p.clock.Ticker(interval)
		p.group.Go(func() error {
			p.renewLoop(ticker)
			return nil
		})
	}

	logger.Info("发布器已启动",
		"publisher", p.desc.String(),
		"local", conn.LocalAddr().String(),
		"lease", lease)
	return p, nil
}

// ============================================================================
//                              访问器
// ============================================================================

// Desc 返回描述符副本
func (p *Publisher) Desc() *types.PublisherDesc {
	return p.desc.Clone()
}

// LocalAddr 返回实际绑定的 UDP 地址
func (p *Publisher) LocalAddr() net.Addr {
	return p.conn.LocalAddr()
}

// Lease 返回最近一次注册授予的租约
func (p *Publisher) Lease() time.Duration {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	return p.lease
}

// Generation 返回下一次提交将使用的批次号
func (p *Publisher) Generation() types.Generation {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	return p.generation
}

// Pending 是否有尚未全部入队的提交
func (p *Publisher) Pending() bool {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	return p.pending != nil
}

// SubscriberCount 返回当前订阅者数量
func (p *Publisher) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

// Subscribers 返回按地址排序的订阅者快照
func (p *Publisher) Subscribers() []net.Addr {
	p.mu.Lock()
	out := make([]net.Addr, 0, len(p.subscribers))
	for _, addr := range p.subscribers {
		out = append(out, addr)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

func (p *Publisher) isActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Publisher) addSubscriber(addr net.Addr) {
	p.mu.Lock()
	_, exists := p.subscribers[addr.String()]
	p.subscribers[addr.String()] = addr
	n := len(p.subscribers)
	p.mu.Unlock()

	p.metrics.Subscribers.Set(float64(n))
	if !exists {
		logger.Debug("新增订阅者", "peer", addr.String(), "count", n)
	}
}

func (p *Publisher) removeSubscriber(addr net.Addr) {
	p.mu.Lock()
	_, exists := p.subscribers[addr.String()]
	delete(p.subscribers, addr.String())
	n := len(p.subscribers)
	p.mu.Unlock()

	p.metrics.Subscribers.Set(float64(n))
	if exists {
		logger.Debug("移除订阅者", "peer", addr.String(), "count", n)
	}
}

// ============================================================================
//                              续约
// ============================================================================

func (p *Publisher) renewInterval() time.Duration {
	if p.cfg.RenewInterval > 0 {
		return p.cfg.RenewInterval
	}
	return p.lease / 2
}

func (p *Publisher) renewLoop(ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-p.closing:
			return
		case <-ticker.C:
			p.renew()
		}
	}
}

func (p *Publisher) renew() {
	timeout := p.cfg.RenewTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().RenewTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Close 时中止进行中的续约
	go func() {
		select {
		case <-p.closing:
			cancel()
		case <-ctx.Done():
		}
	}()

	lease, err := p.registrar.Register(ctx, p.desc)
	if err != nil {
		p.metrics.Renewals.WithLabelValues("error").Inc()
		if !errors.Is(err, context.Canceled) {
			logger.Warn("续约失败", "publisher", p.desc.Name, "error", err)
		}
		return
	}

	p.metrics.Renewals.WithLabelValues("ok").Inc()
	p.sendMu.Lock()
	p.lease = lease
	p.sendMu.Unlock()
	logger.Debug("续约成功", "publisher", p.desc.Name, "lease", lease)
}

// ============================================================================
//                              关闭
// ============================================================================

// Close 关闭发布器
//
// 先清除存活标志，入站泵最多在一个 ReadPollInterval 后退出；
// 出站泵写完队列中剩余的数据报后退出。可重复调用。
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.active = false
		p.mu.Unlock()

		close(p.closing)
		waitErr := p.group.Wait()
		p.markStopped()

		p.closeErr = multierr.Append(waitErr, p.conn.Close())
		logger.Info("发布器已关闭", "publisher", p.desc.Name)
	})
	return p.closeErr
}

func (p *Publisher) markStopped() {
	p.stopOnce.Do(func() {
		close(p.stopped)
	})
}
