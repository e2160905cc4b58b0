package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/GabeVillalobos/post/pkg/types"
)

// ============================================================================
//                              Service
// ============================================================================

// Service 发现注册中心服务
//
// 包装一个 Store，按固定租约时长授予注册，并在后台周期性清理过期记录。
type Service struct {
	store   Store
	config  Config
	clock   clock.Clock
	metrics *Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option 服务选项
type Option func(*Service)

// WithClock 替换时钟（测试中传入 clock.NewMock()）
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// WithMetrics 在 reg 上注册服务指标
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Service) {
		s.metrics = NewMetrics(reg)
	}
}

// NewService 创建注册中心服务
func NewService(store Store, config Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		store:  store,
		config: config,
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.updateGauge()

	return s, nil
}

// Config 返回服务配置
func (s *Service) Config() Config {
	return s.config
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动过期清理循环
func (s *Service) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyStarted
	}

	// 循环的生命周期独立于启动上下文，只由 Stop 结束
	ctx, cancel := context.WithCancel(context.Background())
	ticker := s.clock.Ticker(s.config.PublisherScanInterval)

	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.sweepLoop(ctx, ticker, s.done)

	logger.Info("注册中心服务已启动",
		"lease", s.config.PublisherTimeout,
		"scanInterval", s.config.PublisherScanInterval)
	return nil
}

// Stop 停止清理循环并等待其退出
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	logger.Info("注册中心服务已停止")
	return nil
}

func (s *Service) sweepLoop(ctx context.Context, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepExpired()
		}
	}
}

// ============================================================================
//                              过期清理
// ============================================================================

// SweepExpired 删除所有 expiration <= now 的记录，返回删除数量
//
// 缺少连接信息或过期时间的记录按已过期处理。
// 判定与删除由存储在同一临界区内完成，清理期间续约的记录不会被误删。
func (s *Service) SweepExpired() int {
	removed := s.store.RemoveExpired(s.clock.Now())
	if len(removed) == 0 {
		return 0
	}

	s.metrics.Expired.Add(float64(len(removed)))
	s.updateGauge()

	logger.Debug("过期记录清理完成", "count", len(removed), "names", removed)
	return len(removed)
}

// ============================================================================
//                              RPC 操作
// ============================================================================

// Status 返回当前注册的发布器数量
func (s *Service) Status() uint64 {
	return uint64(s.count())
}

// Register 注册或续约发布器，返回授予的租约时长
//
// 同名注册直接覆盖（后写者胜）。
func (s *Service) Register(req *RegistrationRequest) (*RegistrationResponse, error) {
	if req == nil || req.Desc == nil {
		return nil, &MissingFieldError{Container: "Registration", Field: "desc"}
	}
	desc := req.Desc
	switch {
	case desc.Name == "":
		return nil, &MissingFieldError{Container: "PublisherDesc", Field: "name"}
	case desc.Host == "":
		return nil, &MissingFieldError{Container: "PublisherDesc", Field: "host"}
	}

	lease := s.config.PublisherTimeout
	info, err := types.NewConnectionInfo(s.clock.Now(), lease)
	if err != nil {
		return nil, &TimeConversionError{Cause: err}
	}
	interval := durationpb.New(lease)
	if err := interval.CheckValid(); err != nil {
		return nil, &TimeConversionError{Cause: err}
	}

	s.store.Insert(desc.Name, &types.Registration{
		Publisher: desc.Clone(),
		Info:      info,
	})

	s.metrics.Registers.Inc()
	s.updateGauge()

	logger.Debug("发布器已注册", "publisher", desc.String(), "lease", lease)
	return &RegistrationResponse{ExpirationInterval: interval}, nil
}

// Search 返回名称匹配正则的注册记录
//
// 非法正则默认返回空列表；配置 RejectInvalidPatterns 后返回 *PatternError。
func (s *Service) Search(req *SearchRequest) (*SearchResponse, error) {
	pattern := ""
	if req != nil {
		pattern = req.NameRegex
	}

	list, err := s.store.Find(pattern)
	if err != nil {
		var pe *PatternError
		if errors.As(err, &pe) && !s.config.RejectInvalidPatterns {
			logger.Debug("非法搜索模式", "pattern", pattern, "error", pe.Cause)
			s.metrics.Searches.WithLabelValues("invalid").Inc()
			return &SearchResponse{List: []*types.Registration{}}, nil
		}
		s.metrics.Searches.WithLabelValues("error").Inc()
		return nil, err
	}

	s.metrics.Searches.WithLabelValues("ok").Inc()
	return &SearchResponse{List: list}, nil
}

// Remove 显式删除发布器，不存在时返回 *NotFoundError
func (s *Service) Remove(name string) error {
	if err := s.store.Remove(name); err != nil {
		return err
	}
	s.updateGauge()
	return nil
}

// Lease 返回每次注册授予的租约时长
func (s *Service) Lease() time.Duration {
	return s.config.PublisherTimeout
}

func (s *Service) count() int {
	if l, ok := s.store.(interface{ Len() int }); ok {
		return l.Len()
	}
	return len(s.store.ListAll())
}

func (s *Service) updateGauge() {
	s.metrics.Registrations.Set(float64(s.count()))
}
