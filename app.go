package post

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/GabeVillalobos/post/config"
	"github.com/GabeVillalobos/post/internal/discovery/registry"
)

// 注册中心启动/关闭超时
const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 15 * time.Second
)

// ============================================================================
//                              选项
// ============================================================================

// RegistryOption 注册中心应用选项
type RegistryOption func(*registryOptions) error

type registryOptions struct {
	clock     clock.Clock
	prom      *prometheus.Registry
	verboseFx bool
}

// WithRegistryClock 替换租约时钟
func WithRegistryClock(clk clock.Clock) RegistryOption {
	return func(o *registryOptions) error {
		o.clock = clk
		return nil
	}
}

// WithPrometheusRegistry 使用外部 Prometheus 注册表，默认每个应用独立创建
func WithPrometheusRegistry(reg *prometheus.Registry) RegistryOption {
	return func(o *registryOptions) error {
		if reg == nil {
			return errors.New("prometheus registry is nil")
		}
		o.prom = reg
		return nil
	}
}

// WithVerboseFx 输出 Fx 依赖注入日志
func WithVerboseFx(enabled bool) RegistryOption {
	return func(o *registryOptions) error {
		o.verboseFx = enabled
		return nil
	}
}

// ============================================================================
//                              应用组装
// ============================================================================

// Registry 运行中的注册中心
type Registry struct {
	app     *fx.App
	server  *registry.Server
	service *registry.Service
}

// NewRegistryApp 组装注册中心的 Fx 应用，不启动
func NewRegistryApp(cfg *config.Config, opts ...RegistryOption) (*Registry, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	o := &registryOptions{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.prom == nil {
		o.prom = prometheus.NewRegistry()
	}

	r := &Registry{}
	modules := []fx.Option{
		fx.Supply(cfg),
		fx.Supply(o.prom),
		fx.Provide(
			func(reg *prometheus.Registry) prometheus.Registerer { return reg },
			func(reg *prometheus.Registry) prometheus.Gatherer { return reg },
		),
		registry.Module,
		fx.Populate(&r.server, &r.service),
		fx.StartTimeout(DefaultStartTimeout),
		fx.StopTimeout(DefaultStopTimeout),
	}
	if o.clock != nil {
		clk := o.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}

	verbose := o.verboseFx
	modules = append(modules, fx.WithLogger(func() fxevent.Logger {
		if verbose {
			if l, err := zap.NewDevelopment(); err == nil {
				return &fxevent.ZapLogger{Logger: l}
			}
		}
		return &fxevent.ZapLogger{Logger: zap.NewNop()}
	}))

	r.app = fx.New(modules...)
	if err := r.app.Err(); err != nil {
		return nil, fmt.Errorf("组装注册中心失败: %w", err)
	}
	return r, nil
}

// StartRegistry 组装并启动注册中心
func StartRegistry(ctx context.Context, cfg *config.Config, opts ...RegistryOption) (*Registry, error) {
	r, err := NewRegistryApp(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Start(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Start 启动服务和 RPC 服务器
func (r *Registry) Start(ctx context.Context) error {
	if err := r.app.Start(ctx); err != nil {
		return fmt.Errorf("启动注册中心失败: %w", err)
	}
	return nil
}

// Stop 关闭 RPC 服务器、停止清理并关闭存储
func (r *Registry) Stop(ctx context.Context) error {
	return r.app.Stop(ctx)
}

// Addr 返回 RPC 服务器的实际监听地址
func (r *Registry) Addr() string {
	return r.server.Addr()
}

// Service 返回底层注册中心服务
func (r *Registry) Service() *registry.Service {
	return r.service
}

// Done 返回退出信号通道（SIGINT/SIGTERM 或 fx.Shutdowner）
func (r *Registry) Done() <-chan fx.ShutdownSignal {
	return r.app.Wait()
}
