package registry

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/GabeVillalobos/post/config"
)

// Module 发现注册中心模块
//
// 提供 Store、Service 和 Server，并把服务与 HTTP 服务器挂到 fx 生命周期上。
var Module = fx.Module("discovery_registry",
	fx.Provide(
		NewStoreFromParams,
		NewServiceFromParams,
		NewServerFromParams,
	),
	fx.Invoke(registerLifecycle),
)

// StoreParams Store 依赖参数
type StoreParams struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Clock      clock.Clock    `optional:"true"`
}

// NewStoreFromParams 按存储配置创建 Store
func NewStoreFromParams(p StoreParams) (Store, error) {
	cfg := config.DefaultStorageConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg.Storage
	}

	switch cfg.Engine {
	case config.EngineBadger:
		logger.Info("使用 BadgerDB 存储", "path", cfg.DBPath())
		return OpenBadgerStore(cfg.DBPath(), p.Clock)
	default:
		logger.Info("使用内存存储")
		return NewMemoryStore(), nil
	}
}

// ServiceParams Service 依赖参数
type ServiceParams struct {
	fx.In

	Store      Store
	UnifiedCfg *config.Config        `optional:"true"`
	Clock      clock.Clock           `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// NewServiceFromParams 从 Fx 参数创建 Service
func NewServiceFromParams(p ServiceParams) (*Service, error) {
	opts := []Option{WithClock(p.Clock)}
	if p.Registerer != nil {
		opts = append(opts, WithMetrics(p.Registerer))
	}
	return NewService(p.Store, ConfigFromUnified(p.UnifiedCfg), opts...)
}

// ServerParams Server 依赖参数
type ServerParams struct {
	fx.In

	Service    *Service
	UnifiedCfg *config.Config      `optional:"true"`
	Gatherer   prometheus.Gatherer `optional:"true"`
}

// NewServerFromParams 从 Fx 参数创建 Server
func NewServerFromParams(p ServerParams) (*Server, error) {
	regCfg := config.DefaultRegistryConfig()
	if p.UnifiedCfg != nil {
		regCfg = p.UnifiedCfg.Registry
	}

	var gatherer prometheus.Gatherer
	if regCfg.EnableMetrics {
		gatherer = p.Gatherer
	}
	return NewServer(regCfg.ListenAddr, p.Service, gatherer)
}

func registerLifecycle(lc fx.Lifecycle, store Store, svc *Service, srv *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := svc.Start(ctx); err != nil {
				return err
			}
			if err := srv.Start(ctx); err != nil {
				logger.Error("注册中心服务器启动失败", "error", err)
				_ = svc.Stop(ctx)
				return err
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("注册中心服务器关闭失败", "error", err)
			}
			if err := svc.Stop(ctx); err != nil {
				logger.Warn("注册中心服务关闭失败", "error", err)
			}
			return store.Close()
		},
	})
}
