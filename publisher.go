package post

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/GabeVillalobos/post/config"
	"github.com/GabeVillalobos/post/internal/discovery/registry"
	"github.com/GabeVillalobos/post/internal/protocol/publisher"
	"github.com/GabeVillalobos/post/pkg/types"
)

// Publisher UDP 扇出发布器
type Publisher = publisher.Publisher

// Registrar 注册中心客户端接口
type Registrar = publisher.Registrar

// 发布器错误
var (
	ErrBackpressure = publisher.ErrBackpressure
	ErrClosed       = publisher.ErrClosed
	ErrFlushing     = publisher.ErrFlushing
)

// PublisherOption 发布器选项
type PublisherOption func(*publisherOptions)

type publisherOptions struct {
	config     *config.Config
	registrar  Registrar
	registerer prometheus.Registerer
	clock      clock.Clock
}

// WithConfig 使用统一配置中的 publisher 段
func WithConfig(cfg *config.Config) PublisherOption {
	return func(o *publisherOptions) {
		o.config = cfg
	}
}

// WithRegistrar 使用自定义注册中心客户端，忽略 registryAddr
func WithRegistrar(r Registrar) PublisherOption {
	return func(o *publisherOptions) {
		o.registrar = r
	}
}

// WithPublisherMetrics 在 reg 上导出发布器指标
func WithPublisherMetrics(reg prometheus.Registerer) PublisherOption {
	return func(o *publisherOptions) {
		o.registerer = reg
	}
}

// WithPublisherClock 替换续约时钟
func WithPublisherClock(clk clock.Clock) PublisherOption {
	return func(o *publisherOptions) {
		o.clock = clk
	}
}

// CreatePublisher 向 registryAddr 的注册中心注册 name，成功后在 host:port 上启动发布器
func CreatePublisher(ctx context.Context, name, host string, port uint16, registryAddr string, opts ...PublisherOption) (*Publisher, error) {
	o := &publisherOptions{}
	for _, opt := range opts {
		opt(o)
	}

	desc := types.PublisherDesc{Name: name, Host: host, Port: port}
	cfg := publisher.ConfigFromUnified(o.config, desc)

	registrar := o.registrar
	if registrar == nil {
		registrar = registry.NewClient(registryAddr)
	}

	var pubOpts []publisher.Option
	if o.registerer != nil {
		pubOpts = append(pubOpts, publisher.WithMetrics(o.registerer))
	}
	if o.clock != nil {
		pubOpts = append(pubOpts, publisher.WithClock(o.clock))
	}

	return publisher.New(ctx, cfg, registrar, pubOpts...)
}
