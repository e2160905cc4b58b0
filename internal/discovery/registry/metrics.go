package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "post"
	metricsSubsystem = "registry"
)

// Metrics 注册中心指标
type Metrics struct {
	Registrations prometheus.Gauge
	Registers     prometheus.Counter
	Searches      *prometheus.CounterVec
	Expired       prometheus.Counter
}

// NewMetrics 在 reg 上注册指标
//
// reg 为 nil 时指标不会被导出，但仍可正常计数。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "registrations",
			Help:      "Number of live publisher registrations.",
		}),
		Registers: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "registers_total",
			Help:      "Number of accepted Register calls, including renewals.",
		}),
		Searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "searches_total",
			Help:      "Number of Search calls by outcome.",
		}, []string{"outcome"}),
		Expired: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "expired_total",
			Help:      "Number of registrations removed by the expiration sweep.",
		}),
	}
}
