package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "post"
	metricsSubsystem = "publisher"
)

// Metrics 发布器指标，以 publisher 标签区分同一进程中的多个实例
type Metrics struct {
	Submissions  prometheus.Counter
	Generations  prometheus.Counter
	FramesQueued prometheus.Counter
	FramesSent   prometheus.Counter
	SendErrors   prometheus.Counter
	Backpressure prometheus.Counter
	Violations   prometheus.Counter
	Subscribers  prometheus.Gauge
	Renewals     *prometheus.CounterVec
}

// NewMetrics 在 reg 上注册指标，reg 为 nil 时不导出
func NewMetrics(reg prometheus.Registerer, name string) *Metrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"publisher": name}

	counter := func(metric, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		})
	}

	return &Metrics{
		Submissions:  counter("submissions_total", "Number of accepted submissions."),
		Generations:  counter("generations_total", "Number of submissions fully accepted by the outbound queue."),
		FramesQueued: counter("frames_queued_total", "Number of datagrams accepted by the outbound queue."),
		FramesSent:   counter("frames_sent_total", "Number of datagrams written to the socket."),
		SendErrors:   counter("send_errors_total", "Number of failed datagram writes."),
		Backpressure: counter("backpressure_total", "Number of submissions rejected while another was pending."),
		Violations:   counter("protocol_violations_total", "Number of inbound data frames or undecodable datagrams."),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "subscribers",
			Help:        "Number of current subscribers.",
			ConstLabels: labels,
		}),
		Renewals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "renewals_total",
			Help:        "Number of lease renewals by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
	}
}
