package probe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// 1 если последний вызов эндпоинта успешен
	EndpointUp *prometheus.GaugeVec

	// Latency последнего вызова
	EndpointLatency *prometheus.GaugeVec

	// Итоги по категориям и статусам
	Results *prometheus.CounterVec

	// Unix-время завершения прогона
	LastRun prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		EndpointUp: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "kyyup_probe_endpoint_up",
			Help: "Whether the last probe of the endpoint succeeded.",
		}, []string{"method", "path", "category"}),

		EndpointLatency: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "kyyup_probe_endpoint_latency_seconds",
			Help: "Latency of the last probe of the endpoint.",
		}, []string{"method", "path"}),

		Results: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "kyyup_probe_results_total",
			Help: "Probe results by category and status.",
		}, []string{"category", "status"}),

		LastRun: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "kyyup_probe_last_run_timestamp_seconds",
			Help: "Unix time of the last completed probe run.",
		}),
	}
}

func (m *Metrics) observe(res Result) {
	up := 0.0
	if res.Status == StatusSuccess {
		up = 1
	}
	m.EndpointUp.WithLabelValues(res.Method, res.Path, res.Category).Set(up)
	m.EndpointLatency.WithLabelValues(res.Method, res.Path).Set(res.Latency.Seconds())
	m.Results.WithLabelValues(res.Category, string(res.Status)).Inc()
}
