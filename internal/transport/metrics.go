package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: полное время вызова, включая повторы
	RequestDuration *prometheus.HistogramVec

	// Traffic: общее кол-во вызовов
	TotalRequests *prometheus.CounterVec

	// Errors: классификация отказов
	ErrorTotal *prometheus.CounterVec

	// Повторные попытки
	RetryTotal *prometheus.CounterVec

	// Обновления токена по 401
	TokenRefreshTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kyyup_api_request_duration_seconds",
			Help:    "Histogram of API call latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route", "status"}),

		TotalRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "kyyup_api_requests_total",
			Help: "Total number of API calls.",
		}, []string{"method", "route"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "kyyup_api_errors_total",
			Help: "Total number of failed API calls by type.",
		}, []string{"type"}), // network, timeout, server_error, client_error, api_error, unauthorized, circuit_open, throttled, ai_unavailable

		RetryTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "kyyup_api_retries_total",
			Help: "Total number of retried attempts.",
		}, []string{"client"}),

		TokenRefreshTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "kyyup_api_token_refresh_total",
			Help: "Token refresh attempts by result.",
		}, []string{"result"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "kyyup_api_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"client"}),
	}
}
