// Package metrics собирает Prometheus-метрики auth-сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "auth"

// Metrics: счётчики жизненного цикла токенов и гистограмма HTTP-запросов.
// Реализует issuer.Recorder.
type Metrics struct {
	minted  prometheus.Counter
	rotated prometheus.Counter
	revoked prometheus.Counter
	reuse   prometheus.Counter

	httpDuration *prometheus.HistogramVec
}

// New создаёт метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		minted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_minted_total",
			Help:      "Token pairs minted on login, registration and guest creation.",
		}),
		rotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_tokens_rotated_total",
			Help:      "Successful refresh token rotations.",
		}),
		revoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_tokens_revoked_total",
			Help:      "Refresh tokens revoked on logout.",
		}),
		reuse: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_token_reuse_total",
			Help:      "Presentations of already revoked refresh tokens.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "REST request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(m.minted, m.rotated, m.revoked, m.reuse, m.httpDuration)

	return m
}

func (m *Metrics) TokenMinted()   { m.minted.Inc() }
func (m *Metrics) TokenRotated()  { m.rotated.Inc() }
func (m *Metrics) TokenRevoked()  { m.revoked.Inc() }
func (m *Metrics) ReuseDetected() { m.reuse.Inc() }

// ObserveHTTP фиксирует длительность обработанного REST-запроса.
func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	m.httpDuration.WithLabelValues(method, route, status).Observe(seconds)
}
