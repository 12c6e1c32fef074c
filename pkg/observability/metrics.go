package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of a Strata process.
type Metrics struct {
	registry *prometheus.Registry

	batches       *prometheus.CounterVec
	batchDuration prometheus.Histogram
	tokens        *prometheus.CounterVec
	tokenDuration prometheus.Histogram
	rerolls       *prometheus.CounterVec
	attempts      prometheus.Histogram
	running       prometheus.Gauge
}

// NewMetrics registers the collectors on a dedicated registry.
// Go runtime and process collectors are included.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_batches_total",
				Help: "Finished batches by final status",
			},
			[]string{"status"},
		),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "strata_batch_duration_seconds",
			Help:    "Wall time of finished batches",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_tokens_total",
				Help: "Tokens by outcome",
			},
			[]string{"outcome"},
		),
		tokenDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "strata_token_duration_seconds",
			Help:    "Time to produce a persisted token",
			Buckets: prometheus.DefBuckets,
		}),
		rerolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_token_rerolls_total",
				Help: "Discarded attempts by reason",
			},
			[]string{"reason"},
		),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "strata_token_attempts",
			Help:    "Attempts needed per token",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strata_batch_running",
			Help: "1 while a batch is running",
		}),
	}
	m.registry.MustRegister(
		m.batches, m.batchDuration,
		m.tokens, m.tokenDuration,
		m.rerolls, m.attempts, m.running,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks recording into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnBatchStart: func(context.Context, *domain.BatchEvent) {
			m.running.Set(1)
		},
		OnBatchEnd: func(_ context.Context, e *domain.BatchEvent) {
			m.running.Set(0)
			m.batches.WithLabelValues(string(e.Status)).Inc()
			if e.Duration > 0 {
				m.batchDuration.Observe(e.Duration.Seconds())
			}
		},
		OnTokenReroll: func(_ context.Context, e *domain.TokenEvent) {
			m.rerolls.WithLabelValues(string(e.Reason)).Inc()
		},
		OnTokenDone: func(_ context.Context, e *domain.TokenEvent) {
			m.tokens.WithLabelValues("done").Inc()
			if e.Attempt > 0 {
				m.attempts.Observe(float64(e.Attempt))
			}
			if e.Duration > 0 {
				m.tokenDuration.Observe(e.Duration.Seconds())
			}
		},
		OnTokenFailed: func(_ context.Context, e *domain.TokenEvent) {
			m.tokens.WithLabelValues(string(domain.CodeOf(e.Err))).Inc()
		},
	}
}
