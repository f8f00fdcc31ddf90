package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/specialistvlad/lazygraph/internal/proxy"
)

type pipelineMetrics struct {
	requests *prometheus.CounterVec
	latency  prometheus.Histogram
	inFlight prometheus.Gauge
}

// Metrics records request counts by outcome, time to the first response and
// requests waiting for their first response. Collectors already registered
// with reg by another Metrics middleware are shared.
func Metrics(reg prometheus.Registerer) proxy.Middleware {
	m := &pipelineMetrics{
		requests: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazygraph",
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Query-set requests sent through proxy pipelines, by outcome of the first response.",
		}, []string{"outcome"})),
		latency: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lazygraph",
			Subsystem: "proxy",
			Name:      "first_response_seconds",
			Help:      "Time from sending a query-set to its first response.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		})),
		inFlight: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lazygraph",
			Subsystem: "proxy",
			Name:      "in_flight_requests",
			Help:      "Query-set requests waiting for their first response.",
		})),
	}
	return func(next proxy.Handler) proxy.Handler {
		return func(ctx context.Context, req *proxy.Request, emit func(*proxy.Response)) {
			start := time.Now()
			m.inFlight.Inc()
			var once sync.Once
			finish := func(outcome string) {
				once.Do(func() {
					m.inFlight.Dec()
					m.requests.WithLabelValues(outcome).Inc()
					if outcome != "cancelled" {
						m.latency.Observe(time.Since(start).Seconds())
					}
				})
			}
			stop := context.AfterFunc(ctx, func() { finish("cancelled") })
			next(ctx, req, func(resp *proxy.Response) {
				stop()
				if resp.Err != nil {
					finish("error")
				} else {
					finish("ok")
				}
				emit(resp)
			})
		}
	}
}

// register registers c with reg, returning the collector registered before
// under the same description if there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
