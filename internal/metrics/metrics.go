// Package metrics registers the Prometheus collectors exposed on the
// supervisor's /metrics endpoint. Grounded on
// DimaJoyti-ai-agentic-crypto-browser's prometheus/client_golang usage,
// the only example in the pack instrumenting a live service.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every collector the ingestion loop touches, so a
// loop can be constructed with a real or a fresh test registry without
// colliding with prometheus.DefaultRegisterer.
type Registry struct {
	OrdersRejected *prometheus.CounterVec
	Trades         *prometheus.CounterVec
	DecodeErrors   *prometheus.CounterVec
	ApplyDuration  *prometheus.HistogramVec
}

// New constructs a Registry and registers every collector on reg.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchex_orders_rejected_total",
			Help: "Orders rejected by the book, by reason.",
		}, []string{"reason"}),
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchex_trades_total",
			Help: "Trades executed, by symbol.",
		}, []string{"symbol"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchex_decode_errors_total",
			Help: "Input messages that failed to decode, by symbol.",
		}, []string{"symbol"}),
		ApplyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matchex_apply_duration_seconds",
			Help:    "Wall-clock time spent in OrderBook.Apply.",
			Buckets: prometheus.DefBuckets,
		}, []string{"symbol"}),
	}
	reg.MustRegister(m.OrdersRejected, m.Trades, m.DecodeErrors, m.ApplyDuration)
	return m
}
