package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "qrshop"

type Metrics struct {
	reg *prometheus.Registry

	Checkouts   *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Callbacks   *prometheus.CounterVec
	GatewayReqs *prometheus.CounterVec
	GatewayMS   *prometheus.HistogramVec
}

// New registers every collector on its own registry so tests can build as
// many instances as they like.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_transitions_total",
			Help:      "Applied sale status transitions.",
		}, []string{"source", "to"}),
		Callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_callbacks_total",
			Help:      "Relayed payment callbacks by result.",
		}, []string{"result"}),
		GatewayReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Calls to the payment provider.",
		}, []string{"op", "outcome"}),
		GatewayMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_duration_ms",
			Help:      "Payment provider latency in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
		}, []string{"op"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Checkouts, m.Transitions, m.Callbacks, m.GatewayReqs, m.GatewayMS,
	)
	return m
}

func (m *Metrics) ObserveGateway(op, outcome string, took time.Duration) {
	m.GatewayReqs.WithLabelValues(op, outcome).Inc()
	m.GatewayMS.WithLabelValues(op).Observe(float64(took.Milliseconds()))
}

func (m *Metrics) ObserveCheckout(strategy, outcome string) {
	m.Checkouts.WithLabelValues(strategy, outcome).Inc()
}

func (m *Metrics) ObserveTransition(source, to string) {
	m.Transitions.WithLabelValues(source, to).Inc()
}

func (m *Metrics) ObserveCallback(result string) {
	m.Callbacks.WithLabelValues(result).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
