package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"getpoetry/internal/fetch"
)

const namespace = "poetry"

// Fetch holds the client-side collectors. A nil *Fetch records nothing.
type Fetch struct {
	inflight prometheus.Gauge
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	bytes    prometheus.Counter
}

// NewFetch registers the client collectors with reg.
func NewFetch(reg prometheus.Registerer) *Fetch {
	f := promauto.With(reg)
	return &Fetch{
		inflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "inflight",
			Help:      "Fetch attempts dispatched and not yet resolved",
		}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "outcomes_total",
			Help:      "Resolved fetch attempts by outcome kind",
		}, []string{"kind"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Time from dispatch to resolution",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}, []string{"kind"}),
		bytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "received_bytes_total",
			Help:      "Payload bytes received, including bytes discarded by a timeout",
		}),
	}
}

// Dispatched records a started attempt.
func (m *Fetch) Dispatched() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

// Observe records a resolved attempt.
func (m *Fetch) Observe(res fetch.Resolution) {
	if m == nil {
		return
	}
	kind := res.Outcome.Kind.String()
	m.inflight.Dec()
	m.outcomes.WithLabelValues(kind).Inc()
	m.duration.WithLabelValues(kind).Observe(res.Elapsed.Seconds())
	m.bytes.Add(float64(res.Bytes))
}

// Server holds the poetry server collectors. A nil *Server records nothing.
type Server struct {
	active      prometheus.Gauge
	connections *prometheus.CounterVec
	bytesSent   *prometheus.CounterVec
	aborted     *prometheus.CounterVec
}

// NewServer registers the server collectors with reg.
func NewServer(reg prometheus.Registerer) *Server {
	f := promauto.With(reg)
	return &Server{
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "active_connections",
			Help:      "Connections currently being served",
		}),
		connections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connections_total",
			Help:      "Accepted connections per listener",
		}, []string{"listener"}),
		bytesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "sent_bytes_total",
			Help:      "Poem bytes written per listener",
		}, []string{"listener"}),
		aborted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "aborted_total",
			Help:      "Connections the client dropped before the poem was complete",
		}, []string{"listener"}),
	}
}

// Opened records an accepted connection.
func (m *Server) Opened(listener string) {
	if m == nil {
		return
	}
	m.active.Inc()
	m.connections.WithLabelValues(listener).Inc()
}

// Closed records the end of a connection.
func (m *Server) Closed(listener string, aborted bool) {
	if m == nil {
		return
	}
	m.active.Dec()
	if aborted {
		m.aborted.WithLabelValues(listener).Inc()
	}
}

// Sent records n poem bytes written.
func (m *Server) Sent(listener string, n int) {
	if m == nil {
		return
	}
	m.bytesSent.WithLabelValues(listener).Add(float64(n))
}
