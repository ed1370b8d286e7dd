package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gateway's Prometheus instruments. A nil *Metrics is
// valid and turns every observation into a no-op, so tests and small tools
// can run without a registry.
type Metrics struct {
	messages    prometheus.Counter
	parseErrors prometheus.Counter
	gaps        prometheus.Counter
	recoveries  prometheus.Counter
	updates     prometheus.Counter
	lastSeq     prometheus.Gauge
}

// NewMetrics creates and registers the feed metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed_messages_total",
			Help: "Feed messages received from the venue socket.",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed_parse_errors_total",
			Help: "Feed frames dropped due to parse failures.",
		}),
		gaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed_sequence_gaps_total",
			Help: "Sequence gaps detected.",
		}),
		recoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed_recoveries_total",
			Help: "Snapshot recoveries completed.",
		}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed_updates_published_total",
			Help: "Updates published to subscribers.",
		}),
		lastSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feed_last_sequence",
			Help: "Last venue sequence observed.",
		}),
	}
	reg.MustRegister(m.messages, m.parseErrors, m.gaps, m.recoveries, m.updates, m.lastSeq)
	return m
}

func (m *Metrics) incMessages() {
	if m != nil {
		m.messages.Inc()
	}
}

func (m *Metrics) incParseErrors() {
	if m != nil {
		m.parseErrors.Inc()
	}
}

func (m *Metrics) incGaps() {
	if m != nil {
		m.gaps.Inc()
	}
}

func (m *Metrics) incRecoveries() {
	if m != nil {
		m.recoveries.Inc()
	}
}

func (m *Metrics) incUpdates() {
	if m != nil {
		m.updates.Inc()
	}
}

func (m *Metrics) setLastSequence(seq uint64) {
	if m != nil {
		m.lastSeq.Set(float64(seq))
	}
}
