package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics exposes bid arbitration health signals.
type Metrics struct {
	bidsTotal          *prometheus.CounterVec
	arbitrationSeconds prometheus.Histogram
	pollTimeouts       prometheus.Counter
	itemsSold          prometheus.Counter
	statsDropped       prometheus.Counter
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		bidsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gavel",
			Name:      "bids_total",
			Help:      "Bids arbitrated, by outcome.",
		}, []string{"outcome"}),
		arbitrationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gavel",
			Name:      "bid_arbitration_seconds",
			Help:      "Wall time from bid receipt to resolved outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		pollTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gavel",
			Name:      "next_bid_poll_timeouts_total",
			Help:      "Long polls that elapsed without a newer bid.",
		}),
		itemsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gavel",
			Name:      "items_sold_total",
			Help:      "Items moved to SOLD, house sales included.",
		}),
		statsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gavel",
			Name:      "completion_stats_dropped_total",
			Help:      "Completion stat rows lost to write errors.",
		}),
	}
	reg.MustRegister(
		m.bidsTotal,
		m.arbitrationSeconds,
		m.pollTimeouts,
		m.itemsSold,
		m.statsDropped,
	)
	return m
}

func (m *Metrics) ObserveBid(outcome string, seconds float64) {
	m.bidsTotal.WithLabelValues(outcome).Inc()
	m.arbitrationSeconds.Observe(seconds)
}

func (m *Metrics) PollTimeout() { m.pollTimeouts.Inc() }
func (m *Metrics) ItemSold()    { m.itemsSold.Inc() }

// NewRegistry builds the process metrics registry with the standard process
// and Go collectors attached.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
