package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Ticks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchcenter_ticks_total",
		Help: "Total number of simulation ticks",
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "matchcenter_tick_duration_seconds",
		Help:    "Duration of a full simulation tick across all active matches",
		Buckets: prometheus.DefBuckets,
	})

	TickFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchcenter_tick_match_failures_total",
		Help: "Total number of per-match tick failures",
	})

	ActiveSimulations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchcenter_active_simulations",
		Help: "Number of matches currently under simulation",
	})

	GeneratedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcenter_generated_events_total",
		Help: "Total number of events produced by the simulation, by type",
	}, []string{"type"})

	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcenter_broadcasts_total",
		Help: "Total number of broadcasts, by kind",
	}, []string{"kind"})

	SinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcenter_sink_failures_total",
		Help: "Total number of failed deliveries to a broadcast sink",
	}, []string{"sink"})

	StreamReaders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchcenter_stream_readers",
		Help: "Number of attached event stream readers",
	})

	StreamDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchcenter_stream_dropped_records_total",
		Help: "Total number of records dropped for slow stream readers",
	})

	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchcenter_websocket_connections",
		Help: "Number of open WebSocket connections",
	})
)
