package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcpdeck_broadcast_events_total",
		Help: "Status events published to the broadcaster, by type.",
	}, []string{"type"})

	eventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcpdeck_broadcast_delivered_total",
		Help: "Events successfully queued to a session.",
	})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcpdeck_broadcast_dropped_total",
		Help: "Events dropped because the dispatch buffer was full.",
	})

	resyncsForced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcpdeck_broadcast_resyncs_total",
		Help: "Snapshot resyncs forced by session queue overflow.",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcpdeck_broadcast_sessions",
		Help: "Currently subscribed sessions.",
	})

	sessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcpdeck_broadcast_evictions_total",
		Help: "Sessions evicted after missing consecutive heartbeats.",
	})
)
