package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "harvest",
		Subsystem: "offline_queue",
		Name:      "pending",
		Help:      "Operations waiting in the offline queue.",
	})

	enqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harvest",
		Subsystem: "offline_queue",
		Name:      "enqueued_total",
		Help:      "Operations appended to the offline queue.",
	}, []string{"kind"})

	replayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harvest",
		Subsystem: "offline_queue",
		Name:      "replayed_total",
		Help:      "Replay attempts by kind and outcome.",
	}, []string{"kind", "outcome"})

	drainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "harvest",
		Subsystem: "offline_queue",
		Name:      "drain_duration_seconds",
		Help:      "Duration of non-empty drain passes.",
		Buckets:   prometheus.DefBuckets,
	})
)
