// Package metrics exposes the data path's Prometheus counters: processor
// steps by kind and outcome, and locate engine latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "phobos"

var (
	// StepsTotal counts each Step call by LRS request kind and whether it
	// completed or failed.
	StepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "processor",
		Name:      "steps_total",
		Help:      "Processor Step calls by request kind and outcome.",
	}, []string{"kind", "outcome"})

	// BytesTransferred sums split payload bytes moved through WriteSplit/
	// ReadSplit, by role.
	BytesTransferred = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "processor",
		Name:      "bytes_total",
		Help:      "Bytes moved through the data processor, by role.",
	}, []string{"role"})

	// LocateDuration observes how long one Locate call takes end to end,
	// including any lock acquisition.
	LocateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "locate",
		Name:      "duration_seconds",
		Help:      "Locate engine call latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	// LocksHeld tracks the number of medium locks the locate engine has
	// outstanding at any instant, per host.
	LocksHeld = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "locate",
		Name:      "locks_held",
		Help:      "Medium concurrency locks currently held, by host.",
	}, []string{"host"})
)
