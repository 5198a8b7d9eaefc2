// Package telemetry holds the process metrics and the admin HTTP server.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const ns = "metasync"

var (
	Batches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "batches_total",
		Help:      "Non-empty batches fetched.",
	}, []string{"source"})

	Messages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "messages_total",
		Help:      "Messages processed, by outcome.",
	}, []string{"source", "outcome"})

	Commits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "offset_commits_total",
		Help:      "Offsets written to the offset store.",
	}, []string{"source"})

	SessionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "session_errors_total",
		Help:      "Aborted consumer sessions, by phase.",
	}, []string{"source", "phase"})

	SessionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "session_duration_seconds",
		Help:      "Wall time of one consumer session.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
	}, []string{"source"})

	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "sink_write_errors_total",
		Help:      "Failed or partial sink writes.",
	}, []string{"sink"})
)
