package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	// PeerErrors counts peer send failures process-wide. Every failed
	// connect, encode or write attempt increments it by one.
	PeerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aggmesh",
		Name:      "peer_errors_total",
		Help:      "Total number of peer snapshot send failures.",
	})

	// FramesReceived counts decoded inbound frames by message kind.
	FramesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aggmesh",
		Name:      "frames_received_total",
		Help:      "Total number of peer frames decoded, by kind.",
	}, []string{"kind"})

	// BadRecords counts metric entries that failed to decode inside an
	// otherwise well-formed frame.
	BadRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aggmesh",
		Name:      "bad_records_total",
		Help:      "Total number of undecodable metric entries in inbound frames.",
	})

	// TasksDropped counts tasks that could not be handed to a worker.
	TasksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aggmesh",
		Name:      "tasks_dropped_total",
		Help:      "Total number of tasks dropped because a worker was unreachable.",
	})

	// SnapshotRounds counts started broadcast rounds.
	SnapshotRounds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aggmesh",
		Name:      "snapshot_rounds_total",
		Help:      "Total number of snapshot broadcast rounds started.",
	})

	// RoundAborts counts rounds aborted before any peer send.
	RoundAborts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aggmesh",
		Name:      "snapshot_round_aborts_total",
		Help:      "Total number of snapshot rounds aborted at the gather barrier.",
	})

	// SendDuration observes the latency of successful peer sends.
	SendDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "aggmesh",
		Name:      "snapshot_send_duration_seconds",
		Help:      "Latency of successful snapshot sends to a peer.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 13),
	})
)

func init() {
	registry.MustRegister(
		PeerErrors,
		FramesReceived,
		BadRecords,
		TasksDropped,
		SnapshotRounds,
		RoundAborts,
		SendDuration,
	)
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
