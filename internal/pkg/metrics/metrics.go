package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voicelink"

var (
	// PendingCommands tracks the number of records in the pending command table.
	PendingCommands = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_commands",
			Help:      "Number of commands awaiting an acknowledgement.",
		},
	)

	// CommandIssuedTotal counts commands published to devices.
	CommandIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_issued_total",
			Help:      "Total number of commands published to devices.",
		},
		[]string{"source"}, // singular/batched
	)

	// CommandAcksTotal counts acknowledgements by outcome.
	CommandAcksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_acks_total",
			Help:      "Total number of command acknowledgements received.",
		},
		[]string{"source", "result"}, // result: success/failure/unmatched
	)

	// CommandTimeoutsTotal counts commands resolved by the sweeper.
	CommandTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_timeouts_total",
			Help:      "Total number of commands resolved by the timeout sweeper.",
		},
		[]string{"source", "result"}, // result: timeout/partial
	)

	// SinkDeliveryFailuresTotal counts responses that could not reach the caller.
	SinkDeliveryFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_delivery_failures_total",
			Help:      "Total number of responses that could not be delivered to the caller.",
		},
		[]string{"reason"}, // consumed/abandoned
	)

	// StatePatchesTotal counts state patches merged into shadows.
	StatePatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_patches_total",
			Help:      "Total number of state patches merged into device shadows.",
		},
	)

	// StateRejectionsTotal counts rejected state fields.
	StateRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_rejections_total",
			Help:      "Total number of rejected state fields.",
		},
		[]string{"attribute"},
	)

	// ReportsTotal counts pushes to reporting integrations.
	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Total number of state reports pushed to integrations.",
		},
		[]string{"integration", "result"}, // result: success/failure/unlinked
	)
)

func init() {
	prometheus.MustRegister(
		PendingCommands,
		CommandIssuedTotal,
		CommandAcksTotal,
		CommandTimeoutsTotal,
		SinkDeliveryFailuresTotal,
		StatePatchesTotal,
		StateRejectionsTotal,
		ReportsTotal,
	)
}
