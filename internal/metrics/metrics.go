package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reconciliation
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spaces_polls_total",
			Help: "Reconciliation ticks by outcome",
		},
		[]string{"result"}, // "changed", "unchanged", "not_found", "error"
	)

	CollaboratorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spaces_collaborator_calls_total",
			Help: "Calls into the persistence API and media engine",
		},
		[]string{"call", "result"},
	)

	// Lifecycle
	LifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spaces_lifecycle_transitions_total",
			Help: "Lifecycle phase changes observed by the monitor",
		},
		[]string{"phase"},
	)

	RoomIntents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spaces_room_intents_total",
			Help: "Room intents committed by the arbitrator",
		},
		[]string{"action"},
	)

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spaces_http_requests_total",
			Help: "Total HTTP requests to the view API",
		},
		[]string{"method", "path", "status"},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spaces_event_subscribers",
			Help: "Open view event websockets",
		},
	)
)

// Call records one collaborator call outcome.
func Call(name string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	CollaboratorCalls.WithLabelValues(name, result).Inc()
}
