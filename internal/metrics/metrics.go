package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_orders_created_total",
		Help: "Orders successfully created.",
	})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_status_transitions_total",
		Help: "Committed order status transitions.",
	}, []string{"status"})

	PushMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_push_messages_total",
		Help: "Push notification batches dispatched, by event kind.",
	}, []string{"kind"})

	PushTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_push_tokens_total",
		Help: "Per-token push delivery outcomes.",
	}, []string{"role", "outcome"})

	TokensPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_push_tokens_pruned_total",
		Help: "Device tokens deactivated after permanent delivery failures.",
	})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orderflow_stream_clients",
		Help: "Currently connected event stream subscribers.",
	})

	EffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_effect_failures_total",
		Help: "Post-commit effects that failed and were absorbed.",
	}, []string{"effect"})
)
