package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tuner_ws_subscribers",
			Help: "Number of connected websocket subscribers",
		},
	)

	eventsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tuner_ws_events_sent_total",
			Help: "Total number of websocket events delivered",
		},
	)

	wsSendErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tuner_ws_send_errors_total",
			Help: "Total number of failed websocket writes",
		},
	)

	wsEventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tuner_ws_events_dropped_total",
			Help: "Total number of websocket events dropped on full subscriber queues",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tuner_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)
)
