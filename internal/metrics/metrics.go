// Package metrics provides Prometheus instrumentation for the relay and
// synchronizer: message throughput by kind, playback update counts, and the
// number of live notifier connections.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesTotal counts ingested messages, labeled by kind.
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "selfcinema_messages_total",
		Help: "Total number of messages ingested",
	}, []string{"kind"})

	// PlaybackUpdatesTotal counts accepted playback descriptor updates.
	PlaybackUpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "selfcinema_playback_updates_total",
		Help: "Total number of accepted playback updates",
	})

	// NotifierConnections tracks the current number of websocket listeners.
	NotifierConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "selfcinema_notifier_connections",
		Help: "Current number of websocket notifier connections",
	})
)

func init() {
	prometheus.MustRegister(
		MessagesTotal,
		PlaybackUpdatesTotal,
		NotifierConnections,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
