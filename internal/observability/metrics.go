package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "handstream",
			Subsystem: "stream",
			Name:      "frames_sent_total",
			Help:      "Frames handed to the connection for transmission.",
		},
		[]string{"tag"},
	)
	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "handstream",
			Subsystem: "stream",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped instead of sent.",
		},
		[]string{"tag", "reason"},
	)
	sendErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "handstream",
			Subsystem: "link",
			Name:      "send_errors_total",
			Help:      "Transport write failures.",
		},
	)
	connects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "handstream",
			Subsystem: "link",
			Name:      "connect_attempts_total",
			Help:      "Connection attempts by outcome.",
		},
		[]string{"outcome"},
	)
	reconnectsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "handstream",
			Subsystem: "link",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after a failure or drop.",
		},
	)
	inboundMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "handstream",
			Subsystem: "link",
			Name:      "inbound_messages_total",
			Help:      "Text messages received from the server.",
		},
	)
	subscriberPanics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "handstream",
			Subsystem: "link",
			Name:      "subscriber_panics_total",
			Help:      "Inbound subscribers that panicked during delivery.",
		},
	)
)

// RegisterMetrics registers all collectors with the default registry.
// Safe to call from multiple call sites.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesSent, framesDropped, sendErrors, connects,
			reconnectsScheduled, inboundMessages, subscriberPanics,
		)
	})
}

// MetricsHandler returns the HTTP handler serving the metrics endpoint.
func MetricsHandler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordFrameSent(tag string) {
	RegisterMetrics()
	framesSent.WithLabelValues(tag).Inc()
}

func RecordFrameDropped(tag, reason string) {
	RegisterMetrics()
	framesDropped.WithLabelValues(tag, reason).Inc()
}

func RecordSendError() {
	RegisterMetrics()
	sendErrors.Inc()
}

func RecordConnect(outcome string) {
	RegisterMetrics()
	connects.WithLabelValues(outcome).Inc()
}

func RecordReconnectScheduled() {
	RegisterMetrics()
	reconnectsScheduled.Inc()
}

func RecordInboundMessage() {
	RegisterMetrics()
	inboundMessages.Inc()
}

func RecordSubscriberPanic() {
	RegisterMetrics()
	subscriberPanics.Inc()
}
