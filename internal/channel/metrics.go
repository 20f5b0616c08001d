package channel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors shared by any number of Connections.
// Series are labelled by connection URL.
type Metrics struct {
	framesSent      *prometheus.CounterVec
	framesReceived  *prometheus.CounterVec
	framesDropped   *prometheus.CounterVec
	sendFailures    *prometheus.CounterVec
	decodeFailures  *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	handshakes      *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
	state           *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rednet",
			Subsystem: "channel",
			Name:      name,
			Help:      help,
		}, append([]string{"url"}, labels...))
	}

	return &Metrics{
		framesSent:      counter("frames_sent_total", "Frames written to the socket"),
		framesReceived:  counter("frames_received_total", "Frames read from the socket"),
		framesDropped:   counter("frames_dropped_total", "Outbound frames discarded without delivery"),
		sendFailures:    counter("send_failures_total", "Frame writes that failed"),
		decodeFailures:  counter("decode_failures_total", "Inbound frames that were not valid envelopes"),
		handlerFailures: counter("handler_failures_total", "Callbacks that returned an error or panicked"),
		handshakes:      counter("handshakes_total", "Handshake attempts by result", "result"),
		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rednet",
			Subsystem: "channel",
			Name:      "queue_depth",
			Help:      "Outbound frames waiting to be sent",
		}, []string{"url"}),
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rednet",
			Subsystem: "channel",
			Name:      "state",
			Help:      "Connection state (0 idle, 1 connecting, 2 connected, 3 backoff, 4 closed)",
		}, []string{"url"}),
	}
}

// connMetrics is a Metrics view bound to one URL.
type connMetrics struct {
	framesSent       prometheus.Counter
	framesReceived   prometheus.Counter
	framesDropped    prometheus.Counter
	sendFailures     prometheus.Counter
	decodeFailures   prometheus.Counter
	handlerFailures  prometheus.Counter
	handshakesOK     prometheus.Counter
	handshakesFailed prometheus.Counter
	queueDepth       prometheus.Gauge
	state            prometheus.Gauge
}

func (m *Metrics) forURL(url string) *connMetrics {
	return &connMetrics{
		framesSent:       m.framesSent.WithLabelValues(url),
		framesReceived:   m.framesReceived.WithLabelValues(url),
		framesDropped:    m.framesDropped.WithLabelValues(url),
		sendFailures:     m.sendFailures.WithLabelValues(url),
		decodeFailures:   m.decodeFailures.WithLabelValues(url),
		handlerFailures:  m.handlerFailures.WithLabelValues(url),
		handshakesOK:     m.handshakes.WithLabelValues(url, "ok"),
		handshakesFailed: m.handshakes.WithLabelValues(url, "failed"),
		queueDepth:       m.queueDepth.WithLabelValues(url),
		state:            m.state.WithLabelValues(url),
	}
}
