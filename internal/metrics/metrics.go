package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// RelayMetrics records relay traffic on its own prometheus registry.
type RelayMetrics struct {
	registry *prometheus.Registry

	telemetryReceived prometheus.Counter
	commandsReceived  prometheus.Counter
	messagesSent      *prometheus.CounterVec
	sendFailures      *prometheus.CounterVec
	dropped           *prometheus.CounterVec
	viewers           prometheus.Gauge
	deviceConnected   prometheus.Gauge
}

// NewRelayMetrics creates and registers the relay collectors. Go runtime and
// process collectors are registered alongside them.
func NewRelayMetrics() *RelayMetrics {
	m := &RelayMetrics{
		registry: prometheus.NewRegistry(),
		telemetryReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_received_total",
			Help:      "Telemetry messages received from any connection.",
		}),
		commandsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_received_total",
			Help:      "Control commands received from any connection.",
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages handed to a connection's send queue, by event.",
		}, []string{"event"}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Messages a connection refused, by event.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Inbound messages dropped before routing, by reason.",
		}, []string{"reason"}),
		viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewers",
			Help:      "Connections currently receiving telemetry.",
		}),
		deviceConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_connected",
			Help:      "1 while a device holds the device slot.",
		}),
	}

	m.registry.MustRegister(
		m.telemetryReceived,
		m.commandsReceived,
		m.messagesSent,
		m.sendFailures,
		m.dropped,
		m.viewers,
		m.deviceConnected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *RelayMetrics) TelemetryReceived()       { m.telemetryReceived.Inc() }
func (m *RelayMetrics) CommandReceived()         { m.commandsReceived.Inc() }
func (m *RelayMetrics) MessageSent(event string) { m.messagesSent.WithLabelValues(event).Inc() }
func (m *RelayMetrics) SendFailed(event string)  { m.sendFailures.WithLabelValues(event).Inc() }
func (m *RelayMetrics) Dropped(reason string)    { m.dropped.WithLabelValues(reason).Inc() }
func (m *RelayMetrics) SetViewers(n int)         { m.viewers.Set(float64(n)) }

func (m *RelayMetrics) SetDeviceConnected(connected bool) {
	if connected {
		m.deviceConnected.Set(1)
		return
	}
	m.deviceConnected.Set(0)
}

// Handler serves the registry in the prometheus exposition format.
func (m *RelayMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying prometheus registry.
func (m *RelayMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// DroppedCounter returns the drop counter for reason.
func (m *RelayMetrics) DroppedCounter(reason string) prometheus.Counter {
	return m.dropped.WithLabelValues(reason)
}

// SendFailuresCounter returns the send failure counter for event.
func (m *RelayMetrics) SendFailuresCounter(event string) prometheus.Counter {
	return m.sendFailures.WithLabelValues(event)
}
