package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benmeehan/iot-relay/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRelayMetrics_Record tests counters and gauges after a handful of events.
func TestRelayMetrics_Record(t *testing.T) {
	m := metrics.NewRelayMetrics()

	m.TelemetryReceived()
	m.CommandReceived()
	m.MessageSent("update")
	m.MessageSent("update")
	m.SendFailed("control")
	m.Dropped("no_device")
	m.SetViewers(3)
	m.SetDeviceConnected(true)

	expected := `
# HELP relay_viewers Connections currently receiving telemetry.
# TYPE relay_viewers gauge
relay_viewers 3
# HELP relay_device_connected 1 while a device holds the device slot.
# TYPE relay_device_connected gauge
relay_device_connected 1
# HELP relay_messages_sent_total Messages handed to a connection's send queue, by event.
# TYPE relay_messages_sent_total counter
relay_messages_sent_total{event="update"} 2
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"relay_viewers", "relay_device_connected", "relay_messages_sent_total")
	assert.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DroppedCounter("no_device")))

	m.SetDeviceConnected(false)
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP relay_device_connected 1 while a device holds the device slot.
# TYPE relay_device_connected gauge
relay_device_connected 0
`), "relay_device_connected"))
}

// TestRelayMetrics_Handler tests the exposition endpoint.
func TestRelayMetrics_Handler(t *testing.T) {
	m := metrics.NewRelayMetrics()
	m.TelemetryReceived()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relay_telemetry_received_total 1")
}
