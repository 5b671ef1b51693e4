package constants

// Inbound event names. The first of each group is what the ESP32 firmware and
// the dashboard emit; the rest are accepted aliases.
const (
	EventIdentify      = "esp32-identify"
	EventIdentifyAlias = "identify"

	EventSensorData      = "sensorData"
	EventSensorDataAlias = "telemetry"

	EventToggleControl      = "toggleControl"
	EventToggleControlAlias = "command"
)

// Outbound event names.
const (
	// EventUpdate carries device telemetry to viewers
	EventUpdate = "update"
	// EventControl carries a viewer command to the device
	EventControl = "control"
)
