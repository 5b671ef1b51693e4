package constants

import "time"

// Drop reasons reported to metrics.
const (
	DropNoDevice  = "no_device"
	DropMalformed = "malformed"
)

const (
	DefaultListenAddr     = ":3000"
	DefaultWebsocketPath  = "/ws"
	DefaultSendQueueSize  = 64
	DefaultWriteTimeout   = 10 * time.Second
	DefaultPongWait       = 60 * time.Second
	DefaultMaxMessageSize = 64 * 1024 // 64KiB
	DefaultMetricsPath    = "/metrics"

	DefaultMQTTDataTopic    = "myhome/esp32/data"
	DefaultMQTTControlTopic = "myhome/esp32/control"
	DefaultMQTTClientID     = "iot-relay"

	// MQTTConnIDPrefix prefixes the connection id of the MQTT bridge device.
	MQTTConnIDPrefix = "mqtt:"
)
