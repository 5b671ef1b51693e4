package utils

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/benmeehan/iot-relay/internal/constants"
	"github.com/benmeehan/iot-relay/pkg/file"
	"github.com/joeshaw/envdecode"
)

// Config represents the structure of the configuration file.
type Config struct {
	Server struct {
		ListenAddr     string        `yaml:"listen_addr"`      // Address the HTTP server binds to
		WebsocketPath  string        `yaml:"websocket_path"`   // Route upgraded to a websocket
		AllowedOrigins []string      `yaml:"allowed_origins"`  // CORS and websocket origins, empty means any
		SendQueueSize  int           `yaml:"send_queue_size"`  // Outbound messages buffered per connection
		WriteTimeout   time.Duration `yaml:"write_timeout"`    // Deadline for a single websocket write
		PongWait       time.Duration `yaml:"pong_wait"`        // Time allowed between pongs before a peer is dropped
		PingPeriod     time.Duration `yaml:"ping_period"`      // Interval between pings, must be below pong_wait
		MaxMessageSize int64         `yaml:"max_message_size"` // Largest inbound frame in bytes
	} `yaml:"server"`

	MQTT struct {
		Enabled       bool   `yaml:"enabled"`        // Enable/disable the MQTT device bridge
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate, empty for plain TCP
		DataTopic     string `yaml:"data_topic"`     // Topic the device publishes telemetry on
		ControlTopic  string `yaml:"control_topic"`  // Topic the device listens for commands on
		QOS           int    `yaml:"qos"`            // MQTT QoS level for both topics
	} `yaml:"mqtt"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"` // Expose prometheus metrics
		Path    string `yaml:"path"`    // Route for the metrics endpoint
	} `yaml:"metrics"`

	Log struct {
		Level  string `yaml:"level"`  // zerolog level name
		Pretty bool   `yaml:"pretty"` // Human readable console output instead of JSON
	} `yaml:"log"`
}

// envOverrides holds the environment variables that take precedence over the file.
type envOverrides struct {
	Port        string `env:"PORT"`
	ListenAddr  string `env:"RELAY_LISTEN_ADDR"`
	LogLevel    string `env:"RELAY_LOG_LEVEL"`
	MQTTBroker  string `env:"RELAY_MQTT_BROKER"`
	MQTTEnabled bool   `env:"RELAY_MQTT_ENABLED"`
	Metrics     bool   `env:"RELAY_METRICS_ENABLED"`
}

// LoadConfig loads the YAML configuration from the specified file.
// A missing file yields the defaults.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config

	exists, err := fileClient.IsFileExists(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if exists {
		if err := fileClient.ReadYamlFile(filename, &config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envdecode.Decode(&env); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("failed to decode environment: %w", err)
	}

	if env.Port != "" {
		c.Server.ListenAddr = ":" + env.Port
	}
	if env.ListenAddr != "" {
		c.Server.ListenAddr = env.ListenAddr
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.MQTTBroker != "" {
		c.MQTT.Broker = env.MQTTBroker
	}
	if env.MQTTEnabled {
		c.MQTT.Enabled = true
	}
	if env.Metrics {
		c.Metrics.Enabled = true
	}
	return nil
}

// ApplyDefaults fills every zero value that has a sensible default.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = constants.DefaultListenAddr
	}
	if c.Server.WebsocketPath == "" {
		c.Server.WebsocketPath = constants.DefaultWebsocketPath
	}
	if c.Server.SendQueueSize == 0 {
		c.Server.SendQueueSize = constants.DefaultSendQueueSize
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = constants.DefaultWriteTimeout
	}
	if c.Server.PongWait == 0 {
		c.Server.PongWait = constants.DefaultPongWait
	}
	if c.Server.PingPeriod == 0 {
		c.Server.PingPeriod = c.Server.PongWait * 9 / 10
	}
	if c.Server.MaxMessageSize == 0 {
		c.Server.MaxMessageSize = constants.DefaultMaxMessageSize
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = constants.DefaultMQTTClientID
	}
	if c.MQTT.DataTopic == "" {
		c.MQTT.DataTopic = constants.DefaultMQTTDataTopic
	}
	if c.MQTT.ControlTopic == "" {
		c.MQTT.ControlTopic = constants.DefaultMQTTControlTopic
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = constants.DefaultMetricsPath
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Server.ListenAddr == "":
		return errors.New("server.listen_addr is required")
	case c.Server.SendQueueSize < 1:
		return fmt.Errorf("server.send_queue_size must be positive, got %d", c.Server.SendQueueSize)
	case c.Server.PingPeriod >= c.Server.PongWait:
		return fmt.Errorf("server.ping_period (%s) must be shorter than server.pong_wait (%s)",
			c.Server.PingPeriod, c.Server.PongWait)
	case c.MQTT.Enabled && c.MQTT.Broker == "":
		return errors.New("mqtt.broker is required when mqtt is enabled")
	case c.MQTT.QOS < 0 || c.MQTT.QOS > 2:
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QOS)
	}
	return nil
}
