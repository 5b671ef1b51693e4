// Package mqttbridge exposes a device that speaks MQTT to the relay as if it
// were one more connection. Telemetry published on the data topic is relayed to
// viewers, and commands routed to the device are published on the control topic.
package mqttbridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/iot-relay/internal/constants"
	"github.com/benmeehan/iot-relay/internal/relay"
	"github.com/benmeehan/iot-relay/pkg/mqtt"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	subscribeTimeout  = 10 * time.Second
	disconnectQuiesce = 250
)

// Client is the MQTT client the bridge drives.
type Client interface {
	mqtt.MQTTClient
	Initialize(broker, clientID, caCertPath string, handlers mqtt.ConnectionHandlers) error
}

// Options configures a Bridge.
type Options struct {
	Broker        string
	ClientID      string
	CACertificate string
	DataTopic     string
	ControlTopic  string
	QOS           int
}

// Bridge is a long-running service that presents the MQTT device to the relay.
type Bridge struct {
	opts    Options
	client  Client
	handler relay.EventHandler
	connID  relay.ConnID
	logger  zerolog.Logger

	mu      sync.Mutex
	online  bool
	started bool
}

var _ relay.DeviceOnlyPeer = (*Bridge)(nil)

// NewBridge creates a Bridge. Nothing happens until Start.
func NewBridge(opts Options, client Client, handler relay.EventHandler, logger zerolog.Logger) *Bridge {
	return &Bridge{
		opts:    opts,
		client:  client,
		handler: handler,
		connID:  relay.ConnID(constants.MQTTConnIDPrefix + opts.ClientID),
		logger:  logger.With().Str("component", "mqtt-bridge").Logger(),
	}
}

// ConnID returns the connection id the bridge registers under.
func (b *Bridge) ConnID() relay.ConnID {
	return b.connID
}

// Start connects to the broker. Connection and reconnection happen in the background.
func (b *Bridge) Start() error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return errors.New("mqtt bridge is already running")
	}
	b.started = true
	b.mu.Unlock()

	err := b.client.Initialize(b.opts.Broker, b.opts.ClientID, b.opts.CACertificate, mqtt.ConnectionHandlers{
		OnConnect:        b.handleConnect,
		OnConnectionLost: b.handleConnectionLost,
	})
	if err != nil {
		b.mu.Lock()
		b.started = false
		b.mu.Unlock()
		return fmt.Errorf("failed to initialize MQTT connection: %w", err)
	}

	b.logger.Info().Str("broker", b.opts.Broker).Msg("MQTT bridge started")
	return nil
}

// Stop drops the device connection from the relay and disconnects from the broker.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return errors.New("mqtt bridge is not running")
	}
	wasOnline := b.online
	b.online = false
	b.started = false
	b.mu.Unlock()

	if wasOnline {
		token := b.client.Unsubscribe(b.opts.DataTopic)
		if token.WaitTimeout(subscribeTimeout) && token.Error() != nil {
			b.logger.Warn().Err(token.Error()).Str("topic", b.opts.DataTopic).Msg("Failed to unsubscribe from data topic")
		}
		b.handler.Disconnected(b.connID)
	}
	b.client.Disconnect(disconnectQuiesce)

	b.logger.Info().Msg("MQTT bridge stopped")
	return nil
}

// DeviceOnly keeps the bridge out of telemetry broadcasts.
func (b *Bridge) DeviceOnly() {}

// Send publishes a control command to the device. Only control events are
// meaningful to the device; anything else is refused.
func (b *Bridge) Send(event string, payload []byte) error {
	if event != constants.EventControl {
		return fmt.Errorf("mqtt bridge cannot deliver %q events", event)
	}

	b.mu.Lock()
	online := b.online
	b.mu.Unlock()
	if !online {
		return relay.ErrConnectionClosed
	}

	token := b.client.Publish(b.opts.ControlTopic, byte(b.opts.QOS), false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			b.logger.Error().Err(err).Str("topic", b.opts.ControlTopic).Msg("Failed to publish control command")
			return
		}
		b.logger.Debug().Str("topic", b.opts.ControlTopic).Msg("Control command published")
	}()
	return nil
}

func (b *Bridge) handleConnect() {
	token := b.client.Subscribe(b.opts.DataTopic, byte(b.opts.QOS), b.handleData)
	if !token.WaitTimeout(subscribeTimeout) {
		b.logger.Error().Str("topic", b.opts.DataTopic).Msg("Timed out subscribing to data topic")
		return
	}
	if err := token.Error(); err != nil {
		b.logger.Error().Err(err).Str("topic", b.opts.DataTopic).Msg("Failed to subscribe to data topic")
		return
	}

	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.online = true
	b.mu.Unlock()

	b.logger.Info().Str("topic", b.opts.DataTopic).Msg("Subscribed to data topic")
	b.handler.Connected(b.connID, b)
	b.handler.DeviceIdentify(b.connID)
}

func (b *Bridge) handleConnectionLost(err error) {
	b.mu.Lock()
	wasOnline := b.online
	b.online = false
	b.mu.Unlock()

	b.logger.Warn().Err(err).Msg("MQTT connection lost")
	if wasOnline {
		b.handler.Disconnected(b.connID)
	}
}

func (b *Bridge) handleData(_ MQTT.Client, msg MQTT.Message) {
	b.mu.Lock()
	online := b.online
	b.mu.Unlock()
	if !online {
		return
	}
	b.handler.Telemetry(b.connID, msg.Payload())
}
