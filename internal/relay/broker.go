package relay

import (
	"sync"

	"github.com/benmeehan/iot-relay/internal/constants"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// EventHandler is the set of inbound events a transport delivers to the relay.
type EventHandler interface {
	Connected(id ConnID, peer Peer)
	Disconnected(id ConnID)
	DeviceIdentify(id ConnID)
	Telemetry(id ConnID, payload []byte)
	ControlCommand(id ConnID, payload []byte)
}

// Snapshot is a point-in-time view of the relay state.
type Snapshot struct {
	DeviceID    ConnID `json:"device_id,omitempty"`
	Viewers     int    `json:"viewers"`
	Connections int    `json:"connections"`
}

// Broker owns the relay state. All inbound events are handled under one mutex,
// so the Router never sees a half-applied lifecycle transition.
type Broker struct {
	mu        sync.Mutex
	registry  *Registry
	router    *Router
	lifecycle *Lifecycle
	recorder  Recorder
	logger    zerolog.Logger
}

var _ EventHandler = (*Broker)(nil)

// NewBroker wires a Registry, Router and Lifecycle together.
func NewBroker(recorder Recorder, logger zerolog.Logger) *Broker {
	registry := NewRegistry()
	return &Broker{
		registry:  registry,
		router:    NewRouter(registry, recorder, logger),
		lifecycle: NewLifecycle(registry, recorder, logger),
		recorder:  recorder,
		logger:    logger,
	}
}

// Connected registers a new connection.
func (b *Broker) Connected(id ConnID, peer Peer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lifecycle.OnConnect(id, peer)
}

// Disconnected removes a connection. It is safe to call more than once.
func (b *Broker) Disconnected(id ConnID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lifecycle.OnDisconnect(id)
}

// DeviceIdentify makes id the current device.
func (b *Broker) DeviceIdentify(id ConnID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.lifecycle.OnIdentify(id)
}

// Telemetry broadcasts payload to all viewers.
func (b *Broker) Telemetry(id ConnID, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recorder.TelemetryReceived()
	if !b.validate(id, constants.EventSensorData, payload) {
		return
	}

	if device := b.registry.CurrentDevice(); device == nil || device.ID != id {
		b.logger.Debug().Str("conn_id", string(id)).Msg("Telemetry from a connection that is not the device")
	}

	d := b.router.OnDeviceTelemetry(payload)
	b.logger.Debug().
		Str("conn_id", string(id)).
		Int("viewers", d.Attempted).
		Int("failed", d.Failed).
		Msg("Telemetry broadcast")
}

// ControlCommand forwards payload to the device, if there is one.
func (b *Broker) ControlCommand(id ConnID, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recorder.CommandReceived()
	if !b.validate(id, constants.EventToggleControl, payload) {
		return
	}

	b.lifecycle.OnActivity(id, RoleViewer)
	b.logger.Info().Str("conn_id", string(id)).RawJSON("command", payload).Msg("Received control command")
	b.router.OnViewerCommand(payload)
}

// Snapshot returns the current device and connection counts.
func (b *Broker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{
		Viewers:     len(b.registry.AllViewers()),
		Connections: b.registry.Len(),
	}
	if device := b.registry.CurrentDevice(); device != nil {
		s.DeviceID = device.ID
	}
	return s
}

func (b *Broker) validate(id ConnID, event string, payload []byte) bool {
	if json.Valid(payload) {
		return true
	}
	b.recorder.Dropped(constants.DropMalformed)
	b.logger.Warn().
		Err(ErrMalformedPayload).
		Str("conn_id", string(id)).
		Str("event", event).
		Int("size", len(payload)).
		Msg("Dropping message")
	return false
}
