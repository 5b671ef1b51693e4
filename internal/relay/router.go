package relay

import (
	"github.com/benmeehan/iot-relay/internal/constants"
	"github.com/rs/zerolog"
)

// Recorder receives the relay's observability events.
type Recorder interface {
	TelemetryReceived()
	CommandReceived()
	MessageSent(event string)
	SendFailed(event string)
	Dropped(reason string)
	SetViewers(n int)
	SetDeviceConnected(connected bool)
}

// Delivery summarizes one fan-out.
type Delivery struct {
	Attempted int
	Failed    int
}

// Router decides where an inbound message goes. It only reads the Registry.
type Router struct {
	registry *Registry
	recorder Recorder
	logger   zerolog.Logger
}

// NewRouter creates a Router over registry.
func NewRouter(registry *Registry, recorder Recorder, logger zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		recorder: recorder,
		logger:   logger,
	}
}

// OnDeviceTelemetry sends payload unmodified to every viewer. A failed send to one
// viewer does not stop delivery to the rest.
func (r *Router) OnDeviceTelemetry(payload []byte) Delivery {
	var d Delivery
	for _, viewer := range r.registry.AllViewers() {
		d.Attempted++
		if err := viewer.Peer.Send(constants.EventUpdate, payload); err != nil {
			d.Failed++
			r.recorder.SendFailed(constants.EventUpdate)
			r.logger.Warn().Err(err).Str("conn_id", string(viewer.ID)).Msg("Failed to deliver telemetry to viewer")
			continue
		}
		r.recorder.MessageSent(constants.EventUpdate)
	}
	return d
}

// OnViewerCommand forwards payload unmodified to the current device. It reports
// false when there is no device or the send failed; nothing is surfaced to the viewer.
func (r *Router) OnViewerCommand(payload []byte) bool {
	device := r.registry.CurrentDevice()
	if device == nil {
		r.recorder.Dropped(constants.DropNoDevice)
		r.logger.Info().Msg("No device connected, command ignored")
		return false
	}

	if err := device.Peer.Send(constants.EventControl, payload); err != nil {
		r.recorder.SendFailed(constants.EventControl)
		r.logger.Warn().Err(err).Str("conn_id", string(device.ID)).Msg("Failed to forward command to device")
		return false
	}
	r.recorder.MessageSent(constants.EventControl)
	return true
}
