package relay

import (
	"github.com/rs/zerolog"
)

// Lifecycle applies connect, identify and disconnect transitions to the Registry.
//
//	Unidentified -> Device   on an identify event
//	Unidentified -> Viewer   on the first viewer-class message
//	any          -> Disconnected
//
// When the device disconnects, a device-only connection on standby takes the
// slot back. A disconnect is final: the peer has to reconnect and identify again.
type Lifecycle struct {
	registry *Registry
	recorder Recorder
	logger   zerolog.Logger
}

// NewLifecycle creates a Lifecycle over registry.
func NewLifecycle(registry *Registry, recorder Recorder, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		registry: registry,
		recorder: recorder,
		logger:   logger,
	}
}

// OnConnect registers a new unidentified connection.
func (l *Lifecycle) OnConnect(id ConnID, peer Peer) *Connection {
	conn := l.registry.Register(id, peer)
	l.logger.Info().Str("conn_id", string(id)).Msg("A user connected")
	l.publishGauges()
	return conn
}

// OnIdentify makes id the device. The last connection to identify wins.
func (l *Lifecycle) OnIdentify(id ConnID) error {
	previous, err := l.registry.MarkAsDevice(id)
	if err != nil {
		l.logger.Warn().Err(err).Str("conn_id", string(id)).Msg("Identify from unregistered connection ignored")
		return err
	}
	if previous != nil {
		l.logger.Warn().
			Str("conn_id", string(id)).
			Str("replaced_conn_id", string(previous.ID)).
			Msg("Device slot taken over by a new connection")
	}
	l.logger.Info().Str("conn_id", string(id)).Msg("Device identified")
	l.publishGauges()
	return nil
}

// OnActivity records that id sent a message of the given role class. Only
// viewer-class activity changes state, and only for unidentified connections.
func (l *Lifecycle) OnActivity(id ConnID, role Role) {
	if role != RoleViewer {
		return
	}
	if err := l.registry.MarkAsViewer(id); err != nil {
		l.logger.Debug().Err(err).Str("conn_id", string(id)).Msg("Activity from unregistered connection")
	}
}

// OnDisconnect removes id. Calling it again for the same id does nothing.
func (l *Lifecycle) OnDisconnect(id ConnID) {
	device := l.registry.CurrentDevice()
	wasDevice := device != nil && device.ID == id

	if _, ok := l.registry.Remove(id); !ok {
		l.logger.Debug().Str("conn_id", string(id)).Msg("Disconnect for unknown connection ignored")
		return
	}

	l.logger.Info().Str("conn_id", string(id)).Msg("User disconnected")
	if wasDevice {
		l.logger.Info().Str("conn_id", string(id)).Msg("Device disconnected")
		if standby := l.registry.Standby(); standby != nil {
			_, _ = l.registry.MarkAsDevice(standby.ID)
			l.logger.Info().Str("conn_id", string(standby.ID)).Msg("Standby device took over the device slot")
		}
	}
	l.publishGauges()
}

func (l *Lifecycle) publishGauges() {
	l.recorder.SetViewers(len(l.registry.AllViewers()))
	l.recorder.SetDeviceConnected(l.registry.CurrentDevice() != nil)
}
