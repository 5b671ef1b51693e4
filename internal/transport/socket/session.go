package socket

import (
	"sync"
	"time"

	"github.com/benmeehan/iot-relay/internal/constants"
	"github.com/benmeehan/iot-relay/internal/models"
	"github.com/benmeehan/iot-relay/internal/relay"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// session is one websocket peer. Outbound frames go through a bounded queue
// drained by writePump, so Send never waits on the network.
type session struct {
	id     relay.ConnID
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	opts   Options
	logger zerolog.Logger
}

var _ relay.Peer = (*session)(nil)

func newSession(id relay.ConnID, conn *websocket.Conn, opts Options, logger zerolog.Logger) *session {
	return &session{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, opts.SendQueueSize),
		done:   make(chan struct{}),
		opts:   opts,
		logger: logger.With().Str("conn_id", string(id)).Logger(),
	}
}

// Send queues an event for the peer. It fails fast when the peer is gone or
// its queue is full.
func (s *session) Send(event string, payload []byte) error {
	frame, err := models.EncodeEnvelope(event, payload)
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return relay.ErrConnectionClosed
	default:
	}

	select {
	case s.send <- frame:
		return nil
	case <-s.done:
		return relay.ErrConnectionClosed
	default:
		return relay.ErrSendQueueFull
	}
}

// close tears the session down once. A close frame is attempted first when
// code is non-zero.
func (s *session) close(code int, reason string) {
	s.once.Do(func() {
		close(s.done)
		if code != 0 {
			deadline := time.Now().Add(s.opts.WriteTimeout)
			_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		}
		s.conn.Close()
	})
}

// readPump decodes inbound frames and hands them to the relay until the peer
// goes away.
func (s *session) readPump(handler relay.EventHandler, recorder relay.Recorder) {
	s.conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		msgType, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Debug().Err(err).Msg("Websocket read ended")
			}
			return
		}
		if msgType != websocket.TextMessage {
			s.logger.Debug().Int("type", msgType).Msg("Ignoring non-text frame")
			continue
		}

		env, err := models.DecodeEnvelope(frame)
		if err != nil {
			recorder.Dropped(constants.DropMalformed)
			s.logger.Warn().Err(err).Int("size", len(frame)).Msg("Dropping undecodable frame")
			continue
		}
		s.dispatch(handler, env)
	}
}

func (s *session) dispatch(handler relay.EventHandler, env models.Envelope) {
	switch env.Event {
	case constants.EventIdentify, constants.EventIdentifyAlias:
		handler.DeviceIdentify(s.id)
	case constants.EventSensorData, constants.EventSensorDataAlias:
		handler.Telemetry(s.id, env.Data)
	case constants.EventToggleControl, constants.EventToggleControlAlias:
		handler.ControlCommand(s.id, env.Data)
	default:
		s.logger.Debug().Str("event", env.Event).Msg("Ignoring unknown event")
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (s *session) writePump() {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug().Err(err).Msg("Websocket write failed")
				s.close(0, "")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debug().Err(err).Msg("Websocket ping failed")
				s.close(0, "")
				return
			}
		case <-s.done:
			return
		}
	}
}
