package models

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Envelope is one websocket text frame: an event name and its JSON data.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeEnvelope parses a frame. An envelope without an event name is rejected.
// A missing data field decodes as JSON null.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, ErrMissingEvent
	}
	if len(env.Data) == 0 {
		env.Data = json.RawMessage("null")
	}
	return env, nil
}

// EncodeEnvelope builds a frame around data without re-encoding it, so the
// payload reaches the peer byte for byte.
func EncodeEnvelope(event string, data []byte) ([]byte, error) {
	name, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(name) + len(data) + 20)
	buf.WriteString(`{"event":`)
	buf.Write(name)
	if len(data) > 0 {
		buf.WriteString(`,"data":`)
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
