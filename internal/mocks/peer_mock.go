package mocks

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockPeer is a mock implementation of the relay.Peer interface
type MockPeer struct {
	mock.Mock
}

func (m *MockPeer) Send(event string, payload []byte) error {
	args := m.Called(event, payload)
	return args.Error(0)
}

// SentMessage is one message captured by RecordingPeer.
type SentMessage struct {
	Event   string
	Payload []byte
}

// RecordingPeer records every message it is asked to send. Err, when set, is
// returned from Send and the message is not recorded.
type RecordingPeer struct {
	mu   sync.Mutex
	sent []SentMessage
	Err  error
}

func (p *RecordingPeer) Send(event string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.sent = append(p.sent, SentMessage{Event: event, Payload: append([]byte(nil), payload...)})
	return nil
}

// Sent returns a copy of the recorded messages.
func (p *RecordingPeer) Sent() []SentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SentMessage(nil), p.sent...)
}

// DeviceOnlyRecordingPeer is a RecordingPeer that can only act as the device.
type DeviceOnlyRecordingPeer struct {
	RecordingPeer
}

func (p *DeviceOnlyRecordingPeer) DeviceOnly() {}
