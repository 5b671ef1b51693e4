package mocks

import (
	"github.com/benmeehan/iot-relay/internal/relay"
	"github.com/stretchr/testify/mock"
)

// MockEventHandler is a mock implementation of the relay.EventHandler interface
type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) Connected(id relay.ConnID, peer relay.Peer) {
	m.Called(id, peer)
}

func (m *MockEventHandler) Disconnected(id relay.ConnID) {
	m.Called(id)
}

func (m *MockEventHandler) DeviceIdentify(id relay.ConnID) {
	m.Called(id)
}

func (m *MockEventHandler) Telemetry(id relay.ConnID, payload []byte) {
	m.Called(id, payload)
}

func (m *MockEventHandler) ControlCommand(id relay.ConnID, payload []byte) {
	m.Called(id, payload)
}
