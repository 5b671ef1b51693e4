package mocks

import "github.com/stretchr/testify/mock"

// MockRecorder is a mock implementation of the relay.Recorder interface
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) TelemetryReceived()       { m.Called() }
func (m *MockRecorder) CommandReceived()         { m.Called() }
func (m *MockRecorder) MessageSent(event string) { m.Called(event) }
func (m *MockRecorder) SendFailed(event string)  { m.Called(event) }
func (m *MockRecorder) Dropped(reason string)    { m.Called(reason) }
func (m *MockRecorder) SetViewers(n int)         { m.Called(n) }

func (m *MockRecorder) SetDeviceConnected(connected bool) {
	m.Called(connected)
}
