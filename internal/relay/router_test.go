package relay_test

import (
	"errors"
	"testing"

	"github.com/benmeehan/iot-relay/internal/constants"
	"github.com/benmeehan/iot-relay/internal/metrics"
	"github.com/benmeehan/iot-relay/internal/mocks"
	"github.com/benmeehan/iot-relay/internal/relay"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// TestRouter_OnDeviceTelemetry_Broadcast tests delivery of the same payload to each viewer and nobody else.
func TestRouter_OnDeviceTelemetry_Broadcast(t *testing.T) {
	r := relay.NewRegistry()
	device := &mocks.RecordingPeer{}
	v1, v2, v3 := &mocks.RecordingPeer{}, &mocks.RecordingPeer{}, &mocks.RecordingPeer{}
	r.Register("d", device)
	r.Register("v1", v1)
	r.Register("v2", v2)
	r.Register("v3", v3)
	_, _ = r.MarkAsDevice("d")

	router := relay.NewRouter(r, metrics.NoopRecorder{}, zerolog.Nop())
	payload := []byte(`{"envTemp":21.5,"envHum":40}`)

	d := router.OnDeviceTelemetry(payload)

	assert.Equal(t, relay.Delivery{Attempted: 3, Failed: 0}, d)
	for _, v := range []*mocks.RecordingPeer{v1, v2, v3} {
		sent := v.Sent()
		if assert.Len(t, sent, 1) {
			assert.Equal(t, constants.EventUpdate, sent[0].Event)
			assert.Equal(t, payload, sent[0].Payload)
		}
	}
	assert.Empty(t, device.Sent())
}

// TestRouter_OnDeviceTelemetry_IsolatesFailures tests that one failing viewer does not stop the others.
func TestRouter_OnDeviceTelemetry_IsolatesFailures(t *testing.T) {
	r := relay.NewRegistry()
	good1, good2 := &mocks.RecordingPeer{}, &mocks.RecordingPeer{}
	bad := new(mocks.MockPeer)
	bad.On("Send", constants.EventUpdate, mock.Anything).Return(relay.ErrSendQueueFull)
	r.Register("a", good1)
	r.Register("b", bad)
	r.Register("c", good2)

	recorder := new(mocks.MockRecorder)
	recorder.On("MessageSent", constants.EventUpdate).Twice()
	recorder.On("SendFailed", constants.EventUpdate).Once()

	router := relay.NewRouter(r, recorder, zerolog.Nop())

	d := router.OnDeviceTelemetry([]byte(`{"temp":1}`))

	assert.Equal(t, relay.Delivery{Attempted: 3, Failed: 1}, d)
	assert.Len(t, good1.Sent(), 1)
	assert.Len(t, good2.Sent(), 1)
	bad.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

// TestRouter_OnDeviceTelemetry_NoViewers tests a broadcast with nobody listening.
func TestRouter_OnDeviceTelemetry_NoViewers(t *testing.T) {
	router := relay.NewRouter(relay.NewRegistry(), metrics.NoopRecorder{}, zerolog.Nop())

	d := router.OnDeviceTelemetry([]byte(`{}`))

	assert.Equal(t, relay.Delivery{}, d)
}

// TestRouter_OnViewerCommand_Forward tests forwarding a command to the device only.
func TestRouter_OnViewerCommand_Forward(t *testing.T) {
	r := relay.NewRegistry()
	device, viewer := &mocks.RecordingPeer{}, &mocks.RecordingPeer{}
	r.Register("d", device)
	r.Register("v", viewer)
	_, _ = r.MarkAsDevice("d")

	router := relay.NewRouter(r, metrics.NoopRecorder{}, zerolog.Nop())
	payload := []byte(`{"device":"fan"}`)

	assert.True(t, router.OnViewerCommand(payload))

	sent := device.Sent()
	if assert.Len(t, sent, 1) {
		assert.Equal(t, constants.EventControl, sent[0].Event)
		assert.Equal(t, payload, sent[0].Payload)
	}
	assert.Empty(t, viewer.Sent())
}

// TestRouter_OnViewerCommand_NoDevice tests that a command with no device performs zero sends.
func TestRouter_OnViewerCommand_NoDevice(t *testing.T) {
	r := relay.NewRegistry()
	viewer := new(mocks.MockPeer)
	r.Register("v", viewer)

	recorder := new(mocks.MockRecorder)
	recorder.On("Dropped", constants.DropNoDevice).Once()

	router := relay.NewRouter(r, recorder, zerolog.Nop())

	assert.NotPanics(t, func() {
		assert.False(t, router.OnViewerCommand([]byte(`{"device":"fan"}`)))
	})
	viewer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	recorder.AssertExpectations(t)
}

// TestRouter_OnViewerCommand_SendFailure tests that a failed forward is swallowed.
func TestRouter_OnViewerCommand_SendFailure(t *testing.T) {
	r := relay.NewRegistry()
	device := &mocks.RecordingPeer{Err: errors.New("connection reset")}
	r.Register("d", device)
	_, _ = r.MarkAsDevice("d")

	router := relay.NewRouter(r, metrics.NoopRecorder{}, zerolog.Nop())

	assert.False(t, router.OnViewerCommand([]byte(`{"device":"door"}`)))
}
