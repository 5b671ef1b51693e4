package relay_test

import (
	"testing"

	"github.com/benmeehan/iot-relay/internal/mocks"
	"github.com/benmeehan/iot-relay/internal/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viewerIDs(r *relay.Registry) []relay.ConnID {
	ids := []relay.ConnID{}
	for _, c := range r.AllViewers() {
		ids = append(ids, c.ID)
	}
	return ids
}

// TestRegistry_Register tests that new connections start unidentified and count as viewers.
func TestRegistry_Register(t *testing.T) {
	r := relay.NewRegistry()

	conn := r.Register("a", &mocks.RecordingPeer{})

	assert.Equal(t, relay.RoleUnidentified, conn.Role)
	assert.Nil(t, r.CurrentDevice())
	assert.Equal(t, []relay.ConnID{"a"}, viewerIDs(r))
	assert.Equal(t, 1, r.Len())
}

// TestRegistry_MarkAsDevice tests that the device is excluded from the viewer set.
func TestRegistry_MarkAsDevice(t *testing.T) {
	r := relay.NewRegistry()
	r.Register("d", &mocks.RecordingPeer{})
	r.Register("v", &mocks.RecordingPeer{})

	previous, err := r.MarkAsDevice("d")

	require.NoError(t, err)
	assert.Nil(t, previous)
	require.NotNil(t, r.CurrentDevice())
	assert.Equal(t, relay.ConnID("d"), r.CurrentDevice().ID)
	assert.Equal(t, relay.RoleDevice, r.CurrentDevice().Role)
	assert.Equal(t, []relay.ConnID{"v"}, viewerIDs(r))
}

// TestRegistry_MarkAsDevice_LastIdentifyWins tests that a second identify replaces the device.
func TestRegistry_MarkAsDevice_LastIdentifyWins(t *testing.T) {
	r := relay.NewRegistry()
	r.Register("d1", &mocks.RecordingPeer{})
	r.Register("d2", &mocks.RecordingPeer{})
	_, err := r.MarkAsDevice("d1")
	require.NoError(t, err)

	previous, err := r.MarkAsDevice("d2")

	require.NoError(t, err)
	require.NotNil(t, previous)
	assert.Equal(t, relay.ConnID("d1"), previous.ID)
	assert.Equal(t, relay.RoleViewer, previous.Role)
	assert.Equal(t, relay.ConnID("d2"), r.CurrentDevice().ID)
	// the replaced device stays connected
	_, ok := r.Get("d1")
	assert.True(t, ok)
	assert.Equal(t, []relay.ConnID{"d1"}, viewerIDs(r))
}

// TestRegistry_MarkAsDevice_Twice tests that re-identifying the same connection is harmless.
func TestRegistry_MarkAsDevice_Twice(t *testing.T) {
	r := relay.NewRegistry()
	r.Register("d", &mocks.RecordingPeer{})

	_, err := r.MarkAsDevice("d")
	require.NoError(t, err)
	previous, err := r.MarkAsDevice("d")

	require.NoError(t, err)
	assert.Nil(t, previous)
	assert.Equal(t, relay.ConnID("d"), r.CurrentDevice().ID)
}

// TestRegistry_MarkAsDevice_Unknown tests identify from an id that never connected.
func TestRegistry_MarkAsDevice_Unknown(t *testing.T) {
	r := relay.NewRegistry()

	_, err := r.MarkAsDevice("ghost")

	assert.ErrorIs(t, err, relay.ErrUnknownConnection)
	assert.Nil(t, r.CurrentDevice())
}

// TestRegistry_MarkAsViewer tests the unidentified to viewer transition.
func TestRegistry_MarkAsViewer(t *testing.T) {
	r := relay.NewRegistry()
	r.Register("v", &mocks.RecordingPeer{})
	r.Register("d", &mocks.RecordingPeer{})
	_, _ = r.MarkAsDevice("d")

	assert.NoError(t, r.MarkAsViewer("v"))
	assert.NoError(t, r.MarkAsViewer("d"))
	assert.ErrorIs(t, r.MarkAsViewer("ghost"), relay.ErrUnknownConnection)

	v, _ := r.Get("v")
	assert.Equal(t, relay.RoleViewer, v.Role)
	d, _ := r.Get("d")
	assert.Equal(t, relay.RoleDevice, d.Role)
}

// TestRegistry_Remove tests removal of viewers and of the device.
func TestRegistry_Remove(t *testing.T) {
	r := relay.NewRegistry()
	r.Register("d", &mocks.RecordingPeer{})
	r.Register("v", &mocks.RecordingPeer{})
	_, _ = r.MarkAsDevice("d")

	conn, ok := r.Remove("v")
	require.True(t, ok)
	assert.Equal(t, relay.RoleDisconnected, conn.Role)
	assert.Empty(t, viewerIDs(r))

	_, ok = r.Remove("d")
	require.True(t, ok)
	assert.Nil(t, r.CurrentDevice())
	assert.Equal(t, 0, r.Len())
}

// TestRegistry_Remove_Idempotent tests that removing twice equals removing once.
func TestRegistry_Remove_Idempotent(t *testing.T) {
	r := relay.NewRegistry()
	r.Register("d", &mocks.RecordingPeer{})
	r.Register("v", &mocks.RecordingPeer{})
	_, _ = r.MarkAsDevice("d")

	_, first := r.Remove("d")
	_, second := r.Remove("d")

	assert.True(t, first)
	assert.False(t, second)
	assert.Nil(t, r.CurrentDevice())
	assert.Equal(t, []relay.ConnID{"v"}, viewerIDs(r))

	_, unknown := r.Remove("never-seen")
	assert.False(t, unknown)
}

// TestRegistry_Register_Reconnect tests that re-registering the device id clears the slot.
func TestRegistry_Register_Reconnect(t *testing.T) {
	r := relay.NewRegistry()
	r.Register("d", &mocks.RecordingPeer{})
	_, _ = r.MarkAsDevice("d")

	conn := r.Register("d", &mocks.RecordingPeer{})

	assert.Equal(t, relay.RoleUnidentified, conn.Role)
	assert.Nil(t, r.CurrentDevice())
	assert.Equal(t, 1, r.Len())
}

// TestRegistry_DeviceOnly tests that device-only connections never become viewers and wait on standby.
func TestRegistry_DeviceOnly(t *testing.T) {
	r := relay.NewRegistry()
	r.Register("mqtt:relay", &mocks.DeviceOnlyRecordingPeer{})
	r.Register("v", &mocks.RecordingPeer{})

	assert.Equal(t, []relay.ConnID{"v"}, viewerIDs(r))
	require.NotNil(t, r.Standby())
	assert.Equal(t, relay.ConnID("mqtt:relay"), r.Standby().ID)

	_, err := r.MarkAsDevice("mqtt:relay")
	require.NoError(t, err)
	assert.Nil(t, r.Standby())

	r.Register("ws", &mocks.RecordingPeer{})
	previous, err := r.MarkAsDevice("ws")

	require.NoError(t, err)
	require.NotNil(t, previous)
	assert.Equal(t, relay.RoleUnidentified, previous.Role)
	assert.Equal(t, []relay.ConnID{"v"}, viewerIDs(r))
	require.NotNil(t, r.Standby())
	assert.Equal(t, relay.ConnID("mqtt:relay"), r.Standby().ID)
}
