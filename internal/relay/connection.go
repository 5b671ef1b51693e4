package relay

import (
	"errors"
	"time"
)

// ConnID uniquely identifies one network peer for the lifetime of its connection.
type ConnID string

// Role is the tagged state of a connection.
type Role int

const (
	RoleUnidentified Role = iota
	RoleDevice
	RoleViewer
	RoleDisconnected
)

func (r Role) String() string {
	switch r {
	case RoleUnidentified:
		return "unidentified"
	case RoleDevice:
		return "device"
	case RoleViewer:
		return "viewer"
	case RoleDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

var (
	// ErrUnknownConnection is returned for events naming a connection that never connected
	// or has already disconnected.
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrSendQueueFull is returned by a Peer whose outbound queue cannot take another message.
	ErrSendQueueFull = errors.New("send queue full")
	// ErrConnectionClosed is returned by a Peer that is already torn down.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrMalformedPayload marks a payload that is not valid JSON.
	ErrMalformedPayload = errors.New("malformed payload")
)

// Peer is the send handle a transport hands to the relay when a connection is
// established. Send must not block on the network.
type Peer interface {
	Send(event string, payload []byte) error
}

// DeviceOnlyPeer is a Peer that can never be a viewer, such as a bridge to an
// MQTT device. It receives no broadcasts and waits on standby when another
// connection holds the device slot.
type DeviceOnlyPeer interface {
	Peer
	DeviceOnly()
}

func isDeviceOnly(conn *Connection) bool {
	_, ok := conn.Peer.(DeviceOnlyPeer)
	return ok
}

// Connection is the relay's view of one network peer.
type Connection struct {
	ID          ConnID
	Role        Role
	Peer        Peer
	ConnectedAt time.Time
}
