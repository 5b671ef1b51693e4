package relay

import (
	"sort"
	"time"
)

// Registry tracks the current device connection and every other live connection.
// It does no locking of its own; Broker serializes access.
type Registry struct {
	conns  map[ConnID]*Connection
	device *Connection
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[ConnID]*Connection),
	}
}

// Register creates an unidentified entry for id. Registering an id that is
// already present resets it as a fresh connection.
func (r *Registry) Register(id ConnID, peer Peer) *Connection {
	if existing, ok := r.conns[id]; ok && r.device == existing {
		r.device = nil
	}
	conn := &Connection{
		ID:          id,
		Role:        RoleUnidentified,
		Peer:        peer,
		ConnectedAt: time.Now(),
	}
	r.conns[id] = conn
	return conn
}

// Get returns the connection registered under id.
func (r *Registry) Get(id ConnID) (*Connection, bool) {
	conn, ok := r.conns[id]
	return conn, ok
}

// MarkAsDevice puts id in the device slot. A different connection already
// holding the slot is demoted and returned; it stays connected. A device-only
// connection goes back to unidentified, anything else becomes a viewer.
func (r *Registry) MarkAsDevice(id ConnID) (*Connection, error) {
	conn, ok := r.conns[id]
	if !ok {
		return nil, ErrUnknownConnection
	}

	var previous *Connection
	if r.device != nil && r.device != conn {
		previous = r.device
		previous.Role = RoleViewer
		if isDeviceOnly(previous) {
			previous.Role = RoleUnidentified
		}
	}
	conn.Role = RoleDevice
	r.device = conn
	return previous, nil
}

// MarkAsViewer moves an unidentified connection to the viewer role. The device
// keeps its role.
func (r *Registry) MarkAsViewer(id ConnID) error {
	conn, ok := r.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	if conn.Role == RoleUnidentified {
		conn.Role = RoleViewer
	}
	return nil
}

// Remove drops id and clears the device slot when id held it. Removing an
// unknown id is a no-op.
func (r *Registry) Remove(id ConnID) (*Connection, bool) {
	conn, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	if r.device == conn {
		r.device = nil
	}
	conn.Role = RoleDisconnected
	return conn, true
}

// CurrentDevice returns the connection in the device slot, or nil.
func (r *Registry) CurrentDevice() *Connection {
	return r.device
}

// AllViewers returns every registered connection except the device and
// device-only connections, ordered by ID.
func (r *Registry) AllViewers() []*Connection {
	viewers := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		if conn == r.device || isDeviceOnly(conn) {
			continue
		}
		viewers = append(viewers, conn)
	}
	sort.Slice(viewers, func(i, j int) bool { return viewers[i].ID < viewers[j].ID })
	return viewers
}

// Standby returns the device-only connection with the lowest ID that is not
// holding the device slot, or nil.
func (r *Registry) Standby() *Connection {
	var standby *Connection
	for _, conn := range r.conns {
		if conn == r.device || !isDeviceOnly(conn) {
			continue
		}
		if standby == nil || conn.ID < standby.ID {
			standby = conn
		}
	}
	return standby
}

// Len returns the number of registered connections, device included.
func (r *Registry) Len() int {
	return len(r.conns)
}
