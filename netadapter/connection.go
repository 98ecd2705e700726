package netadapter

import (
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrConnectionClosed is returned by send when the connection has already
// been released.
var ErrConnectionClosed = errors.New("connection is closed")

// Connection wraps one TCP peer connection. Teardown is idempotent: the
// valid flag flips from 1 to 0 exactly once under atomic CAS, and the
// adapter's inbound/outbound counters are decremented exactly once as a
// result, no matter how many goroutines (the receive loop, the send loop,
// the write loop, NetAdapter.Stop) race to tear it down (§4.9).
type Connection struct {
	conn     net.Conn
	outbound bool
	id       *ID

	valid int32 // 1 = usable, 0 = released; guarded by atomic CAS only

	onDisconnected func()
}

func newConnection(conn net.Conn, outbound bool) *Connection {
	return &Connection{
		conn:     conn,
		outbound: outbound,
		valid:    1,
	}
}

// String identifies the connection by its remote address; the peer ID is
// not included.
func (c *Connection) String() string {
	return c.conn.RemoteAddr().String()
}

// Address returns the remote address of this connection.
func (c *Connection) Address() net.Addr {
	return c.conn.RemoteAddr()
}

// IsOutbound reports whether this node dialed the connection (true) or
// accepted it (false).
func (c *Connection) IsOutbound() bool {
	return c.outbound
}

// ID returns the peer ID associated with this connection, or nil before
// the VERSION handshake completes.
func (c *Connection) ID() *ID {
	return c.id
}

// SetID associates a peer ID with this connection, once the handshake
// completes.
func (c *Connection) SetID(id *ID) {
	c.id = id
}

// IsValid reports whether the connection is still usable; false once
// Release has torn it down.
func (c *Connection) IsValid() bool {
	return atomic.LoadInt32(&c.valid) == 1
}

// SetOnDisconnectedHandler arranges for fn to run, at most once, the first
// time this connection is released.
func (c *Connection) SetOnDisconnectedHandler(fn func()) {
	c.onDisconnected = fn
}

// Release idempotently tears the connection down: the first caller to flip
// valid from 1 to 0 closes the socket and fires the disconnect handler;
// every later caller is a no-op. Grounded on the teacher's NetAdapter.Stop
// atomic-CAS-on-a-flag shape (netadapter.go), applied here per-connection
// instead of once per adapter.
func (c *Connection) Release() error {
	if !atomic.CompareAndSwapInt32(&c.valid, 1, 0) {
		return nil
	}
	err := c.conn.Close()
	if c.onDisconnected != nil {
		c.onDisconnected()
	}
	return err
}

// writeRaw flushes an already-encoded frame to the socket in a single
// Write call — the "writev-style flush per message" of §4.9. Encoding
// happens on the serializer pool (serializer.go); this is the one step
// that must run on the connection's own IO goroutine so that per-peer wire
// order matches router dequeue order.
func (c *Connection) writeRaw(frame []byte) error {
	if !c.IsValid() {
		return errors.WithStack(ErrConnectionClosed)
	}
	_, err := c.conn.Write(frame)
	return err
}
