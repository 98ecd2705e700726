// Package netadapter implements the connection and message layer described
// in §4.9: a framer state machine over TCP, deserializer and serializer
// worker pools, a per-connection bidirectional route, and idempotent
// connection teardown. Grounded on the teacher's netadapter package
// (netadapter.go's NetAdapter/RouterInitializer/onConnectedHandler shape,
// router/route.go's Route), generalized from the teacher's gRPC transport
// down to the spec's raw length-prefixed TCP framing (wire/message.go
// already implements the frame codec this package drives).
package netadapter

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/epic-project/epicd/params"
	"github.com/epic-project/epicd/util/panics"
)

// receiveBufferSize sizes each connection's buffered reader. Frames larger
// than this still decode correctly — io.ReadFull pulls directly from the
// socket once the internal buffer is drained — this only bounds how much
// gets read ahead speculatively while scanning for magic.
const receiveBufferSize = 64 * 1024

// RouterInitializer builds a fresh Router for a newly-established
// connection, wiring together whatever routes the caller's protocol
// handlers need without NetAdapter knowing anything about message
// semantics.
type RouterInitializer func() (*Router, error)

// OnConnectedHandler is notified of every new connection (inbound or
// outbound) once it has been registered.
type OnConnectedHandler func(connection *Connection)

// DefaultPoolSize is used for the serialize/deserialize pools when the
// caller does not specify one (§5: "sized at startup").
const DefaultPoolSize = 2

// NetAdapter owns every live Connection for one node: it accepts inbound
// connections, dials outbound ones, runs the shared serialize/deserialize
// pools, and fans decoded messages into each connection's Router.
type NetAdapter struct {
	id       *ID
	magic    uint32
	listener net.Listener

	routerInitializer RouterInitializer
	onConnected       OnConnectedHandler

	deserializers *deserializePool
	serializers   *serializePool

	mu          sync.RWMutex
	connections map[*Connection]*Router
	byID        map[ID]*Connection

	inboundCount  int64
	outboundCount int64

	stopped int32
}

// NewNetAdapter returns a NetAdapter for the given network parameters. Call
// SetRouterInitializer before Start.
func NewNetAdapter(p *params.Params, poolSize int) (*NetAdapter, error) {
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}
	if poolSize < 1 {
		poolSize = DefaultPoolSize
	}
	return &NetAdapter{
		id:            id,
		magic:         uint32(p.Net),
		deserializers: newDeserializePool(poolSize),
		serializers:   newSerializePool(poolSize),
		connections:   make(map[*Connection]*Router),
		byID:          make(map[ID]*Connection),
	}, nil
}

// SetRouterInitializer sets the function used to build a Router for each
// new connection. Must be called before Start.
func (na *NetAdapter) SetRouterInitializer(init RouterInitializer) {
	na.routerInitializer = init
}

// SetOnConnectedHandler sets the function notified of every newly
// registered connection.
func (na *NetAdapter) SetOnConnectedHandler(handler OnConnectedHandler) {
	na.onConnected = handler
}

// ID returns this node's own peer ID.
func (na *NetAdapter) ID() *ID {
	return na.id
}

// Start begins listening for inbound connections on listenAddr.
func (na *NetAdapter) Start(listenAddr string) error {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", listenAddr)
	}
	na.listener = listener

	spawn(func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if atomic.LoadInt32(&na.stopped) == 1 {
					return
				}
				log.Warnf("failed to accept connection: %s", err)
				continue
			}
			atomic.AddInt64(&na.inboundCount, 1)
			na.handleConnection(conn, false)
		}
	})
	return nil
}

// Connect dials addr and registers the resulting outbound connection.
func (na *NetAdapter) Connect(addr string) (*Connection, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", addr)
	}
	atomic.AddInt64(&na.outboundCount, 1)
	return na.handleConnection(conn, true), nil
}

func (na *NetAdapter) handleConnection(conn net.Conn, outbound bool) *Connection {
	connection := newConnection(conn, outbound)

	router, err := na.routerInitializer()
	if err != nil {
		log.Warnf("failed to initialize router for %s: %s", connection, err)
		connection.Release()
		if outbound {
			atomic.AddInt64(&na.outboundCount, -1)
		} else {
			atomic.AddInt64(&na.inboundCount, -1)
		}
		return nil
	}
	connection.SetOnDisconnectedHandler(func() {
		na.unregisterConnection(connection)
		if outbound {
			atomic.AddInt64(&na.outboundCount, -1)
		} else {
			atomic.AddInt64(&na.inboundCount, -1)
		}
		router.Close()
	})
	router.SetOnIDReceivedHandler(func(id *ID) {
		connection.SetID(id)
		na.registerConnection(connection, router, *id)
		if na.onConnected != nil {
			na.onConnected(connection)
		}
	})

	writeCh := make(chan []byte, defaultRouteCapacity)
	spawn(func() { na.runReceiveLoop(connection, router) })
	spawn(func() { na.runSendLoop(connection, router, writeCh) })
	spawn(func() { na.runWriteLoop(connection, writeCh) })

	return connection
}

func (na *NetAdapter) runReceiveLoop(connection *Connection, router *Router) {
	defer panics.HandlePanic(log, "netadapter-receive", nil)
	reader := bufio.NewReaderSize(connRead{connection}, receiveBufferSize)

	for connection.IsValid() {
		frame, err := readFrame(reader, na.magic)
		if err == errFrameDropped {
			continue
		}
		if err != nil {
			log.Debugf("failed to read from %s: %s", connection, err)
			break
		}
		na.deserializers.submit(frame, router)
	}
	connection.Release()
}

func (na *NetAdapter) runSendLoop(connection *Connection, router *Router, writeCh chan []byte) {
	defer panics.HandlePanic(log, "netadapter-send", nil)
	for connection.IsValid() {
		message, err := router.TakeOutputMessage()
		if err != nil {
			break
		}
		na.serializers.submit(message, na.magic, writeCh)
	}
	connection.Release()
	close(writeCh)
}

func (na *NetAdapter) runWriteLoop(connection *Connection, writeCh chan []byte) {
	defer panics.HandlePanic(log, "netadapter-write", nil)
	for frame := range writeCh {
		if err := connection.writeRaw(frame); err != nil {
			log.Debugf("failed to write to %s: %s", connection, err)
			connection.Release()
			return
		}
	}
}

func (na *NetAdapter) registerConnection(connection *Connection, router *Router, id ID) {
	na.mu.Lock()
	defer na.mu.Unlock()
	na.connections[connection] = router
	na.byID[id] = connection
}

func (na *NetAdapter) unregisterConnection(connection *Connection) {
	na.mu.Lock()
	defer na.mu.Unlock()
	delete(na.connections, connection)
	if id := connection.ID(); id != nil {
		delete(na.byID, *id)
	}
}

// Broadcast enqueues message onto every currently-registered connection's
// outgoing route.
func (na *NetAdapter) Broadcast(message Message) {
	na.mu.RLock()
	defer na.mu.RUnlock()
	for _, router := range na.connections {
		if err := router.OutgoingRoute().Enqueue(message); err != nil {
			log.Debugf("failed to enqueue broadcast message: %s", err)
		}
	}
}

// Connections returns every currently-registered connection, for callers
// that need to enumerate peers (e.g. answering a GET_ADDR).
func (na *NetAdapter) Connections() []*Connection {
	na.mu.RLock()
	defer na.mu.RUnlock()
	conns := make([]*Connection, 0, len(na.connections))
	for c := range na.connections {
		conns = append(conns, c)
	}
	return conns
}

// ConnectionByID returns the connection registered under id, if any.
func (na *NetAdapter) ConnectionByID(id ID) (*Connection, bool) {
	na.mu.RLock()
	defer na.mu.RUnlock()
	c, ok := na.byID[id]
	return c, ok
}

// Counts returns the current inbound and outbound connection counts.
func (na *NetAdapter) Counts() (inbound, outbound int64) {
	return atomic.LoadInt64(&na.inboundCount), atomic.LoadInt64(&na.outboundCount)
}

// Stop closes the listener and every registered connection. Only the first
// call does so; every later call returns an error and does nothing else.
func (na *NetAdapter) Stop() error {
	if !atomic.CompareAndSwapInt32(&na.stopped, 0, 1) {
		return errors.New("net adapter stopped more than once")
	}

	var listenErr error
	if na.listener != nil {
		listenErr = na.listener.Close()
	}

	na.mu.RLock()
	connections := make([]*Connection, 0, len(na.connections))
	for c := range na.connections {
		connections = append(connections, c)
	}
	na.mu.RUnlock()

	for _, c := range connections {
		c.Release()
	}
	return listenErr
}

// connRead adapts Connection to io.Reader for the receive loop's buffered
// reader, without exposing the underlying net.Conn to the rest of the
// package.
type connRead struct{ *Connection }

func (c connRead) Read(p []byte) (int, error) {
	return c.conn.Read(p)
}

func spawn(fn func()) {
	go func() {
		defer panics.HandlePanic(log, "netadapter", nil)
		fn()
	}()
}
