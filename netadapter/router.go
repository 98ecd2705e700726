package netadapter

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/epic-project/epicd/wire"
)

// Router weaves together a connection's per-command inbound routes and its
// single outbound route, without exposing anything about the underlying
// net.Conn. Grounded on the teacher's netadapter.Router (referenced but not
// itself present in the retrieved pack) as implied by netadapter.go's
// RouterInitializer/RouteInputMessage/TakeOutputMessage calls, built here
// directly on top of Route.
type Router struct {
	mu             sync.RWMutex
	incomingRoutes map[wire.MessageCommand]*Route
	outgoingRoute  *Route

	onIDReceived func(id *ID)
}

// NewRouter returns an empty Router with an open outgoing route.
func NewRouter() *Router {
	return &Router{
		incomingRoutes: make(map[wire.MessageCommand]*Route),
		outgoingRoute:  NewRoute(),
	}
}

// AddRoute registers a fresh incoming Route for the given commands and
// returns it. A command may be routed to only one Route at a time.
func (r *Router) AddRoute(commands []wire.MessageCommand) (*Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	route := NewRoute()
	for _, cmd := range commands {
		if _, ok := r.incomingRoutes[cmd]; ok {
			return nil, errors.Errorf("command %s is already routed", cmd)
		}
		r.incomingRoutes[cmd] = route
	}
	return route, nil
}

// OutgoingRoute returns the Router's single outgoing Route, onto which
// handlers enqueue messages destined for the wire.
func (r *Router) OutgoingRoute() *Route {
	return r.outgoingRoute
}

// RouteInputMessage dispatches a message decoded off the wire to whichever
// incoming Route was registered for its command. A message with no
// registered route is dropped (§7: deserialization/dispatch failures drop
// the frame, never the connection).
func (r *Router) RouteInputMessage(message wire.Message) error {
	r.mu.RLock()
	route, ok := r.incomingRoutes[message.Command()]
	r.mu.RUnlock()
	if !ok {
		log.Debugf("dropping %s message: no route registered for it", message.Command())
		return nil
	}
	return route.Enqueue(message)
}

// TakeOutputMessage blocks until a handler enqueues something onto the
// outgoing route, for the send loop to flush to the wire.
func (r *Router) TakeOutputMessage() (wire.Message, error) {
	return r.outgoingRoute.Dequeue()
}

// SetOnIDReceivedHandler arranges for fn to run once this router's
// connection completes the VERSION handshake and learns the remote ID.
func (r *Router) SetOnIDReceivedHandler(fn func(id *ID)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onIDReceived = fn
}

// NotifyIDReceived should be called by a protocol handler once it has
// decoded the remote peer's ID off the VERSION handshake, completing
// registration of this router's connection with the owning NetAdapter.
func (r *Router) NotifyIDReceived(id *ID) {
	r.notifyIDReceived(id)
}

func (r *Router) notifyIDReceived(id *ID) {
	r.mu.RLock()
	fn := r.onIDReceived
	r.mu.RUnlock()
	if fn != nil {
		fn(id)
	}
}

// Close closes every route owned by this router, incoming and outgoing.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[*Route]bool)
	for _, route := range r.incomingRoutes {
		if !seen[route] {
			seen[route] = true
			route.Close()
		}
	}
	return r.outgoingRoute.Close()
}
