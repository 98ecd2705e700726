package netadapter

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/epic-project/epicd/wire"
)

// defaultRouteCapacity bounds how many decoded messages a Route buffers
// before Enqueue blocks. Grounded on the teacher's router.defaultMaxMessages.
const defaultRouteCapacity = 100

// ErrTimeout signals that a DequeueWithTimeout call timed out.
var ErrTimeout = errors.New("timeout expired")

// ErrRouteClosed indicates that a Route was closed while reading or writing.
var ErrRouteClosed = errors.New("route is closed")

// Route is a single-command buffered pipe of decoded wire.Message values,
// one per (connection, command) pair. Grounded directly on the teacher's
// netadapter/router.Route.
type Route struct {
	channel chan wire.Message

	closeLock sync.Mutex
	closed    bool
}

// NewRoute returns a new, open Route with the default capacity.
func NewRoute() *Route {
	return &Route{channel: make(chan wire.Message, defaultRouteCapacity)}
}

// Enqueue pushes message onto the route. It returns ErrRouteClosed if the
// route has already been closed, and blocks while the route is at
// capacity. The deserializer pool calls it directly (through
// Router.RouteInputMessage), so a full route stalls that pool worker until
// the route's consumer dequeues.
func (r *Route) Enqueue(message wire.Message) error {
	r.closeLock.Lock()
	defer r.closeLock.Unlock()
	if r.closed {
		return errors.WithStack(ErrRouteClosed)
	}
	r.channel <- message
	return nil
}

// Dequeue blocks until a message is available or the route is closed.
func (r *Route) Dequeue() (wire.Message, error) {
	message, isOpen := <-r.channel
	if !isOpen {
		return nil, errors.WithStack(ErrRouteClosed)
	}
	return message, nil
}

// DequeueWithTimeout is Dequeue bounded by timeout.
func (r *Route) DequeueWithTimeout(timeout time.Duration) (wire.Message, error) {
	select {
	case <-time.After(timeout):
		return nil, errors.Wrapf(ErrTimeout, "got timeout after %s", timeout)
	case message, isOpen := <-r.channel:
		if !isOpen {
			return nil, errors.WithStack(ErrRouteClosed)
		}
		return message, nil
	}
}

// Close closes the route. Safe to call more than once.
func (r *Route) Close() error {
	r.closeLock.Lock()
	defer r.closeLock.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.channel)
	return nil
}
