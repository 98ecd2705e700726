package netadapter

import (
	"errors"
	"testing"
	"time"

	"github.com/epic-project/epicd/wire"
)

func TestRouterDispatchesByCommand(t *testing.T) {
	r := NewRouter()
	pingRoute, err := r.AddRoute([]wire.MessageCommand{wire.CmdPing})
	if err != nil {
		t.Fatalf("AddRoute: unexpected error: %v", err)
	}

	ping := wire.NewMsgPing(5)
	if err := r.RouteInputMessage(ping); err != nil {
		t.Fatalf("RouteInputMessage: unexpected error: %v", err)
	}

	got, err := pingRoute.DequeueWithTimeout(time.Second)
	if err != nil {
		t.Fatalf("Dequeue: unexpected error: %v", err)
	}
	if got != ping {
		t.Fatal("ping was not delivered to the route registered for CmdPing")
	}
}

func TestRouterDropsUnroutedCommand(t *testing.T) {
	r := NewRouter()
	if err := r.RouteInputMessage(wire.NewMsgPong(1)); err != nil {
		t.Fatalf("RouteInputMessage: unexpected error for an unrouted command: %v", err)
	}
}

func TestRouterRejectsDoubleRoutedCommand(t *testing.T) {
	r := NewRouter()
	if _, err := r.AddRoute([]wire.MessageCommand{wire.CmdPing}); err != nil {
		t.Fatalf("first AddRoute: unexpected error: %v", err)
	}
	if _, err := r.AddRoute([]wire.MessageCommand{wire.CmdPing}); err == nil {
		t.Fatal("AddRoute: expected an error when a command is routed twice")
	}
}

func TestRouterOutgoingRoute(t *testing.T) {
	r := NewRouter()
	ping := wire.NewMsgPing(3)
	if err := r.OutgoingRoute().Enqueue(ping); err != nil {
		t.Fatalf("Enqueue: unexpected error: %v", err)
	}
	got, err := r.TakeOutputMessage()
	if err != nil {
		t.Fatalf("TakeOutputMessage: unexpected error: %v", err)
	}
	if got != ping {
		t.Fatal("TakeOutputMessage did not return the enqueued message")
	}
}

func TestRouterOnIDReceived(t *testing.T) {
	r := NewRouter()
	var got *ID
	r.SetOnIDReceivedHandler(func(id *ID) { got = id })

	id, err := GenerateID()
	if err != nil {
		t.Fatalf("GenerateID: unexpected error: %v", err)
	}
	r.notifyIDReceived(id)
	if got != id {
		t.Fatal("onIDReceived handler was not invoked with the given ID")
	}
}

func TestRouterCloseClosesRoutes(t *testing.T) {
	r := NewRouter()
	pingRoute, err := r.AddRoute([]wire.MessageCommand{wire.CmdPing})
	if err != nil {
		t.Fatalf("AddRoute: unexpected error: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: unexpected error: %v", err)
	}
	if _, err := pingRoute.Dequeue(); !errors.Is(err, ErrRouteClosed) {
		t.Fatalf("Dequeue after router Close: got %v, want ErrRouteClosed", err)
	}
}
