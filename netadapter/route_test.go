package netadapter

import (
	"errors"
	"testing"
	"time"

	"github.com/epic-project/epicd/wire"
)

func TestRouteEnqueueDequeue(t *testing.T) {
	r := NewRoute()
	ping := wire.NewMsgPing(9)
	if err := r.Enqueue(ping); err != nil {
		t.Fatalf("Enqueue: unexpected error: %v", err)
	}
	got, err := r.Dequeue()
	if err != nil {
		t.Fatalf("Dequeue: unexpected error: %v", err)
	}
	if got != ping {
		t.Fatal("Dequeue: did not return the enqueued message")
	}
}

func TestRouteDequeueWithTimeout(t *testing.T) {
	r := NewRoute()
	if _, err := r.DequeueWithTimeout(10 * time.Millisecond); err == nil {
		t.Fatal("DequeueWithTimeout: expected a timeout error on an empty route")
	}
}

func TestRouteEnqueueAfterCloseFails(t *testing.T) {
	r := NewRoute()
	if err := r.Close(); err != nil {
		t.Fatalf("Close: unexpected error: %v", err)
	}
	if err := r.Enqueue(wire.NewMsgPing(1)); !errors.Is(err, ErrRouteClosed) {
		t.Fatalf("Enqueue after Close: got %v, want ErrRouteClosed", err)
	}
}

func TestRouteCloseIsIdempotent(t *testing.T) {
	r := NewRoute()
	if err := r.Close(); err != nil {
		t.Fatalf("first Close: unexpected error: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: unexpected error: %v", err)
	}
}
