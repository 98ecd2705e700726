package netadapter

import (
	"testing"
	"time"

	"github.com/epic-project/epicd/params"
	"github.com/epic-project/epicd/wire"
)

// TestEndToEndPingDelivery exercises the full pipeline: TCP accept, the
// framer state machine, the deserializer pool, and router dispatch.
func TestEndToEndPingDelivery(t *testing.T) {
	server, err := NewNetAdapter(&params.SimNetParams, 1)
	if err != nil {
		t.Fatalf("NewNetAdapter: unexpected error: %v", err)
	}
	received := make(chan *wire.MsgPing, 1)
	server.SetRouterInitializer(func() (*Router, error) {
		r := NewRouter()
		route, err := r.AddRoute([]wire.MessageCommand{wire.CmdPing})
		if err != nil {
			return nil, err
		}
		go func() {
			msg, err := route.Dequeue()
			if err != nil {
				return
			}
			received <- msg.(*wire.MsgPing)
		}()
		return r, nil
	})
	if err := server.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: unexpected error: %v", err)
	}
	defer server.Stop()

	addr := server.listener.Addr().String()

	client, err := NewNetAdapter(&params.SimNetParams, 1)
	if err != nil {
		t.Fatalf("NewNetAdapter: unexpected error: %v", err)
	}
	var clientRouter *Router
	client.SetRouterInitializer(func() (*Router, error) {
		clientRouter = NewRouter()
		return clientRouter, nil
	})
	defer client.Stop()

	if _, err := client.Connect(addr); err != nil {
		t.Fatalf("Connect: unexpected error: %v", err)
	}

	if err := clientRouter.OutgoingRoute().Enqueue(wire.NewMsgPing(99)); err != nil {
		t.Fatalf("Enqueue: unexpected error: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Nonce != 99 {
			t.Fatalf("received nonce %d, want 99", msg.Nonce)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the ping to arrive at the server")
	}
}
