package netadapter

import (
	"net"
	"testing"
)

func TestConnectionReleaseIsIdempotent(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	c := newConnection(client, true)

	fired := 0
	c.SetOnDisconnectedHandler(func() { fired++ })

	if err := c.Release(); err != nil {
		t.Fatalf("first Release: unexpected error: %v", err)
	}
	if err := c.Release(); err != nil {
		t.Fatalf("second Release: unexpected error: %v", err)
	}
	if fired != 1 {
		t.Fatalf("onDisconnected fired %d times, want exactly 1", fired)
	}
	if c.IsValid() {
		t.Fatal("connection should be invalid after Release")
	}
}

func TestConnectionWriteRawAfterReleaseFails(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	c := newConnection(client, false)
	c.Release()

	if err := c.writeRaw([]byte("hi")); err == nil {
		t.Fatal("writeRaw: expected an error after Release")
	}
}

func TestConnectionIsOutbound(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	c := newConnection(client, true)
	if !c.IsOutbound() {
		t.Fatal("IsOutbound: expected true for a dialed connection")
	}
}
