package protocol

import (
	"net"
	"time"

	"github.com/epic-project/epicd/blockdag"
	"github.com/epic-project/epicd/mempool"
	"github.com/epic-project/epicd/netadapter"
	"github.com/epic-project/epicd/wire"
)

// handshake waits for the peer's VERSION, replies with VERSION_ACK, and
// registers the connection under the peer's advertised ID. It then drains
// one VERSION_ACK of its own so a late-arriving ack never blocks the
// deserializer pool.
func (m *Manager) handshake(router *netadapter.Router, versionRoute, ackRoute *netadapter.Route) {
	message, err := versionRoute.Dequeue()
	if err != nil {
		return
	}
	version := message.(*wire.MsgVersion)
	peerID := netadapter.ID(version.PeerID)
	log.Infof("received version from peer %s (protocol %d, height %d)", peerID.String(),
		version.ProtocolVersion, version.BestHeight)

	if err := router.OutgoingRoute().Enqueue(&wire.MsgVersionAck{}); err != nil {
		return
	}
	router.NotifyIDReceived(&peerID)

	ackRoute.Dequeue()
}

// relayPing answers every ping received on this connection with a pong
// carrying the same nonce (§4.9's liveness probe).
func (m *Manager) relayPing(pingRoute *netadapter.Route, outgoing *netadapter.Route) {
	for {
		message, err := pingRoute.Dequeue()
		if err != nil {
			return
		}
		ping := message.(*wire.MsgPing)
		if err := outgoing.Enqueue(wire.NewMsgPong(ping.Nonce)); err != nil {
			return
		}
	}
}

// drainPong discards pongs; nothing in this build tracks round-trip
// latency yet, but the route still must be drained or a chatty peer fills
// its buffer and stalls the deserializer pool.
func (m *Manager) drainPong(pongRoute *netadapter.Route) {
	for {
		if _, err := pongRoute.Dequeue(); err != nil {
			return
		}
	}
}

// relayTx admits every transaction received on this connection into the
// mempool and rebroadcasts newly-seen ones to every other connection
// (§4.8 step 5's "relay through the peer manager").
func (m *Manager) relayTx(txRoute *netadapter.Route) {
	for {
		message, err := txRoute.Dequeue()
		if err != nil {
			return
		}
		tx := message.(*wire.MsgTx)
		hash, err := m.pool.Add(tx, m.params.MinFee)
		if err != nil {
			if err != mempool.ErrDuplicateTx {
				log.Debugf("rejected tx %s: %s", hash, err)
			}
			continue
		}
		m.netAdapter.Broadcast(tx)
	}
}

// relayBlocks feeds every block (or bundle of blocks, §4.9: "BUNDLE (nonce +
// concatenated blocks)") received on this connection through the DAG's
// admission pipeline and rebroadcasts each on acceptance. A block the OBC
// buffers as an orphan is not relayed here; it only becomes solid once a
// missing parent arrives through some other ProcessBlock call, and that
// call's own acceptance is what gets relayed.
func (m *Manager) relayBlocks(blockRoute *netadapter.Route) {
	for {
		message, err := blockRoute.Dequeue()
		if err != nil {
			return
		}
		switch msg := message.(type) {
		case *wire.MsgBlock:
			m.admitBlock(msg)
		case *wire.MsgBundle:
			for _, block := range msg.Blocks {
				m.admitBlock(block)
			}
		}
	}
}

func (m *Manager) admitBlock(block *wire.MsgBlock) {
	isOrphan, err := m.dag.ProcessBlock(block, blockdag.SourceNetwork)
	if err != nil {
		log.Debugf("rejected block from peer: %s", err)
		return
	}
	if isOrphan {
		return
	}
	m.netAdapter.Broadcast(block)
}

// replyAddr answers every GET_ADDR with the node's currently connected
// peers (§4.9's GET_ADDR/ADDR pair). There is no persistent address book
// here — only what this node is connected to right now — since nothing in
// this build's scope needs peers it has never talked to.
func (m *Manager) replyAddr(getAddrRoute, outgoing *netadapter.Route) {
	for {
		if _, err := getAddrRoute.Dequeue(); err != nil {
			return
		}
		reply := &wire.MsgAddr{}
		for _, conn := range m.netAdapter.Connections() {
			na := addressOf(conn.Address())
			if na == nil {
				continue
			}
			if err := reply.AddAddress(na); err != nil {
				break
			}
		}
		if err := outgoing.Enqueue(reply); err != nil {
			return
		}
	}
}

// drainAddr discards incoming ADDR batches. Nothing in this build dials
// addresses it learns about secondhand; peers are only reached via
// -connect or an inbound dial.
func (m *Manager) drainAddr(addrRoute *netadapter.Route) {
	for {
		if _, err := addrRoute.Dequeue(); err != nil {
			return
		}
	}
}

func addressOf(addr net.Addr) *wire.NetAddress {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil
	}
	return &wire.NetAddress{
		Timestamp: uint32(time.Now().Unix()),
		IP:        tcpAddr.IP,
		Port:      uint16(tcpAddr.Port),
	}
}
