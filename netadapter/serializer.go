package netadapter

import (
	"bytes"

	"github.com/epic-project/epicd/wire"
)

// encodeJob is one outbound message waiting to be turned into wire bytes by
// the serializer pool before a single write flushes it to the socket.
type encodeJob struct {
	message Message
	magic   uint32
	writeCh chan<- []byte
}

// Message is a local alias kept for readability at call sites; it is the
// same interface as wire.Message.
type Message = wire.Message

// serializePool runs a fixed number of workers that encode outbound
// messages off the IO thread, per §5's "Serialize/Deserialize pools (sized
// at startup)". Each encoded frame is handed to the originating
// connection's own write channel so the actual socket write — the single
// "writev-style flush per message" — still happens on that connection's
// one IO goroutine, preserving per-peer wire order.
type serializePool struct {
	jobsCh chan encodeJob
}

func newSerializePool(workers int) *serializePool {
	if workers < 1 {
		workers = 1
	}
	p := &serializePool{jobsCh: make(chan encodeJob, defaultRouteCapacity)}
	for i := 0; i < workers; i++ {
		spawn(func() {
			for job := range p.jobsCh {
				var buf bytes.Buffer
				if err := wire.WriteMessage(&buf, job.message, job.magic); err != nil {
					log.Warnf("failed to encode outgoing %s message: %s", job.message.Command(), err)
					continue
				}
				job.writeCh <- buf.Bytes()
			}
		})
	}
	return p
}

func (p *serializePool) submit(message Message, magic uint32, writeCh chan<- []byte) {
	p.jobsCh <- encodeJob{message: message, magic: magic, writeCh: writeCh}
}
