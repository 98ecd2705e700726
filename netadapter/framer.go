package netadapter

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/epic-project/epicd/wire"
)

// rawFrame is one fully-received frame, still payload bytes plus its
// trailing CRC, not yet decoded into a wire.Message. Handing this (rather
// than a decoded Message) to the deserializer pool is what lets decoding
// happen off the IO thread (§4.9, §5's "serialize/deserialize pools").
type rawFrame struct {
	header  *wire.MessageHeader
	payload []byte
}

// readFrame implements §4.9's framer state machine over one connection's
// byte stream: scan until magic is found (dropping bytes before it),
// decode and checksum the header, then block until length payload bytes
// (plus, when length >= 4, a trailing CRC32C) have arrived.
//
// A bad checksum or a bad CRC drops just this frame; scanning resumes after
// the bytes already consumed (the header, plus the payload and trailer for
// a bad CRC) — the connection stays open
// (§7: "Framing: bad magic, checksum, or CRC -> drop frame, keep
// connection").
func readFrame(r *bufio.Reader, magic uint32) (*rawFrame, error) {
	if err := scanForMagic(r, magic); err != nil {
		return nil, err
	}

	header := make([]byte, wire.HeaderLength)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	h, err := wire.ReadMessageHeader(header)
	if err != nil {
		// Bad checksum: this was never a real frame start. Drop it and
		// let the caller retry scanning from here.
		return nil, errFrameDropped
	}

	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	if h.Length >= 4 {
		var trailer [4]byte
		if _, err := io.ReadFull(r, trailer[:]); err != nil {
			return nil, err
		}
		if err := wire.VerifyPayloadCRC(payload, trailer[:]); err != nil {
			return nil, errFrameDropped
		}
	}

	return &rawFrame{header: h, payload: payload}, nil
}

// errFrameDropped signals that the current frame failed validation and was
// discarded, but the connection is healthy and the caller should keep
// reading.
var errFrameDropped = errors.New("frame dropped")

// scanForMagic consumes bytes from r one at a time until the next four
// bytes in the stream equal magic (little-endian), leaving them unread so
// the caller can decode the full header starting there.
func scanForMagic(r *bufio.Reader, magic uint32) error {
	var want [4]byte
	binary.LittleEndian.PutUint32(want[:], magic)

	for {
		peek, err := r.Peek(4)
		if err != nil {
			return err
		}
		if peek[0] == want[0] && peek[1] == want[1] && peek[2] == want[2] && peek[3] == want[3] {
			return nil
		}
		if _, err := r.Discard(1); err != nil {
			return err
		}
	}
}

// decode turns a validated raw frame into a typed wire.Message. Split out
// from readFrame so it can run on a deserializer-pool worker instead of the
// IO goroutine.
func decode(frame *rawFrame) (wire.Message, error) {
	message, err := wire.MakeEmptyMessage(frame.header.Command)
	if err != nil {
		return nil, err
	}
	if err := message.KaspaDecode(bytes.NewReader(frame.payload)); err != nil {
		return nil, err
	}
	return message, nil
}

// frameJob pairs a raw frame with the router it should be dispatched to
// once decoded, so a single shared deserializer pool can serve every
// connection the adapter holds (§5's "Serialize/Deserialize pools (sized
// at startup)" names one pool per kind, not one per connection).
type frameJob struct {
	frame  *rawFrame
	router *Router
}

// deserializePool runs a fixed number of workers draining jobsCh: each
// decodes its frame's payload into a typed wire.Message and hands it to
// the frame's router.
type deserializePool struct {
	jobsCh chan frameJob
}

func newDeserializePool(workers int) *deserializePool {
	if workers < 1 {
		workers = 1
	}
	p := &deserializePool{jobsCh: make(chan frameJob, defaultRouteCapacity)}
	for i := 0; i < workers; i++ {
		spawn(func() {
			for job := range p.jobsCh {
				message, err := decode(job.frame)
				if err != nil {
					log.Debugf("dropping frame: deserialization failed: %s", err)
					continue
				}
				if err := job.router.RouteInputMessage(message); err != nil {
					log.Warnf("failed to route message: %s", err)
				}
			}
		})
	}
	return p
}

func (p *deserializePool) submit(frame *rawFrame, router *Router) {
	p.jobsCh <- frameJob{frame: frame, router: router}
}
