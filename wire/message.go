// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

// MaxMessageLength is the hard ceiling on a frame's payload length (§4.9):
// frames over this size are discarded by the framer before a single byte of
// payload is read into memory.
const MaxMessageLength = 100 * 1024 * 1024

// MessageCommand identifies a message's type in the frame header.
type MessageCommand uint8

// Message commands (§4.9's taxonomy).
const (
	CmdPing MessageCommand = iota
	CmdPong
	CmdVersion
	CmdVersionAck
	CmdGetAddr
	CmdAddr
	CmdTx
	CmdBlock
	CmdBundle
	CmdGetInv
	CmdInv
	CmdGetData
	CmdNotFound
)

var commandNames = map[MessageCommand]string{
	CmdPing:       "ping",
	CmdPong:       "pong",
	CmdVersion:    "version",
	CmdVersionAck: "versionack",
	CmdGetAddr:    "getaddr",
	CmdAddr:       "addr",
	CmdTx:         "tx",
	CmdBlock:      "block",
	CmdBundle:     "bundle",
	CmdGetInv:     "getinv",
	CmdInv:        "inv",
	CmdGetData:    "getdata",
	CmdNotFound:   "notfound",
}

func (c MessageCommand) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return "unknown"
}

// Message is implemented by every payload type that travels over the wire.
type Message interface {
	KaspaEncode(w io.Writer) error
	KaspaDecode(r io.Reader) error
	Command() MessageCommand
}

// headerLength is magic(4) + type(1) + countdown(1) + reserved(2) +
// length(4) + checksum(4).
const headerLength = 16

// MessageHeader is the fixed-size prefix described in §4.9.
type MessageHeader struct {
	Magic     uint32
	Command   MessageCommand
	Countdown uint8
	Length    uint32
}

// headerChecksum computes the frame header checksum: the sum of magic,
// type, countdown and length (§4.9: "checksum = magic + type + countdown +
// length").
func headerChecksum(magic uint32, cmd MessageCommand, countdown uint8, length uint32) uint32 {
	return magic + uint32(cmd) + uint32(countdown) + length
}

// WriteMessage serializes msg into a complete framed message: header,
// payload, and — when the payload is at least 4 bytes — a trailing CRC32C
// over the payload.
func WriteMessage(w io.Writer, msg Message, magic uint32) error {
	var payload bytes.Buffer
	if err := msg.KaspaEncode(&payload); err != nil {
		return errors.Wrap(err, "failed to encode message payload")
	}
	payloadBytes := payload.Bytes()
	if len(payloadBytes) > MaxMessageLength {
		return errors.Errorf("message payload is too large - encoded %d bytes, but maximum message payload is %d bytes",
			len(payloadBytes), MaxMessageLength)
	}

	length := uint32(len(payloadBytes))
	cmd := msg.Command()
	const countdown = 0
	checksum := headerChecksum(magic, cmd, countdown, length)

	var header [headerLength]byte
	binary.LittleEndian.PutUint32(header[0:4], magic)
	header[4] = byte(cmd)
	header[5] = countdown
	// header[6:8] reserved, left zero
	binary.LittleEndian.PutUint32(header[8:12], length)
	binary.LittleEndian.PutUint32(header[12:16], checksum)

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(payloadBytes); err != nil {
		return err
	}
	if length >= 4 {
		crc := crc32.Checksum(payloadBytes, crc32.MakeTable(crc32.Castagnoli))
		var crcBuf [4]byte
		binary.LittleEndian.PutUint32(crcBuf[:], crc)
		if _, err := w.Write(crcBuf[:]); err != nil {
			return err
		}
	}
	return nil
}

// ErrBadChecksum is returned by ReadMessageHeader when a frame's header
// checksum does not match its fields (§4.9, §7: dropped, connection kept).
var ErrBadChecksum = errors.New("frame header checksum mismatch")

// ReadMessageHeader decodes a fixed-size MessageHeader from the front of buf,
// which must be at least headerLength bytes, and validates its checksum.
func ReadMessageHeader(buf []byte) (*MessageHeader, error) {
	if len(buf) < headerLength {
		return nil, errors.New("short frame header")
	}
	h := &MessageHeader{
		Magic:     binary.LittleEndian.Uint32(buf[0:4]),
		Command:   MessageCommand(buf[4]),
		Countdown: buf[5],
		Length:    binary.LittleEndian.Uint32(buf[8:12]),
	}
	checksum := binary.LittleEndian.Uint32(buf[12:16])
	if headerChecksum(h.Magic, h.Command, h.Countdown, h.Length) != checksum {
		return nil, ErrBadChecksum
	}
	if h.Length > MaxMessageLength {
		return nil, errors.Errorf("frame length %d exceeds MaxMessageLength %d", h.Length, MaxMessageLength)
	}
	return h, nil
}

// HeaderLength exposes headerLength to the framer in package netadapter.
const HeaderLength = headerLength

// VerifyPayloadCRC validates the trailing CRC32C of a frame's payload
// (present whenever the payload is at least 4 bytes, per §4.9).
func VerifyPayloadCRC(payload, trailer []byte) error {
	if len(trailer) != 4 {
		return errors.New("missing payload CRC trailer")
	}
	want := binary.LittleEndian.Uint32(trailer)
	got := crc32.Checksum(payload, crc32.MakeTable(crc32.Castagnoli))
	if want != got {
		return errors.New("payload CRC mismatch")
	}
	return nil
}

// MakeEmptyMessage returns a zero-valued Message for the given command, used
// by the deserializer pool to know what type to decode a payload into.
func MakeEmptyMessage(command MessageCommand) (Message, error) {
	switch command {
	case CmdPing:
		return &MsgPing{}, nil
	case CmdPong:
		return &MsgPong{}, nil
	case CmdVersion:
		return &MsgVersion{}, nil
	case CmdVersionAck:
		return &MsgVersionAck{}, nil
	case CmdGetAddr:
		return &MsgGetAddr{}, nil
	case CmdAddr:
		return &MsgAddr{}, nil
	case CmdTx:
		return &MsgTx{}, nil
	case CmdBlock:
		return &MsgBlock{}, nil
	case CmdBundle:
		return &MsgBundle{}, nil
	case CmdGetInv:
		return &MsgGetInv{}, nil
	case CmdInv:
		return &MsgInv{}, nil
	case CmdGetData:
		return &MsgGetData{}, nil
	case CmdNotFound:
		return &MsgNotFound{}, nil
	}
	return nil, errors.Errorf("unhandled command [%d]", command)
}
