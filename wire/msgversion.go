// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
)

// MsgVersion is the first message a peer sends after connecting (§4.9:
// VERSION/VERSION_ACK handshake).
type MsgVersion struct {
	ProtocolVersion uint32
	Services        uint64
	Timestamp       int64
	Nonce           uint64

	// PeerID is the sender's netadapter.ID, raw bytes so wire need not
	// import the netadapter package (which itself imports wire).
	PeerID [16]byte

	UserAgent  string
	BestHeight int32
}

// KaspaDecode decodes r into the receiver.
func (msg *MsgVersion) KaspaDecode(r io.Reader) error {
	if err := readElements(r, &msg.ProtocolVersion, &msg.Services, &msg.Timestamp, &msg.Nonce); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, msg.PeerID[:]); err != nil {
		return err
	}
	ua, err := ReadVarBytes(r, 256, "user agent")
	if err != nil {
		return err
	}
	msg.UserAgent = string(ua)
	return ReadElement(r, &msg.BestHeight)
}

// KaspaEncode encodes the receiver to w.
func (msg *MsgVersion) KaspaEncode(w io.Writer) error {
	if err := writeElements(w, msg.ProtocolVersion, msg.Services, msg.Timestamp, msg.Nonce); err != nil {
		return err
	}
	if _, err := w.Write(msg.PeerID[:]); err != nil {
		return err
	}
	if err := WriteVarBytes(w, []byte(msg.UserAgent)); err != nil {
		return err
	}
	return WriteElement(w, msg.BestHeight)
}

// Command returns the protocol command for the message.
func (msg *MsgVersion) Command() MessageCommand {
	return CmdVersion
}

// MsgVersionAck acknowledges a MsgVersion and completes the handshake.
type MsgVersionAck struct{}

// KaspaDecode decodes r into the receiver.
func (msg *MsgVersionAck) KaspaDecode(r io.Reader) error { return nil }

// KaspaEncode encodes the receiver to w.
func (msg *MsgVersionAck) KaspaEncode(w io.Writer) error { return nil }

// Command returns the protocol command for the message.
func (msg *MsgVersionAck) Command() MessageCommand {
	return CmdVersionAck
}
