// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
)

// MsgPing is a nonce-echo liveness probe (§4.9). A peer that sees its
// connection go quiet sends one and expects a MsgPong carrying the same
// nonce back.
type MsgPing struct {
	Nonce uint64
}

// KaspaDecode decodes r into the receiver.
func (msg *MsgPing) KaspaDecode(r io.Reader) error {
	return ReadElement(r, &msg.Nonce)
}

// KaspaEncode encodes the receiver to w.
func (msg *MsgPing) KaspaEncode(w io.Writer) error {
	return WriteElement(w, msg.Nonce)
}

// Command returns the protocol command for the message.
func (msg *MsgPing) Command() MessageCommand {
	return CmdPing
}

// NewMsgPing returns a new ping message carrying nonce.
func NewMsgPing(nonce uint64) *MsgPing {
	return &MsgPing{Nonce: nonce}
}

// MsgPong answers a MsgPing, echoing its nonce.
type MsgPong struct {
	Nonce uint64
}

// KaspaDecode decodes r into the receiver.
func (msg *MsgPong) KaspaDecode(r io.Reader) error {
	return ReadElement(r, &msg.Nonce)
}

// KaspaEncode encodes the receiver to w.
func (msg *MsgPong) KaspaEncode(w io.Writer) error {
	return WriteElement(w, msg.Nonce)
}

// Command returns the protocol command for the message.
func (msg *MsgPong) Command() MessageCommand {
	return CmdPong
}

// NewMsgPong returns a new pong message echoing nonce.
func NewMsgPong(nonce uint64) *MsgPong {
	return &MsgPong{Nonce: nonce}
}
