// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
)

// MaxBundleBlocks bounds the number of blocks a single BUNDLE message may
// carry (§4.9).
const MaxBundleBlocks = 100000

// MsgBundle carries a batch of blocks under a single nonce, used during
// initial sync to push many blocks in one frame instead of one BLOCK message
// each.
type MsgBundle struct {
	Nonce  uint64
	Blocks []*MsgBlock
}

// KaspaDecode decodes r into the receiver.
func (msg *MsgBundle) KaspaDecode(r io.Reader) error {
	if err := ReadElement(r, &msg.Nonce); err != nil {
		return err
	}

	count, err := ReadCompactSize(r)
	if err != nil {
		return err
	}
	if count > MaxBundleBlocks {
		return errTooManyElements("blocks", count)
	}
	msg.Blocks = make([]*MsgBlock, count)
	for i := range msg.Blocks {
		b := &MsgBlock{}
		if err := b.KaspaDecode(r); err != nil {
			return err
		}
		msg.Blocks[i] = b
	}
	return nil
}

// KaspaEncode encodes the receiver to w.
func (msg *MsgBundle) KaspaEncode(w io.Writer) error {
	if err := WriteElement(w, msg.Nonce); err != nil {
		return err
	}
	if err := WriteCompactSize(w, uint64(len(msg.Blocks))); err != nil {
		return err
	}
	for _, b := range msg.Blocks {
		if err := b.KaspaEncode(w); err != nil {
			return err
		}
	}
	return nil
}

// Command returns the protocol command for the message.
func (msg *MsgBundle) Command() MessageCommand { return CmdBundle }
