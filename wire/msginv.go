// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/epic-project/epicd/util/daghash"
)

// MaxInvCount bounds the number of hashes a single GET_INV/INV message may
// carry (§4.9: "up to 1000 milestone hashes").
const MaxInvCount = 1000

// MsgGetInv requests an inventory of milestone hashes the sender does not
// yet have, starting from the hashes it already knows.
type MsgGetInv struct {
	Nonce  uint64
	Hashes []daghash.Hash
}

func decodeHashVector(r io.Reader, max uint64) ([]daghash.Hash, error) {
	count, err := ReadCompactSize(r)
	if err != nil {
		return nil, err
	}
	if count > max {
		return nil, errTooManyElements("hashes", count)
	}
	hashes := make([]daghash.Hash, count)
	for i := range hashes {
		if err := ReadElement(r, &hashes[i]); err != nil {
			return nil, err
		}
	}
	return hashes, nil
}

func encodeHashVector(w io.Writer, hashes []daghash.Hash) error {
	if err := WriteCompactSize(w, uint64(len(hashes))); err != nil {
		return err
	}
	for i := range hashes {
		if err := WriteElement(w, &hashes[i]); err != nil {
			return err
		}
	}
	return nil
}

// KaspaDecode decodes r into the receiver.
func (msg *MsgGetInv) KaspaDecode(r io.Reader) error {
	if err := ReadElement(r, &msg.Nonce); err != nil {
		return err
	}
	hashes, err := decodeHashVector(r, MaxInvCount)
	if err != nil {
		return err
	}
	msg.Hashes = hashes
	return nil
}

// KaspaEncode encodes the receiver to w.
func (msg *MsgGetInv) KaspaEncode(w io.Writer) error {
	if err := WriteElement(w, msg.Nonce); err != nil {
		return err
	}
	return encodeHashVector(w, msg.Hashes)
}

// Command returns the protocol command for the message.
func (msg *MsgGetInv) Command() MessageCommand { return CmdGetInv }

// MsgInv answers a MsgGetInv with up to MaxInvCount milestone hashes the
// recipient is missing.
type MsgInv struct {
	Nonce  uint64
	Hashes []daghash.Hash
}

// KaspaDecode decodes r into the receiver.
func (msg *MsgInv) KaspaDecode(r io.Reader) error {
	if err := ReadElement(r, &msg.Nonce); err != nil {
		return err
	}
	hashes, err := decodeHashVector(r, MaxInvCount)
	if err != nil {
		return err
	}
	msg.Hashes = hashes
	return nil
}

// KaspaEncode encodes the receiver to w.
func (msg *MsgInv) KaspaEncode(w io.Writer) error {
	if err := WriteElement(w, msg.Nonce); err != nil {
		return err
	}
	return encodeHashVector(w, msg.Hashes)
}

// Command returns the protocol command for the message.
func (msg *MsgInv) Command() MessageCommand { return CmdInv }

// MaxGetDataCount bounds a single GET_DATA/NOT_FOUND hash vector.
const MaxGetDataCount = 50000

// MsgGetData requests the full bodies for a set of hashes previously learned
// via INV.
type MsgGetData struct {
	Hashes []daghash.Hash
}

// KaspaDecode decodes r into the receiver.
func (msg *MsgGetData) KaspaDecode(r io.Reader) error {
	hashes, err := decodeHashVector(r, MaxGetDataCount)
	if err != nil {
		return err
	}
	msg.Hashes = hashes
	return nil
}

// KaspaEncode encodes the receiver to w.
func (msg *MsgGetData) KaspaEncode(w io.Writer) error {
	return encodeHashVector(w, msg.Hashes)
}

// Command returns the protocol command for the message.
func (msg *MsgGetData) Command() MessageCommand { return CmdGetData }

// MsgNotFound answers a MsgGetData for hashes the sender does not have.
type MsgNotFound struct {
	Hashes []daghash.Hash
}

// KaspaDecode decodes r into the receiver.
func (msg *MsgNotFound) KaspaDecode(r io.Reader) error {
	hashes, err := decodeHashVector(r, MaxGetDataCount)
	if err != nil {
		return err
	}
	msg.Hashes = hashes
	return nil
}

// KaspaEncode encodes the receiver to w.
func (msg *MsgNotFound) KaspaEncode(w io.Writer) error {
	return encodeHashVector(w, msg.Hashes)
}

// Command returns the protocol command for the message.
func (msg *MsgNotFound) Command() MessageCommand { return CmdNotFound }
