// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"math"

	"github.com/epic-project/epicd/util/daghash"
)

// UnconnectedIndex is the tx_index / out_index value that marks an Outpoint
// as unconnected (§3): carried by registration and redemption inputs.
const UnconnectedIndex = math.MaxUint32

// Outpoint identifies a transaction output: the hash of the block that
// produced it plus its tx and output index within that block. The
// distinguished "unconnected" outpoint (TxIndex == OutIndex ==
// UnconnectedIndex) reuses ProducingBlockHash to name the previous
// registration anchor for a registration/redemption input.
type Outpoint struct {
	ProducingBlockHash daghash.Hash
	TxIndex            uint32
	OutIndex           uint32
}

// NewOutpoint returns a new Outpoint.
func NewOutpoint(producingBlockHash *daghash.Hash, txIndex, outIndex uint32) *Outpoint {
	return &Outpoint{ProducingBlockHash: *producingBlockHash, TxIndex: txIndex, OutIndex: outIndex}
}

// IsUnconnected reports whether this is the distinguished unconnected
// outpoint carried by first-registration and redemption inputs.
func (o *Outpoint) IsUnconnected() bool {
	return o.TxIndex == UnconnectedIndex && o.OutIndex == UnconnectedIndex
}

// KaspaDecode decodes r into the receiver.
func (o *Outpoint) KaspaDecode(r io.Reader) error {
	return readElements(r, &o.ProducingBlockHash, &o.TxIndex, &o.OutIndex)
}

// KaspaEncode encodes the receiver to w.
func (o *Outpoint) KaspaEncode(w io.Writer) error {
	return writeElements(w, &o.ProducingBlockHash, o.TxIndex, o.OutIndex)
}

// Opcode values for the Listing stack program (§3).
const (
	OpFail     byte = 0x00
	OpSuccess  byte = 0x01
	OpVerify   byte = 0x02
	OpMultiSig byte = 0x03
)

// MaxListingOpcodes bounds a listing's opcode vector length.
const MaxListingOpcodes = 32

// MaxListingDataSize bounds a listing's data blob length.
const MaxListingDataSize = 16384

// Listing is the tiny stack program carried by every input and output: an
// opcode vector over {FAIL, SUCCESS, VERIFY, MULTISIG} followed by a data
// blob. An output listing is the predicate; an input listing supplies the
// witness data the predicate consumes (§3, §4.4).
type Listing struct {
	Opcodes []byte
	Data    []byte
}

// KaspaDecode decodes r into the receiver.
func (l *Listing) KaspaDecode(r io.Reader) error {
	ops, err := ReadVarBytes(r, MaxListingOpcodes, "listing opcodes")
	if err != nil {
		return err
	}
	data, err := ReadVarBytes(r, uint64(MaxListingDataSize), "listing data")
	if err != nil {
		return err
	}
	l.Opcodes = ops
	l.Data = data
	return nil
}

// KaspaEncode encodes the receiver to w.
func (l *Listing) KaspaEncode(w io.Writer) error {
	if err := WriteVarBytes(w, l.Opcodes); err != nil {
		return err
	}
	return WriteVarBytes(w, l.Data)
}

// SerializeSize returns the number of bytes l.KaspaEncode would write.
func (l *Listing) SerializeSize() int {
	return VarIntSerializeSize(uint64(len(l.Opcodes))) + len(l.Opcodes) +
		VarIntSerializeSize(uint64(len(l.Data))) + len(l.Data)
}

// TxIn is an ordered transaction input: the outpoint it spends (or the
// unconnected outpoint for registration/redemption inputs) and the witness
// listing satisfying the referenced output's predicate.
type TxIn struct {
	PreviousOutpoint Outpoint
	Listing          Listing
}

// KaspaDecode decodes r into the receiver.
func (ti *TxIn) KaspaDecode(r io.Reader) error {
	if err := ti.PreviousOutpoint.KaspaDecode(r); err != nil {
		return err
	}
	return ti.Listing.KaspaDecode(r)
}

// KaspaEncode encodes the receiver to w.
func (ti *TxIn) KaspaEncode(w io.Writer) error {
	if err := ti.PreviousOutpoint.KaspaEncode(w); err != nil {
		return err
	}
	return ti.Listing.KaspaEncode(w)
}

// TxOut is an ordered transaction output: its value and the predicate
// listing that a spending input's witness must satisfy.
type TxOut struct {
	Value   uint64
	Listing Listing
}

// KaspaDecode decodes r into the receiver.
func (to *TxOut) KaspaDecode(r io.Reader) error {
	if err := ReadElement(r, &to.Value); err != nil {
		return err
	}
	return to.Listing.KaspaDecode(r)
}

// KaspaEncode encodes the receiver to w.
func (to *TxOut) KaspaEncode(w io.Writer) error {
	if err := WriteElement(w, to.Value); err != nil {
		return err
	}
	return to.Listing.KaspaEncode(w)
}

// MaxTxInOutCount bounds the number of inputs or outputs a transaction may
// declare, protecting decode from unreasonable vector length prefixes.
const MaxTxInOutCount = 100000

// MsgTx is a transaction: ordered inputs and ordered outputs (§3).
type MsgTx struct {
	Version uint16
	TxIn    []*TxIn
	TxOut   []*TxOut
}

// KaspaDecode decodes r into the receiver.
func (msg *MsgTx) KaspaDecode(r io.Reader) error {
	if err := ReadElement(r, &msg.Version); err != nil {
		return err
	}

	inCount, err := ReadCompactSize(r)
	if err != nil {
		return err
	}
	if inCount > MaxTxInOutCount {
		return errTooManyElements("inputs", inCount)
	}
	msg.TxIn = make([]*TxIn, inCount)
	for i := range msg.TxIn {
		ti := &TxIn{}
		if err := ti.KaspaDecode(r); err != nil {
			return err
		}
		msg.TxIn[i] = ti
	}

	outCount, err := ReadCompactSize(r)
	if err != nil {
		return err
	}
	if outCount > MaxTxInOutCount {
		return errTooManyElements("outputs", outCount)
	}
	msg.TxOut = make([]*TxOut, outCount)
	for i := range msg.TxOut {
		to := &TxOut{}
		if err := to.KaspaDecode(r); err != nil {
			return err
		}
		msg.TxOut[i] = to
	}
	return nil
}

// KaspaEncode encodes the receiver to w.
func (msg *MsgTx) KaspaEncode(w io.Writer) error {
	if err := WriteElement(w, msg.Version); err != nil {
		return err
	}
	if err := WriteCompactSize(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, ti := range msg.TxIn {
		if err := ti.KaspaEncode(w); err != nil {
			return err
		}
	}
	if err := WriteCompactSize(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, to := range msg.TxOut {
		if err := to.KaspaEncode(w); err != nil {
			return err
		}
	}
	return nil
}

// Command returns the protocol command for the message.
func (msg *MsgTx) Command() MessageCommand {
	return CmdTx
}

// SerializeSize returns the number of bytes msg.KaspaEncode would write.
func (msg *MsgTx) SerializeSize() int {
	n := 2 + VarIntSerializeSize(uint64(len(msg.TxIn))) + VarIntSerializeSize(uint64(len(msg.TxOut)))
	for _, ti := range msg.TxIn {
		n += daghash.HashSize + 4 + 4 + ti.Listing.SerializeSize()
	}
	for _, to := range msg.TxOut {
		n += 8 + to.Listing.SerializeSize()
	}
	return n
}

// TxHash computes the transaction's identifier: a single-SHA-256 of its
// canonical encoding (§3).
func (msg *MsgTx) TxHash() (daghash.Hash, error) {
	var buf bytes.Buffer
	if err := msg.KaspaEncode(&buf); err != nil {
		return daghash.Hash{}, err
	}
	return singleSHA256(buf.Bytes()), nil
}

func errTooManyElements(kind string, count uint64) error {
	return &tooManyElementsError{kind: kind, count: count}
}

type tooManyElementsError struct {
	kind  string
	count uint64
}

func (e *tooManyElementsError) Error() string {
	return "too many " + e.kind + " in transaction"
}
