// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/epic-project/epicd/util/daghash"
)

// MaxProofSize bounds the number of edge indices a proof vector may carry;
// Cuckaroo proofs are exactly params.ProofSize long once verified, but the
// decoder accepts up to this many before rejecting the frame as malformed.
const MaxProofSize = 64

// MaxBlockTransactions bounds the number of transactions a decoded block may
// declare.
const MaxBlockTransactions = 100000

// MsgBlock is a block: header, PoW proof (a cycle of edge indices, §3), and
// the ordered transaction vector.
type MsgBlock struct {
	Header       BlockHeader
	Proof        []uint32
	Transactions []*MsgTx
}

// KaspaDecode decodes r into the receiver.
func (b *MsgBlock) KaspaDecode(r io.Reader) error {
	if err := b.Header.KaspaDecode(r); err != nil {
		return err
	}

	proofCount, err := ReadCompactSize(r)
	if err != nil {
		return err
	}
	if proofCount > MaxProofSize {
		return errTooManyElements("proof words", proofCount)
	}
	b.Proof = make([]uint32, proofCount)
	for i := range b.Proof {
		if err := ReadElement(r, &b.Proof[i]); err != nil {
			return err
		}
	}

	txCount, err := ReadCompactSize(r)
	if err != nil {
		return err
	}
	if txCount > MaxBlockTransactions {
		return errTooManyElements("transactions", txCount)
	}
	b.Transactions = make([]*MsgTx, txCount)
	for i := range b.Transactions {
		tx := &MsgTx{}
		if err := tx.KaspaDecode(r); err != nil {
			return err
		}
		b.Transactions[i] = tx
	}
	return nil
}

// KaspaEncode encodes the receiver to w.
func (b *MsgBlock) KaspaEncode(w io.Writer) error {
	if err := b.Header.KaspaEncode(w); err != nil {
		return err
	}
	if err := WriteCompactSize(w, uint64(len(b.Proof))); err != nil {
		return err
	}
	for _, word := range b.Proof {
		if err := WriteElement(w, word); err != nil {
			return err
		}
	}
	if err := WriteCompactSize(w, uint64(len(b.Transactions))); err != nil {
		return err
	}
	for _, tx := range b.Transactions {
		if err := tx.KaspaEncode(w); err != nil {
			return err
		}
	}
	return nil
}

// Command returns the protocol command for the message.
func (b *MsgBlock) Command() MessageCommand {
	return CmdBlock
}

// SerializeSize returns the exact number of bytes b.KaspaEncode would write,
// used to check §8's invariant `optimal_encoded_size(B) == |encode(B)|`.
func (b *MsgBlock) SerializeSize() int {
	n := BlockHeaderPayload
	n += VarIntSerializeSize(uint64(len(b.Proof))) + len(b.Proof)*4
	n += VarIntSerializeSize(uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		n += tx.SerializeSize()
	}
	return n
}

// headerAndProofBytes serializes the header followed by the raw proof
// vector, the preimage for BlockHash.
func (b *MsgBlock) headerAndProofBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Header.KaspaEncode(&buf); err != nil {
		return nil, err
	}
	if err := WriteCompactSize(&buf, uint64(len(b.Proof))); err != nil {
		return nil, err
	}
	for _, word := range b.Proof {
		if err := WriteElement(&buf, word); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// BlockHash computes the block's identifier: a single-SHA-256 over
// header‖proof (§3).
func (b *MsgBlock) BlockHash() (daghash.Hash, error) {
	raw, err := b.headerAndProofBytes()
	if err != nil {
		return daghash.Hash{}, err
	}
	return singleSHA256(raw), nil
}

// ProofHash computes BLAKE2b-256 over the proof vector alone (§3). The
// Cuckaroo siphash keys are not derived from it: they come from the header
// encoding alone (see BlockHeader.Bytes).
func (b *MsgBlock) ProofHash() (daghash.Hash, error) {
	var buf bytes.Buffer
	for _, word := range b.Proof {
		if err := WriteElement(&buf, word); err != nil {
			return daghash.Hash{}, err
		}
	}
	sum := blake2b.Sum256(buf.Bytes())
	return daghash.Hash(sum), nil
}

// MerkleRoot computes the canonical Bitcoin-style pair-SHA256D folding merkle
// root over the given transaction hashes, padding an odd trailing element by
// duplication (§3).
func MerkleRoot(txHashes []daghash.Hash) daghash.Hash {
	if len(txHashes) == 0 {
		return daghash.ZeroHash
	}

	level := make([]daghash.Hash, len(txHashes))
	copy(level, txHashes)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]daghash.Hash, len(level)/2)
		for i := 0; i < len(next); i++ {
			next[i] = hashPairSHA256D(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}

func hashPairSHA256D(a, b daghash.Hash) daghash.Hash {
	var buf [daghash.HashSize * 2]byte
	copy(buf[:daghash.HashSize], a[:])
	copy(buf[daghash.HashSize:], b[:])
	first := sha256.Sum256(buf[:])
	second := sha256.Sum256(first[:])
	return daghash.Hash(second)
}
