// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"crypto/sha256"
	"io"

	"github.com/epic-project/epicd/util/daghash"
)

// BlockVersion is the current block version.
const BlockVersion uint16 = 1

// BlockHeaderPayload is the exact size of an encoded BlockHeader: version(2)
// + 3 hashes(32*3) + merkle root(32) + time(4) + bits(4) + nonce(4) = 142
// bytes (the proof count that follows it in a block record is not part of
// the header).
const BlockHeaderPayload = 2 + daghash.HashSize*4 + 4 + 4 + 4

// BlockHeader is a block's header: version, its three parent edges
// (milestone, prev, tip — §3), merkle root, timestamp, compact difficulty
// and nonce.
type BlockHeader struct {
	Version       uint16
	MilestoneHash daghash.Hash
	PrevHash      daghash.Hash
	TipHash       daghash.Hash
	MerkleRoot    daghash.Hash
	Timestamp     uint32
	Bits          uint32
	Nonce         uint32
}

// NewBlockHeader returns a new BlockHeader using the provided parent edges.
func NewBlockHeader(version uint16, milestoneHash, prevHash, tipHash, merkleRoot *daghash.Hash,
	timestamp uint32, bits uint32) *BlockHeader {

	return &BlockHeader{
		Version:       version,
		MilestoneHash: *milestoneHash,
		PrevHash:      *prevHash,
		TipHash:       *tipHash,
		MerkleRoot:    *merkleRoot,
		Timestamp:     timestamp,
		Bits:          bits,
	}
}

// IsGenesis reports whether this header has all three parent edges set to
// the zero hash, the defining property of the GENESIS block (§3).
func (h *BlockHeader) IsGenesis() bool {
	return h.MilestoneHash == daghash.ZeroHash && h.PrevHash == daghash.ZeroHash && h.TipHash == daghash.ZeroHash
}

// KaspaDecode decodes r into the receiver.
func (h *BlockHeader) KaspaDecode(r io.Reader) error {
	return readElements(r, &h.Version, &h.MilestoneHash, &h.PrevHash, &h.TipHash,
		&h.MerkleRoot, &h.Timestamp, &h.Bits, &h.Nonce)
}

// KaspaEncode encodes the receiver to w.
func (h *BlockHeader) KaspaEncode(w io.Writer) error {
	return writeElements(w, h.Version, &h.MilestoneHash, &h.PrevHash, &h.TipHash,
		&h.MerkleRoot, h.Timestamp, h.Bits, h.Nonce)
}

// Bytes serializes the full header, nonce included; the miner hashes this
// encoding to seed the Cuckaroo siphash keys (§4.3: "siphash_keys are derived by BLAKE2b-256
// over the block header (pre-proof)").
func (h *BlockHeader) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := h.KaspaEncode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// singleSHA256 is the "single-SHA-256" hash named throughout §3: plain
// SHA-256, not the doubled form conventional blockchains use for block/tx
// ids. It is used for block and transaction identifiers.
func singleSHA256(b []byte) daghash.Hash {
	return daghash.Hash(sha256.Sum256(b))
}
