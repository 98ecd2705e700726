// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import (
	"encoding/binary"

	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

// UTXOEntry is the UTXO engine's record of one unspent output (§3): the
// output itself plus the position (tx index, out index) within the
// producing block that created it. Grounded on the teacher's UTXOEntry
// (blockdag/utxoset.go), trimmed to this system's simpler output shape
// (no coinbase/blue-score bookkeeping — that role is played by first-reg
// and redemption transactions here instead).
type UTXOEntry struct {
	Output           wire.TxOut
	ProducingTxIndex uint32
	ProducingOutIdx  uint32
}

// UTXOKey computes the UTXO engine's 256-bit index for an outpoint (§3):
// `producing_block_hash XOR (tx_index || out_index positioned into the high
// 64 bits)`, needing no additional hashing.
func UTXOKey(producingBlockHash daghash.Hash, txIndex, outIndex uint32) daghash.Hash {
	var mix [8]byte
	binary.LittleEndian.PutUint32(mix[0:4], txIndex)
	binary.LittleEndian.PutUint32(mix[4:8], outIndex)

	key := producingBlockHash
	for i := 0; i < 8; i++ {
		key[daghash.HashSize-8+i] ^= mix[i]
	}
	return key
}

// utxoCollection is an in-memory set of UTXOs indexed by their key,
// mirroring the teacher's utxoCollection map type (blockdag/utxoset.go).
type utxoCollection map[daghash.Hash]*UTXOEntry

// UTXOSet is a milestone-scoped snapshot of the ledger (§4.4): a base
// (persisted, via catalog) view overlaid by an in-memory diff of additions
// and removals accumulated since the base was taken. Main-chain switches
// replace the overlay wholesale — copy-on-write, per §5 — rather than
// mutating the base in place, so readers may take a snapshot reference
// without locking.
type UTXOSet struct {
	base    utxoLookup
	added   utxoCollection
	removed map[daghash.Hash]bool
}

// utxoLookup is the minimal read interface the base layer (catalog) must
// satisfy.
type utxoLookup interface {
	Lookup(key daghash.Hash) (*UTXOEntry, bool)
}

// NewUTXOSet returns a UTXO snapshot overlaying base with an empty diff.
func NewUTXOSet(base utxoLookup) *UTXOSet {
	return &UTXOSet{
		base:    base,
		added:   make(utxoCollection),
		removed: make(map[daghash.Hash]bool),
	}
}

// Lookup returns the UTXO addressed by key, consulting the overlay before
// falling back to the base.
func (s *UTXOSet) Lookup(key daghash.Hash) (*UTXOEntry, bool) {
	if s.removed[key] {
		return nil, false
	}
	if e, ok := s.added[key]; ok {
		return e, true
	}
	if s.base == nil {
		return nil, false
	}
	return s.base.Lookup(key)
}

// Has reports whether key names a live UTXO in this snapshot.
func (s *UTXOSet) Has(key daghash.Hash) bool {
	_, ok := s.Lookup(key)
	return ok
}

// Add records a freshly created UTXO in the overlay (§4.4 rule application:
// a transaction's outputs become new UTXOs once its containing block is
// validated).
func (s *UTXOSet) Add(key daghash.Hash, entry *UTXOEntry) {
	delete(s.removed, key)
	s.added[key] = entry
}

// Spend removes key from the live set (§4.4: an input consumes its
// outpoint's UTXO).
func (s *UTXOSet) Spend(key daghash.Hash) {
	delete(s.added, key)
	s.removed[key] = true
}

// Clone returns an independent copy of the overlay sharing the same base,
// used when branching a new chain at a fork point (§4.5) so mutating one
// fork's overlay never affects another's.
func (s *UTXOSet) Clone() *UTXOSet {
	clone := &UTXOSet{
		base:    s.base,
		added:   make(utxoCollection, len(s.added)),
		removed: make(map[daghash.Hash]bool, len(s.removed)),
	}
	for k, v := range s.added {
		clone.added[k] = v
	}
	for k, v := range s.removed {
		clone.removed[k] = v
	}
	return clone
}

// Diff reports the overlay's additions and removals, the UTXO deltas a
// confirmation callback reports to subscribers (§4.7 step 5).
func (s *UTXOSet) Diff() (added []daghash.Hash, removed []daghash.Hash) {
	for k := range s.added {
		added = append(added, k)
	}
	for k := range s.removed {
		removed = append(removed, k)
	}
	return added, removed
}
