// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockdag implements the DAG confirmation engine (§4.7): block
// admission, orphan buffering, milestone selection, fork resolution and
// level-set formation, together with the UTXO & registration ledger (§4.4)
// that backs it. Grounded on the teacher's blockdag package (dag.go,
// process.go, virtualblock.go, utxoset.go) — the GHOSTDAG blueset/tip
// selection machinery of that package is replaced throughout with this
// system's milestone/level-set model (§9's vertex/milestone-arena design
// note), but the admission pipeline shape (sanity check, solidity/orphan
// check, accept, release dependents) is preserved.
package blockdag

import (
	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

// Validity is a transaction's per-vertex validation outcome (§3).
type Validity int

// Validity values.
const (
	ValidityUnknown Validity = iota
	ValidityValid
	ValidityInvalid
)

// RedemptionState tracks whether a vertex's registration has been realized
// by a later redemption (§3).
type RedemptionState int

// RedemptionState values.
const (
	NotRedemption RedemptionState = iota
	NotYetRedeemed
	IsRedeemed
)

// Vertex is the DAG's annotation of a block (§3): its anchoring milestone
// height, the cumulative reward it was credited, per-transaction validity,
// whether it is itself a milestone, its redemption state and its miner
// peer-chain height. A milestone vertex additionally owns a Milestone
// snapshot.
type Vertex struct {
	BlockHash        daghash.Hash
	Height           uint64
	CumulativeReward uint64
	Validity         []Validity
	IsMilestone      bool
	IsRedeemed       RedemptionState
	MinerChainHeight uint64

	// Milestone is non-nil iff IsMilestone is true; it is this vertex's
	// owned snapshot (§3, §9's arena-ownership design note: the arena, not
	// the level set, owns this pointer).
	Milestone *Milestone

	Block *wire.MsgBlock
}

// NewVertex constructs a Vertex for block, sized for its transaction count.
func NewVertex(hash daghash.Hash, block *wire.MsgBlock) *Vertex {
	return &Vertex{
		BlockHash:  hash,
		Validity:   make([]Validity, len(block.Transactions)),
		IsRedeemed: NotRedemption,
		Block:      block,
	}
}

// Arena owns every Vertex ever admitted into the DAG, keyed by block hash
// (§9: "an arena owning Vertex / Milestone nodes keyed by block hash, with
// index handles ... stored in the level set and back-references"). Chains
// and level sets hold only hashes into this arena, never pointers that
// would create ownership cycles.
type Arena struct {
	vertices map[daghash.Hash]*Vertex
}

// NewArena returns an empty vertex arena.
func NewArena() *Arena {
	return &Arena{vertices: make(map[daghash.Hash]*Vertex)}
}

// Put inserts or overwrites v, keyed by its own BlockHash.
func (a *Arena) Put(v *Vertex) {
	a.vertices[v.BlockHash] = v
}

// Get looks up the vertex for hash, returning ok=false if absent.
func (a *Arena) Get(hash daghash.Hash) (*Vertex, bool) {
	v, ok := a.vertices[hash]
	return v, ok
}

// Has reports whether hash names a vertex already in the arena.
func (a *Arena) Has(hash daghash.Hash) bool {
	_, ok := a.vertices[hash]
	return ok
}

// Delete removes hash's vertex, used when pruning beyond the cached window
// after it has been flushed to the file store.
func (a *Arena) Delete(hash daghash.Hash) {
	delete(a.vertices, hash)
}

// Len reports the number of vertices currently held in memory.
func (a *Arena) Len() int {
	return len(a.vertices)
}
