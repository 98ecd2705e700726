// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool implements component 11: a deduplicated set of pending
// transactions the miner draws from, plus the locally-produced redemption
// FIFO named in §3/§4.8. Grounded on the teacher's mempool (the dedup/eviction
// shape its mempool_test.go's poolHarness exercises), trimmed to this
// system's simpler pre-ledger role — full ledger validation happens once,
// on the DAG verify thread (§4.4, §9's single-writer discipline), so the pool
// itself only tracks shape-level dedup and admission order.
package mempool

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/epic-project/epicd/blockdag"
	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

// TxDesc is a descriptor about a transaction held in the pool, along with
// the bookkeeping the miner's block assembly needs (§4.8 step 2).
type TxDesc struct {
	Tx    *wire.MsgTx
	Hash  daghash.Hash
	Added time.Time
	Fee   uint64
}

// cheapCode is a cheap, collision-prone proxy for a transaction hash: the
// low 8 bytes, used to narrow the dedup check before a full-hash compare
// (§3: "a set keyed by transaction hash-cheap code; deduplicates on full
// hash").
type cheapCode uint64

func cheapCodeOf(hash daghash.Hash) cheapCode {
	return cheapCode(binary.LittleEndian.Uint64(hash[:8]))
}

// Pool is the mempool described in §3/§4.10: deduplicated pending
// transactions indexed by cheap code then full hash, safe for concurrent
// access from the DAG verify thread (which drains it on confirmation) and
// the miner thread (which reads it for block assembly) and the connection
// layer (which adds freshly received transactions).
type Pool struct {
	mu      sync.RWMutex
	byHash  map[daghash.Hash]*TxDesc
	buckets map[cheapCode][]daghash.Hash

	// redemptions is the FIFO of locally-produced redemption transactions
	// (§3, §4.8 step 1), drained by the miner in arrival order.
	redemptions []*wire.MsgTx
	// queuedAnchor enforces the deterministic redemption-ordering policy
	// §9's Open Questions settles on: first-seen wins for a given peer
	// chain anchor; a second simultaneous redemption for the same anchor
	// is rejected until the first is dequeued.
	queuedAnchor map[daghash.Hash]bool
}

// New returns an empty mempool.
func New() *Pool {
	return &Pool{
		byHash:       make(map[daghash.Hash]*TxDesc),
		buckets:      make(map[cheapCode][]daghash.Hash),
		queuedAnchor: make(map[daghash.Hash]bool),
	}
}

// ErrDuplicateTx is returned by Add when tx's hash is already present.
var ErrDuplicateTx = errors.New("mempool: transaction already in pool")

// Add inserts tx into the pool, deduplicating on its full transaction hash.
// Ordinary and redemption transactions both flow through here; a first
// registration or redemption that the caller wants mined locally should
// additionally go through EnqueueRedemption / queue a first-reg (those are
// sequenced separately, §4.8 step 1).
func (p *Pool) Add(tx *wire.MsgTx, fee uint64) (daghash.Hash, error) {
	hash, err := tx.TxHash()
	if err != nil {
		return daghash.Hash{}, errors.Wrap(err, "mempool: hashing transaction")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byHash[hash]; exists {
		return hash, ErrDuplicateTx
	}

	code := cheapCodeOf(hash)
	p.buckets[code] = append(p.buckets[code], hash)
	p.byHash[hash] = &TxDesc{Tx: tx, Hash: hash, Added: time.Now(), Fee: fee}
	return hash, nil
}

// Remove deletes hash from the pool, a no-op if it was not present. Called
// by the DAG verify thread once a transaction is confirmed in a level set.
func (p *Pool) Remove(hash daghash.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remove(hash)
}

func (p *Pool) remove(hash daghash.Hash) {
	if _, ok := p.byHash[hash]; !ok {
		return
	}
	delete(p.byHash, hash)

	code := cheapCodeOf(hash)
	bucket := p.buckets[code]
	for i, h := range bucket {
		if h == hash {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(p.buckets, code)
	} else {
		p.buckets[code] = bucket
	}
}

// Have reports whether hash names a transaction currently held in the pool.
func (p *Pool) Have(hash daghash.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byHash[hash]
	return ok
}

// Get returns the descriptor for hash, if held.
func (p *Pool) Get(hash daghash.Hash) (*TxDesc, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	desc, ok := p.byHash[hash]
	return desc, ok
}

// TxDescs returns every descriptor currently held, for the miner's block
// assembly (§4.8 step 2) to filter by sortition distance.
func (p *Pool) TxDescs() []*TxDesc {
	p.mu.RLock()
	defer p.mu.RUnlock()
	descs := make([]*TxDesc, 0, len(p.byHash))
	for _, d := range p.byHash {
		descs = append(descs, d)
	}
	return descs
}

// Len reports the number of transactions currently held.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byHash)
}

// RemoveConfirmed drops every transaction in txs from the pool, used once a
// level set confirms (§4.7 step 5's confirmation callback is the usual
// caller).
func (p *Pool) RemoveConfirmed(txs []*wire.MsgTx) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tx := range txs {
		hash, err := tx.TxHash()
		if err != nil {
			continue
		}
		p.remove(hash)
	}
}

// ErrRedemptionAnchorQueued is returned by EnqueueRedemption when another
// redemption for the same peer-chain anchor is already queued and not yet
// dequeued (§9's deterministic redemption-ordering decision).
var ErrRedemptionAnchorQueued = errors.New("mempool: a redemption for this peer chain anchor is already queued")

// redemptionAnchor returns the key EnqueueRedemption/DequeueRedemption track
// queued-ness under. A redemption is keyed by the peer-chain anchor it
// names, so at most one redemption per peer chain is ever queued at once. A
// first registration has no such anchor (its input's producing-block hash
// is always the zero hash, shared by every first registration), so it is
// instead keyed by its own transaction hash.
func redemptionAnchor(tx *wire.MsgTx) (daghash.Hash, error) {
	if blockdag.ClassifyTx(tx) == blockdag.TxFirstRegistration {
		return tx.TxHash()
	}
	return tx.TxIn[0].PreviousOutpoint.ProducingBlockHash, nil
}

// EnqueueRedemption appends a locally-produced first-registration or
// redemption transaction to the FIFO the miner drains (§3, §4.8 step 1:
// "the redemption queue" gates a chain's first block on a first
// registration, then carries its later redemptions). tx must classify as
// one of those two kinds per blockdag.ClassifyTx; anything else is a
// programming error.
func (p *Pool) EnqueueRedemption(tx *wire.MsgTx) error {
	kind := blockdag.ClassifyTx(tx)
	if kind != blockdag.TxRedemption && kind != blockdag.TxFirstRegistration {
		return errors.New("mempool: EnqueueRedemption given neither a first registration nor a redemption")
	}
	anchor, err := redemptionAnchor(tx)
	if err != nil {
		return errors.Wrap(err, "mempool: hashing first registration")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queuedAnchor[anchor] {
		return ErrRedemptionAnchorQueued
	}
	p.queuedAnchor[anchor] = true
	p.redemptions = append(p.redemptions, tx)
	return nil
}

// DequeueRedemption pops the oldest queued first-registration or
// redemption, freeing its anchor for a future entry to be queued. Returns
// ok=false if the FIFO is empty.
func (p *Pool) DequeueRedemption() (tx *wire.MsgTx, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.redemptions) == 0 {
		return nil, false
	}
	tx = p.redemptions[0]
	p.redemptions = p.redemptions[1:]
	if anchor, err := redemptionAnchor(tx); err == nil {
		delete(p.queuedAnchor, anchor)
	}
	return tx, true
}

// PendingRedemptions reports the number of locally-produced redemptions
// still queued.
func (p *Pool) PendingRedemptions() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.redemptions)
}

// RequeueRedemption re-inserts tx at the front of the redemption FIFO,
// used by the miner when a solve attempt aborts and included transactions
// must be reclaimed while preserving first-reg/redemption ordering (§4.8
// step 4).
func (p *Pool) RequeueRedemption(tx *wire.MsgTx) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if anchor, err := redemptionAnchor(tx); err == nil {
		p.queuedAnchor[anchor] = true
	}
	p.redemptions = append([]*wire.MsgTx{tx}, p.redemptions...)
}
