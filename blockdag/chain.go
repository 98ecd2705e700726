// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import (
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/epic-project/epicd/params"
	"github.com/epic-project/epicd/pow"
	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

// regOverlay is the in-memory registrationIndex a Chain mutates as
// milestones confirm (§4.5). It lives only in memory: nothing in this
// package flushes it to the catalog.
type regOverlay struct {
	entries map[daghash.Hash]daghash.Hash
}

func newRegOverlay() *regOverlay {
	return &regOverlay{entries: make(map[daghash.Hash]daghash.Hash)}
}

func (r *regOverlay) GetRegistration(peerChainHead daghash.Hash) (daghash.Hash, bool) {
	h, ok := r.entries[peerChainHead]
	return h, ok
}

func (r *regOverlay) PutRegistration(peerChainHead, lastRegistration daghash.Hash) {
	r.entries[peerChainHead] = lastRegistration
}

func (r *regOverlay) DeleteRegistration(peerChainHead daghash.Hash) {
	delete(r.entries, peerChainHead)
}

// Chain is one candidate history suffix (§3, §4.5): an ordered cache of
// recent milestone snapshots, a pending-blocks pool of blocks seen on this
// chain but not yet anchored, and a local UTXO/registration overlay. Chains
// forked from one another share their milestone snapshots up to the fork
// point by holding the same *Milestone pointers (owned by the Arena), never
// copying them.
type Chain struct {
	params *params.Params
	arena  *Arena

	// milestones is the cached window, ascending height, milestoneHash
	// first within each snapshot's own LevelSet.
	milestones []*Milestone

	// pending holds blocks seen (solid, admitted) on this chain but not yet
	// anchored by a milestone, keyed by block hash.
	pending map[daghash.Hash]*wire.MsgBlock

	utxo *UTXOSet
	reg  *regOverlay
}

// NewChain returns a chain seeded with the genesis milestone.
func NewChain(p *params.Params, arena *Arena, genesis *Milestone, base utxoLookup) *Chain {
	return &Chain{
		params:     p,
		arena:      arena,
		milestones: []*Milestone{genesis},
		pending:    make(map[daghash.Hash]*wire.MsgBlock),
		utxo:       NewUTXOSet(base),
		reg:        newRegOverlay(),
	}
}

// Tip returns the chain's highest milestone snapshot.
func (c *Chain) Tip() *Milestone {
	return c.milestones[len(c.milestones)-1]
}

// Chainwork returns the tip's accumulated chainwork, the ordering key the
// fork container ranks chains by (§4.5).
func (c *Chain) Chainwork() *big.Int {
	return c.Tip().Chainwork
}

// AddPendingBlock records block (already solid) as awaiting anchoring by a
// future milestone.
func (c *Chain) AddPendingBlock(hash daghash.Hash, block *wire.MsgBlock) {
	c.pending[hash] = block
}

// PendingHashes returns the hashes of blocks seen on this chain but not yet
// anchored by a milestone, for the miner's tip-selection step (§4.8 step 3).
func (c *Chain) PendingHashes() []daghash.Hash {
	hashes := make([]daghash.Hash, 0, len(c.pending))
	for h := range c.pending {
		hashes = append(hashes, h)
	}
	return hashes
}

// Clone returns an independent chain branching from c, sharing its
// milestone snapshots by reference and cloning its mutable pending pool and
// UTXO/registration overlays, so that the copy and c can then diverge
// independently (§4.5, §3's fork container semantics).
func (c *Chain) Clone() *Chain {
	pending := make(map[daghash.Hash]*wire.MsgBlock, len(c.pending))
	for k, v := range c.pending {
		pending[k] = v
	}
	milestones := make([]*Milestone, len(c.milestones))
	copy(milestones, c.milestones)

	reg := newRegOverlay()
	for k, v := range c.reg.entries {
		reg.entries[k] = v
	}

	return &Chain{
		params:     c.params,
		arena:      c.arena,
		milestones: milestones,
		pending:    pending,
		utxo:       c.utxo.Clone(),
		reg:        reg,
	}
}

// LevelSetResult is what OnMilestone hands back for callback fan-out
// (§4.7 step 5).
type LevelSetResult struct {
	Milestone    *Milestone
	Order        []daghash.Hash
	AddedUTXOs   []daghash.Hash
	RemovedUTXOs []daghash.Hash

	// Validity holds each confirmed block's per-transaction outcome, keyed
	// by block hash, for the arena to stamp onto the block's new Vertex.
	Validity map[daghash.Hash][]Validity

	// NewlyRegistered names the blocks (by their own hash) whose first
	// registration confirmed in this level set — their vertex becomes
	// NotYetRedeemed (§3, scenario 1).
	NewlyRegistered []daghash.Hash

	// Redeemed names the registration anchor blocks whose redemption
	// confirmed in this level set — their (possibly already-archived)
	// vertex becomes IsRedeemed (§3, scenario 2).
	Redeemed []daghash.Hash
}

// OnMilestone processes a newly-arrived milestone block per §4.5:
//  1. locate the parent milestone snapshot (by milestone block's milestone
//     hash) — the caller is responsible for having already confirmed it is
//     present, since a missing parent belongs in the OBC, not here;
//  2. build the level set via topological traversal over the pending pool
//     plus the milestone block itself;
//  3. validate every transaction in topological order, applying UTXO
//     deltas and RegChange as it goes;
//  4. construct and append the new Milestone snapshot, retargeting
//     difficulty on the configured interval boundary.
//
// The milestone cache is never pruned: params.CachedWindow is not consulted,
// and every snapshot stays in c.milestones for the life of the chain.
func (c *Chain) OnMilestone(milestoneHash daghash.Hash, milestoneBlock *wire.MsgBlock, minFee uint64) (*LevelSetResult, error) {
	parentHeight := c.Tip().Height
	parentChainwork := c.Tip().Chainwork

	levelSetBlocks := map[daghash.Hash]*wire.MsgBlock{milestoneHash: milestoneBlock}
	for hash, blk := range c.pending {
		levelSetBlocks[hash] = blk
	}

	order := TopSort(levelSetBlocks, milestoneHash)
	if len(order) != len(levelSetBlocks) {
		return nil, errors.New("blockdag: level set contains a cycle or an unreachable block")
	}

	newMilestone := &Milestone{
		Height:          parentHeight + 1,
		BlockTarget:     c.Tip().BlockTarget,
		MilestoneTarget: c.Tip().MilestoneTarget,
		LevelSet:        order,
	}

	validity := make(map[daghash.Hash][]Validity, len(order))
	var newlyRegistered, redeemed []daghash.Hash

	for _, hash := range order {
		blk := levelSetBlocks[hash]
		isFirstTxOfGenesisChild := blk.Header.PrevHash == *c.params.GenesisHash

		reward := c.cumulativeReward(newMilestone)
		blockValidity := make([]Validity, len(blk.Transactions))

		for txIdx, tx := range blk.Transactions {
			ctx := ValidationContext{
				MinFee:           minFee,
				CumulativeReward: reward,
				PrevIsGenesis:    isFirstTxOfGenesisChild,
				IsFirstTxOfBlock: txIdx == 0,
				PeerChainAnchor:  c.reg.GetRegistration,
			}
			if _, err := ValidateTx(tx, c.utxo, ctx); err != nil {
				blockValidity[txIdx] = ValidityInvalid
				continue
			}
			if err := ApplyTx(tx, uint32(txIdx), hash, c.utxo); err != nil {
				return nil, err
			}
			blockValidity[txIdx] = ValidityValid

			switch ClassifyTx(tx) {
			case TxFirstRegistration:
				newMilestone.RegChange.Record(c.reg, hash, hash)
				newlyRegistered = append(newlyRegistered, hash)
			case TxRedemption:
				anchor := tx.TxIn[0].PreviousOutpoint.ProducingBlockHash
				peerHead, ok := c.reg.GetRegistration(anchor)
				if !ok {
					peerHead = anchor
				}
				newMilestone.RegChange.Record(c.reg, peerHead, hash)
				redeemed = append(redeemed, anchor)
			}
		}
		validity[hash] = blockValidity

		delete(c.pending, hash)
	}
	newMilestone.RegChange.Apply(c.reg)

	newMilestone.Chainwork = new(big.Int).Add(parentChainwork, pow.CalcWork(c.params.MaxTarget(), newMilestone.MilestoneTarget))
	newMilestone.LastUpdateTime = time.Now().Unix()

	if newMilestone.Height%uint64(c.params.RetargetInterval) == 0 {
		c.retarget(newMilestone)
	}

	c.milestones = append(c.milestones, newMilestone)

	added, removed := c.utxo.Diff()
	return &LevelSetResult{
		Milestone:       newMilestone,
		Order:           order,
		AddedUTXOs:      added,
		RemovedUTXOs:    removed,
		Validity:        validity,
		NewlyRegistered: newlyRegistered,
		Redeemed:        redeemed,
	}, nil
}

// cumulativeReward computes the reward a block anchored at milestone
// candidate ms is credited, derived from the milestone's block target
// (§3, §4.4) — a simple monotone function of difficulty, grounded on the
// teacher's CalcBlockSubsidy shape (blockdag/subsidy.go) but driven by PoW
// target rather than block height, since this system has no fixed halving
// schedule.
func (c *Chain) cumulativeReward(ms *Milestone) uint64 {
	work := pow.CalcWork(c.params.MaxTarget(), ms.BlockTarget)
	if !work.IsUint64() {
		return ^uint64(0)
	}
	return work.Uint64()
}

// retarget recomputes ms.BlockTarget and ms.MilestoneTarget from the
// observed spacing over the last RetargetInterval milestones (§4.3).
func (c *Chain) retarget(ms *Milestone) {
	window := int(c.params.RetargetInterval)
	if len(c.milestones) < window {
		return
	}
	first := c.milestones[len(c.milestones)-window]
	firstTime := time.Unix(first.LastUpdateTime, 0)
	lastTime := time.Unix(ms.LastUpdateTime, 0)

	newBits := pow.Retarget(firstTime, lastTime, c.params.TargetTimespan, ms.MilestoneTarget, c.params.PowLimit)
	ms.BlockTarget = newBits
	ms.MilestoneTarget = newBits
}
