// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import (
	"bytes"
	"math/big"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/epic-project/epicd/params"
	"github.com/epic-project/epicd/pow"
	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

// BlockSource names where a candidate block entered the DAG manager from
// (§4.7), informing logging and whether solidity failures are suspicious.
type BlockSource int

// BlockSource values.
const (
	SourceNetwork BlockSource = iota
	SourceMiner
	SourceUnknown
)

// MaxTimestampDrift bounds how far into the future a block's timestamp may
// sit relative to the admitting node's clock (§4.7).
const MaxTimestampDrift = 1 * time.Second

// ConfirmationCallback is invoked once per confirmed level set (§4.7 step
// 5).
type ConfirmationCallback func(result *LevelSetResult)

// ChainHeadCallback is invoked whenever a chain's tip changes, naming
// whether that chain is (now) the main chain (§4.7 step 5).
type ChainHeadCallback func(tipHash daghash.Hash, isMainChain bool)

// DAG is the block admission pipeline described in §4.7: syntax
// verification, solidity checking against the OBC, in-memory caching,
// milestone-triggered confirmation and callback fan-out. Grounded on the
// teacher's blockdag.BlockDAG (dag.go's ProcessBlock/maybeAcceptBlock
// shape), with the GHOSTDAG blueset logic replaced by this system's
// milestone/fork-container model.
type DAG struct {
	params *params.Params
	arena  *Arena
	obc    *OrphanBuffer
	forks  *ForkContainer

	// cache holds every solid, admitted block not yet anchored by any
	// milestone on any known chain, keyed by hash, until it is claimed by
	// OnMilestone or pruned by a losing fork.
	cache map[daghash.Hash]*wire.MsgBlock

	onConfirm   ConfirmationCallback
	onChainHead ChainHeadCallback
}

// NewDAG constructs a DAG manager seeded with the network's genesis block.
func NewDAG(p *params.Params, genesisBlock *wire.MsgBlock) (*DAG, error) {
	genesisHash, err := genesisBlock.BlockHash()
	if err != nil {
		return nil, errors.Wrap(err, "blockdag: hashing genesis block")
	}
	if genesisHash != *p.GenesisHash {
		return nil, errors.New("blockdag: genesis block does not match params.GenesisHash")
	}

	arena := NewArena()
	genesisMilestone := NewGenesisMilestone(genesisHash, p.PowLimitBits)
	arena.Put(&Vertex{
		BlockHash:   genesisHash,
		IsMilestone: true,
		IsRedeemed:  NotRedemption,
		Milestone:   genesisMilestone,
		Block:       genesisBlock,
	})

	genesisChain := NewChain(p, arena, genesisMilestone, nil)
	forks := NewForkContainer(genesisHash, genesisChain)

	return &DAG{
		params: p,
		arena:  arena,
		obc:    NewOrphanBuffer(),
		forks:  forks,
		cache:  make(map[daghash.Hash]*wire.MsgBlock),
	}, nil
}

// OnConfirm registers the callback fired after each level-set confirmation.
func (d *DAG) OnConfirm(cb ConfirmationCallback) { d.onConfirm = cb }

// OnChainHead registers the callback fired on chain-head changes.
func (d *DAG) OnChainHead(cb ChainHeadCallback) { d.onChainHead = cb }

// Head returns the best chain's tip milestone hash, the parent edge the
// miner names as a candidate block's milestone parent (§4.8 step 3).
func (d *DAG) Head() daghash.Hash {
	return d.forks.BestTipHash()
}

// HeadHeight returns the best chain's tip milestone height, advertised in
// the VERSION handshake's BestHeight field (§4.9).
func (d *DAG) HeadHeight() uint64 {
	return d.forks.Best().Tip().Height
}

// Chainwork returns the best chain's accumulated chainwork, persisted as
// the `chainwork` info key (§6).
func (d *DAG) Chainwork() *big.Int {
	return d.forks.Best().Tip().Chainwork
}

// HeadTargets returns the best chain's current block and milestone PoW
// targets, used by the miner to set a candidate header's difficulty and by
// the sortition-distance ceiling's network-hash-rate estimate (§4.8 step 2).
func (d *DAG) HeadTargets() (blockTarget, milestoneTarget uint32) {
	tip := d.forks.Best().Tip()
	return tip.BlockTarget, tip.MilestoneTarget
}

// RandomTip returns an arbitrary block hash from the best chain suitable as
// a candidate block's tip parent, excluding exclude (the miner's own chain
// head, so a block never names itself as its own tip — §3, §4.8 step 3:
// "tip = random non-miner tip from best chain"). ok is false if the best
// chain currently offers nothing else, in which case the caller should fall
// back to the chain head itself.
func (d *DAG) RandomTip(exclude daghash.Hash) (hash daghash.Hash, ok bool) {
	best := d.forks.Best()
	candidates := best.PendingHashes()
	candidates = append(candidates, best.Tip().LevelSet...)

	filtered := candidates[:0]
	for _, h := range candidates {
		if h != exclude {
			filtered = append(filtered, h)
		}
	}
	if len(filtered) == 0 {
		return daghash.Hash{}, false
	}
	return filtered[rand.Intn(len(filtered))], true
}

// Block returns the admitted block stored for hash, for callers that need
// to resolve a LevelSetResult's Order hashes back into transactions (e.g.
// pruning the mempool of newly-confirmed transactions).
func (d *DAG) Block(hash daghash.Hash) (*wire.MsgBlock, bool) {
	if v, ok := d.arena.Get(hash); ok {
		return v.Block, true
	}
	return nil, false
}

// Vertex returns the arena's annotation for hash, for the storage backup
// thread's VTX-record encoding (§4.1, §4.2).
func (d *DAG) Vertex(hash daghash.Hash) (*Vertex, bool) {
	return d.arena.Get(hash)
}

// ProcessBlock runs block through the full admission pipeline (§4.7).
// It returns isOrphan=true if the block was buffered in the OBC pending
// missing parents, rather than an error — a missing parent is expected
// network behavior, not a fault.
func (d *DAG) ProcessBlock(block *wire.MsgBlock, source BlockSource) (isOrphan bool, err error) {
	hash, err := block.BlockHash()
	if err != nil {
		return false, errors.Wrap(err, "blockdag: hashing candidate block")
	}

	if d.arena.Has(hash) || d.obc.Has(hash) {
		return false, errors.Errorf("blockdag: block %s already known", hash)
	}

	if err := d.syntaxVerify(block, hash); err != nil {
		return false, errors.Wrap(err, "blockdag: syntax verification failed")
	}

	mask := d.missingParents(block)
	if mask != 0 {
		if err := d.obc.Insert(hash, block, mask); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := d.acceptSolid(hash, block); err != nil {
		return false, err
	}

	d.releaseDependents(hash)
	return false, nil
}

// syntaxVerify implements §4.7 step 1: version match, PoW validity, merkle
// root, timestamp drift, size ceiling, unique transactions, first-reg
// placement.
func (d *DAG) syntaxVerify(block *wire.MsgBlock, hash daghash.Hash) error {
	if block.Header.IsGenesis() {
		return nil
	}

	if block.Header.Version != wire.BlockVersion {
		return errors.New("version mismatch")
	}
	if block.SerializeSize() > int(d.params.MaxBlockSize) {
		return errors.New("block exceeds maximum size")
	}
	if time.Unix(int64(block.Header.Timestamp), 0).After(time.Now().Add(MaxTimestampDrift)) {
		return errors.New("timestamp too far in the future")
	}

	txHashes := make([]daghash.Hash, len(block.Transactions))
	seen := make(map[daghash.Hash]bool, len(block.Transactions))
	for i, tx := range block.Transactions {
		txHash, err := tx.TxHash()
		if err != nil {
			return errors.Wrap(err, "hashing transaction")
		}
		if seen[txHash] {
			return errors.New("duplicate transaction in block")
		}
		seen[txHash] = true
		txHashes[i] = txHash

		if ClassifyTx(tx) == TxFirstRegistration && i != 0 {
			return errors.New("first registration must be the block's first transaction")
		}
	}
	if block.Header.MerkleRoot != wire.MerkleRoot(txHashes) {
		return errors.New("merkle root mismatch")
	}

	var headerBuf bytes.Buffer
	if err := block.Header.KaspaEncode(&headerBuf); err != nil {
		return errors.Wrap(err, "encoding header for PoW verification")
	}
	keys := pow.DeriveSiphashKeys(headerBuf.Bytes())
	powParams := pow.Params{EdgeBits: d.params.EdgeBits, ProofSize: d.params.ProofSize}
	if err := pow.Verify(powParams, block.Proof, keys); err != nil {
		return errors.Wrap(err, "proof of work verification failed")
	}

	return nil
}

// missingParents implements §4.7 step 2's solidity check: a parent edge is
// satisfied if it is the zero hash (GENESIS-only), already in the arena, or
// already buffered (itself orphaned) in the OBC — §4.6 defines solidity in
// terms of "exists either in DAG or in OBC".
func (d *DAG) missingParents(block *wire.MsgBlock) missingMask {
	if block.Header.IsGenesis() {
		return 0
	}
	var mask missingMask
	if !d.haveParent(block.Header.MilestoneHash) {
		mask |= missingMilestone
	}
	if !d.haveParent(block.Header.PrevHash) {
		mask |= missingPrev
	}
	if !d.haveParent(block.Header.TipHash) {
		mask |= missingTip
	}
	return mask
}

func (d *DAG) haveParent(hash daghash.Hash) bool {
	if hash == (daghash.Hash{}) {
		return true
	}
	if d.arena.Has(hash) {
		return true
	}
	_, inCache := d.cache[hash]
	return inCache || d.obc.Has(hash)
}

// acceptSolid implements §4.7 steps 3-5 for one solid block: cache it, and
// if it is a milestone block, hand the candidate level set to its chain and
// fire callbacks.
func (d *DAG) acceptSolid(hash daghash.Hash, block *wire.MsgBlock) error {
	d.cache[hash] = block

	if block.Header.IsGenesis() {
		d.arena.Put(NewVertex(hash, block))
		return nil
	}

	chain, ok := d.forks.Get(block.Header.MilestoneHash)
	if !ok {
		return errors.Errorf("blockdag: block %s names an unknown parent milestone", hash)
	}

	if !pow.MeetsTarget(&hash, chain.Tip().MilestoneTarget) {
		chain.AddPendingBlock(hash, block)
		return nil
	}

	result, err := chain.OnMilestone(hash, block, d.params.MinFee)
	if err != nil {
		return errors.Wrap(err, "confirming milestone level set")
	}

	for _, memberHash := range result.Order {
		memberBlock := d.cache[memberHash]
		v := NewVertex(memberHash, memberBlock)
		v.Height = result.Milestone.Height
		if validity, ok := result.Validity[memberHash]; ok {
			v.Validity = validity
		}
		if memberHash == hash {
			v.IsMilestone = true
			v.Milestone = result.Milestone
		}
		d.arena.Put(v)
		delete(d.cache, memberHash)
	}

	// A first registration's own vertex starts tracking redemption once its
	// level set confirms (§3, scenario 1); a redemption flips its anchor's
	// vertex, which may belong to an earlier, already-archived level set.
	for _, registered := range result.NewlyRegistered {
		if v, ok := d.arena.Get(registered); ok {
			v.IsRedeemed = NotYetRedeemed
		}
	}
	for _, anchor := range result.Redeemed {
		if v, ok := d.arena.Get(anchor); ok {
			v.IsRedeemed = IsRedeemed
		}
	}

	switchedMain := d.forks.Insert(block.Header.MilestoneHash, hash, chain)
	if d.onConfirm != nil {
		d.onConfirm(result)
	}
	if d.onChainHead != nil {
		d.onChainHead(hash, switchedMain)
	}
	return nil
}

// releaseDependents implements §4.6's release step after hash becomes
// solid: re-submit every block the OBC frees, in ascending-hash order for
// determinism.
func (d *DAG) releaseDependents(hash daghash.Hash) {
	released := d.obc.Release(hash)
	sortBlocks(released)
	for _, block := range released {
		if _, err := d.ProcessBlock(block, SourceUnknown); err != nil {
			continue
		}
	}
}

func sortBlocks(blocks []*wire.MsgBlock) {
	sortBlockHashes(blocks, func(b *wire.MsgBlock) daghash.Hash {
		h, _ := b.BlockHash()
		return h
	})
}

func sortBlockHashes(blocks []*wire.MsgBlock, hashOf func(*wire.MsgBlock) daghash.Hash) {
	for i := 1; i < len(blocks); i++ {
		for j := i; j > 0; j-- {
			hi, hj := hashOf(blocks[j]), hashOf(blocks[j-1])
			if hi.Less(&hj) {
				blocks[j], blocks[j-1] = blocks[j-1], blocks[j]
			} else {
				break
			}
		}
	}
}
